package model

import (
	"maps"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/secmon-lab/dermis/pkg/domain/types"
)

// EmbeddingDimension is the dimension of the embedding vector
// Gemini text-embedding-004 uses 768 dimensions
const EmbeddingDimension = 768

// ProductRecord is a catalog product as returned by any lookup path.
// Lookup paths return different field subsets; ID is the only guaranteed field.
type ProductRecord struct {
	ID              types.ProductID
	Name            string
	Brand           string
	Price           float64
	Category        string
	Description     string
	ImageURL        string
	Rating          float64
	Attributes      map[string]string
	TargetConcerns  []string
	TargetSkinTypes []types.SkinType

	// Similarity is set only by similarity search, in [0,1].
	Similarity *float64

	Embedding []float32
	UpdatedAt time.Time
}

// IsPartial reports whether the record lacks fields a recommendation needs.
func (p *ProductRecord) IsPartial() bool {
	return p.Name == "" || p.ImageURL == ""
}

// Clone returns a deep copy
func (p *ProductRecord) Clone() *ProductRecord {
	if p == nil {
		return nil
	}

	c := *p
	c.Attributes = maps.Clone(p.Attributes)
	c.TargetConcerns = slices.Clone(p.TargetConcerns)
	c.TargetSkinTypes = slices.Clone(p.TargetSkinTypes)
	c.Embedding = slices.Clone(p.Embedding)
	if p.Similarity != nil {
		s := *p.Similarity
		c.Similarity = &s
	}
	return &c
}

// FillFrom copies fields that p lacks from other. Fields p already has are kept.
func (p *ProductRecord) FillFrom(other *ProductRecord) {
	if other == nil || other.ID != p.ID {
		return
	}

	if p.Name == "" {
		p.Name = other.Name
	}
	if p.Brand == "" {
		p.Brand = other.Brand
	}
	if p.Price == 0 {
		p.Price = other.Price
	}
	if p.Category == "" {
		p.Category = other.Category
	}
	if p.Description == "" {
		p.Description = other.Description
	}
	if p.ImageURL == "" {
		p.ImageURL = other.ImageURL
	}
	if p.Rating == 0 {
		p.Rating = other.Rating
	}
	if len(p.Attributes) == 0 && len(other.Attributes) > 0 {
		p.Attributes = maps.Clone(other.Attributes)
	}
	if len(p.TargetConcerns) == 0 && len(other.TargetConcerns) > 0 {
		p.TargetConcerns = slices.Clone(other.TargetConcerns)
	}
	if len(p.TargetSkinTypes) == 0 && len(other.TargetSkinTypes) > 0 {
		p.TargetSkinTypes = slices.Clone(other.TargetSkinTypes)
	}
	if p.Similarity == nil && other.Similarity != nil {
		s := *other.Similarity
		p.Similarity = &s
	}
	if len(p.Embedding) == 0 && len(other.Embedding) > 0 {
		p.Embedding = slices.Clone(other.Embedding)
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = other.UpdatedAt
	}
}

// Summary returns the fields exposed to the model and to API clients.
func (p *ProductRecord) Summary() map[string]any {
	m := map[string]any{
		"id":    p.ID.String(),
		"name":  p.Name,
		"brand": p.Brand,
		"price": p.Price,
	}
	if p.Category != "" {
		m["category"] = p.Category
	}
	if p.ImageURL != "" {
		m["image_url"] = p.ImageURL
	}
	if p.Rating > 0 {
		m["rating"] = p.Rating
	}
	if len(p.TargetConcerns) > 0 {
		m["target_concerns"] = p.TargetConcerns
	}
	if len(p.TargetSkinTypes) > 0 {
		skinTypes := make([]string, len(p.TargetSkinTypes))
		for i, st := range p.TargetSkinTypes {
			skinTypes[i] = st.String()
		}
		m["target_skin_types"] = skinTypes
	}
	if len(p.Attributes) > 0 {
		m["attributes"] = p.Attributes
	}
	if p.Similarity != nil {
		m["similarity"] = *p.Similarity
	}
	return m
}

// ProductFilter narrows a keyword search. Zero values do not filter.
type ProductFilter struct {
	Category string
	SkinType types.SkinType
	Concerns []string
	MaxPrice float64
}

// Match reports whether p satisfies the filter
func (f *ProductFilter) Match(p *ProductRecord) bool {
	if f == nil {
		return true
	}
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.SkinType != "" && len(p.TargetSkinTypes) > 0 && !slices.Contains(p.TargetSkinTypes, f.SkinType) {
		return false
	}
	if f.MaxPrice > 0 && p.Price > f.MaxPrice {
		return false
	}
	if len(f.Concerns) > 0 {
		hit := false
		for _, c := range f.Concerns {
			if slices.Contains(p.TargetConcerns, c) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// Tokenize splits text into lowercase search tokens. Tokens shorter than two runes
// are dropped and duplicates removed, keeping first-seen order.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var out []string
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Keywords returns the tokens a keyword search matches against.
func (p *ProductRecord) Keywords() []string {
	parts := []string{p.Name, p.Brand, p.Category}
	parts = append(parts, p.TargetConcerns...)
	for _, k := range slices.Sorted(maps.Keys(p.Attributes)) {
		parts = append(parts, p.Attributes[k])
	}
	return Tokenize(strings.Join(parts, " "))
}
