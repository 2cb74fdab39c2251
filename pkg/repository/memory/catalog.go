package memory

import (
	"context"
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
)

type catalogRepository struct {
	mu       sync.RWMutex
	products map[types.ProductID]*model.ProductRecord
}

func newCatalogRepository() *catalogRepository {
	return &catalogRepository{
		products: make(map[types.ProductID]*model.ProductRecord),
	}
}

func (r *catalogRepository) Put(ctx context.Context, products ...*model.ProductRecord) error {
	for _, p := range products {
		if err := p.ID.Validate(); err != nil {
			return goerr.Wrap(model.ErrInvalidProduct, "invalid product ID", goerr.V("id", p.ID), goerr.V("reason", err.Error()))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for _, p := range products {
		stored := p.Clone()
		stored.Similarity = nil
		stored.UpdatedAt = now
		r.products[p.ID] = stored
	}
	return nil
}

func (r *catalogRepository) BySimilarity(ctx context.Context, embedding []float32, threshold float64, limit int) ([]*model.ProductRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		product *model.ProductRecord
		score   float64
	}

	var candidates []scored
	for _, p := range r.products {
		if len(p.Embedding) == 0 {
			continue
		}
		s := cosineSimilarity(embedding, p.Embedding)
		if s < threshold {
			continue
		}
		candidates = append(candidates, scored{product: p, score: s})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].product.ID < candidates[j].product.ID
	})

	if limit > 0 && limit < len(candidates) {
		candidates = candidates[:limit]
	}

	result := make([]*model.ProductRecord, len(candidates))
	for i, c := range candidates {
		p := c.product.Clone()
		p.Embedding = nil
		score := c.score
		p.Similarity = &score
		result[i] = p
	}
	return result, nil
}

func (r *catalogRepository) ByKeyword(ctx context.Context, text string, filter *model.ProductFilter, limit int) ([]*model.ProductRecord, error) {
	tokens := model.Tokenize(text)
	if len(tokens) == 0 {
		return []*model.ProductRecord{}, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		product *model.ProductRecord
		hits    int
	}

	var candidates []scored
	for _, p := range r.products {
		if !filter.Match(p) {
			continue
		}
		keywords := p.Keywords()
		hits := 0
		for _, t := range tokens {
			if slices.Contains(keywords, t) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		candidates = append(candidates, scored{product: p, hits: hits})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.hits != b.hits {
			return a.hits > b.hits
		}
		if a.product.Rating != b.product.Rating {
			return a.product.Rating > b.product.Rating
		}
		return a.product.ID < b.product.ID
	})

	if limit > 0 && limit < len(candidates) {
		candidates = candidates[:limit]
	}

	result := make([]*model.ProductRecord, len(candidates))
	for i, c := range candidates {
		p := c.product.Clone()
		p.Embedding = nil
		result[i] = p
	}
	return result, nil
}

func (r *catalogRepository) ByID(ctx context.Context, ids []types.ProductID) ([]*model.ProductRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.ProductRecord, 0, len(ids))
	for _, id := range ids {
		p, ok := r.products[id]
		if !ok {
			continue
		}
		c := p.Clone()
		c.Embedding = nil
		result = append(result, c)
	}
	return result, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}

	return dot / denom
}
