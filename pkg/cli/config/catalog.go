package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
)

// catalogFile is the TOML layout of a product catalog seed file
type catalogFile struct {
	Products []catalogProduct `toml:"product"`
}

type catalogProduct struct {
	ID              string            `toml:"id"`
	Name            string            `toml:"name"`
	Brand           string            `toml:"brand"`
	Price           float64           `toml:"price"`
	Category        string            `toml:"category"`
	Description     string            `toml:"description"`
	ImageURL        string            `toml:"image_url"`
	Rating          float64           `toml:"rating"`
	TargetConcerns  []string          `toml:"target_concerns"`
	TargetSkinTypes []string          `toml:"target_skin_types"`
	Attributes      map[string]string `toml:"attributes"`
}

func (p catalogProduct) toRecord(idx int, now time.Time) (*model.ProductRecord, error) {
	id := types.ProductID(p.ID)
	fail := func(msg string) error {
		return goerr.Wrap(ErrInvalidCatalog, msg, goerr.V(IndexKey, idx), goerr.V(ProductIDKey, p.ID))
	}

	if err := id.Validate(); err != nil {
		return nil, fail(err.Error())
	}
	if p.Name == "" {
		return nil, fail("product name is required")
	}
	if p.Price < 0 {
		return nil, fail("price cannot be negative")
	}
	if p.Rating < 0 || p.Rating > 5 {
		return nil, fail("rating must be within [0,5]")
	}

	skinTypes := make([]types.SkinType, 0, len(p.TargetSkinTypes))
	for _, s := range p.TargetSkinTypes {
		st, err := types.ParseSkinType(s)
		if err != nil {
			return nil, fail(err.Error())
		}
		skinTypes = append(skinTypes, st)
	}

	return &model.ProductRecord{
		ID:              id,
		Name:            p.Name,
		Brand:           p.Brand,
		Price:           p.Price,
		Category:        p.Category,
		Description:     p.Description,
		ImageURL:        p.ImageURL,
		Rating:          p.Rating,
		Attributes:      p.Attributes,
		TargetConcerns:  p.TargetConcerns,
		TargetSkinTypes: skinTypes,
		UpdatedAt:       now,
	}, nil
}

// LoadCatalog reads and validates a product catalog TOML file
func LoadCatalog(path string) ([]*model.ProductRecord, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, err.Error(), goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read catalog file", goerr.V(ConfigPathKey, path))
	}

	var file catalogFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(ErrInvalidCatalog, "failed to parse TOML catalog: "+err.Error(), goerr.V(ConfigPathKey, path))
	}
	if len(file.Products) == 0 {
		return nil, goerr.Wrap(ErrInvalidCatalog, "catalog has no products", goerr.V(ConfigPathKey, path))
	}

	now := time.Now().UTC()
	seen := make(map[types.ProductID]struct{}, len(file.Products))
	records := make([]*model.ProductRecord, 0, len(file.Products))
	for i, p := range file.Products {
		rec, err := p.toRecord(i, now)
		if err != nil {
			return nil, goerr.Wrap(err, "catalog validation failed", goerr.V(ConfigPathKey, path))
		}
		if _, dup := seen[rec.ID]; dup {
			return nil, goerr.Wrap(ErrInvalidCatalog, "duplicate product ID",
				goerr.V(ConfigPathKey, path), goerr.V(IndexKey, i), goerr.V(ProductIDKey, p.ID))
		}
		seen[rec.ID] = struct{}{}
		records = append(records, rec)
	}

	return records, nil
}

// EmbeddingText returns the text a product embedding is computed from
func EmbeddingText(p *model.ProductRecord) string {
	text := p.Name
	for _, s := range []string{p.Brand, p.Category, p.Description} {
		if s != "" {
			text += "\n" + s
		}
	}
	for _, c := range p.TargetConcerns {
		text += "\n" + c
	}
	return text
}
