package interfaces

import (
	"context"

	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
)

// CatalogRepository provides the product lookup paths
type CatalogRepository interface {
	Put(ctx context.Context, products ...*model.ProductRecord) error

	// BySimilarity returns products whose cosine similarity to embedding is at least
	// threshold, most similar first, with Similarity set.
	BySimilarity(ctx context.Context, embedding []float32, threshold float64, limit int) ([]*model.ProductRecord, error)
	// ByKeyword matches text against product names, brands and keywords.
	ByKeyword(ctx context.Context, text string, filter *model.ProductFilter, limit int) ([]*model.ProductRecord, error)
	// ByID returns the products that exist, in the order of ids.
	ByID(ctx context.Context, ids []types.ProductID) ([]*model.ProductRecord, error)
}
