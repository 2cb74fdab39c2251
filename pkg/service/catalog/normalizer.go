package catalog

import (
	"context"
	"slices"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
	"github.com/secmon-lab/dermis/pkg/utils/logging"
)

// Lookup resolves full product records by id
type Lookup interface {
	ByID(ctx context.Context, ids []types.ProductID) ([]*model.ProductRecord, error)
}

// Normalizer merges product result sets from several lookup paths into one ranked,
// duplicate-free list.
type Normalizer struct {
	lookup Lookup
}

// NewNormalizer creates a Normalizer. A nil lookup disables hydration.
func NewNormalizer(lookup Lookup) *Normalizer {
	return &Normalizer{lookup: lookup}
}

// Normalize unions sets by product id, keeping the first-seen record and filling its
// missing fields from later duplicates. Records still lacking a name or image are
// hydrated with one batched lookup; a failed lookup keeps them as they are. The result
// is ordered by similarity then rating, both descending, with records without a
// similarity after those with one. Inputs are never modified.
func (n *Normalizer) Normalize(ctx context.Context, sets ...[]*model.ProductRecord) []*model.ProductRecord {
	merged := merge(sets...)

	if err := n.hydrate(ctx, merged); err != nil {
		logging.From(ctx).Warn("product hydration failed, keeping partial records",
			"error", err.Error(),
			"count", len(merged),
		)
	}

	Rank(merged)
	return merged
}

func merge(sets ...[]*model.ProductRecord) []*model.ProductRecord {
	var out []*model.ProductRecord
	index := make(map[types.ProductID]*model.ProductRecord)

	for _, set := range sets {
		for _, p := range set {
			if p == nil || p.ID == "" {
				continue
			}
			if seen, ok := index[p.ID]; ok {
				seen.FillFrom(p)
				continue
			}
			c := p.Clone()
			index[p.ID] = c
			out = append(out, c)
		}
	}

	if out == nil {
		return []*model.ProductRecord{}
	}
	return out
}

func (n *Normalizer) hydrate(ctx context.Context, products []*model.ProductRecord) error {
	if n.lookup == nil {
		return nil
	}

	var ids []types.ProductID
	for _, p := range products {
		if p.IsPartial() {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	full, err := n.lookup.ByID(ctx, ids)
	if err != nil {
		return goerr.Wrap(err, "failed to hydrate partial products", goerr.V("ids", ids))
	}

	byID := make(map[types.ProductID]*model.ProductRecord, len(full))
	for _, p := range full {
		if p != nil {
			byID[p.ID] = p
		}
	}
	for _, p := range products {
		if src, ok := byID[p.ID]; ok && p.IsPartial() {
			p.FillFrom(src)
		}
	}
	return nil
}

// Rank sorts products in place by similarity then rating, both descending.
// Products without a similarity come after those with one. The sort is stable.
func Rank(products []*model.ProductRecord) {
	slices.SortStableFunc(products, func(a, b *model.ProductRecord) int {
		switch {
		case a.Similarity != nil && b.Similarity == nil:
			return -1
		case a.Similarity == nil && b.Similarity != nil:
			return 1
		case a.Similarity != nil && b.Similarity != nil && *a.Similarity != *b.Similarity:
			if *a.Similarity > *b.Similarity {
				return -1
			}
			return 1
		}

		switch {
		case a.Rating > b.Rating:
			return -1
		case a.Rating < b.Rating:
			return 1
		default:
			return 0
		}
	})
}
