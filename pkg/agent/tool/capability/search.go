package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/dermis/pkg/agent/tool"
	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
	"github.com/secmon-lab/dermis/pkg/service/governor"
	"github.com/secmon-lab/dermis/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

const maxQueryLength = 200

type searchProducts struct {
	set *Set
}

func (c *searchProducts) Spec() gollem.ToolSpec {
	skinTypes := make([]string, 0, len(types.AllSkinTypes()))
	for _, st := range types.AllSkinTypes() {
		skinTypes = append(skinTypes, st.String())
	}

	return gollem.ToolSpec{
		Name:        types.CapabilitySearchProducts.String(),
		Description: "Search the product catalog by meaning and keywords. Returns ranked products with id, name, brand, price and rating.",
		Parameters: map[string]*gollem.Parameter{
			"query": {
				Type:        gollem.TypeString,
				Description: "What the user is looking for, e.g. 'lightweight moisturizer for oily skin'",
				Required:    true,
			},
			"category": {
				Type:        gollem.TypeString,
				Description: "Restrict to a product category such as cleanser, toner, serum, moisturizer, sunscreen",
			},
			"skin_type": {
				Type:        gollem.TypeString,
				Description: "Restrict to products suitable for this skin type",
				Enum:        skinTypes,
			},
			"concerns": {
				Type:        gollem.TypeArray,
				Description: "Restrict to products targeting at least one of these concerns",
				Items:       &gollem.Parameter{Type: gollem.TypeString},
			},
			"max_price": {
				Type:        gollem.TypeNumber,
				Description: "Maximum price",
			},
			"limit": {
				Type:        gollem.TypeInteger,
				Description: fmt.Sprintf("Maximum number of products, 1 to %d (default %d)", c.set.cfg.MaxSearchLimit, c.set.cfg.SearchLimit),
			},
		},
	}
}

func (c *searchProducts) parse(args map[string]any) (model.CapabilityArgs, error) {
	if err := rejectUnknown(args, "query", "category", "skin_type", "concerns", "max_price", "limit"); err != nil {
		return nil, err
	}

	query, err := extractString(args, "query", true)
	if err != nil {
		return nil, err
	}
	if len([]rune(query)) > maxQueryLength {
		return nil, invalid("query", fmt.Sprintf("query must be at most %d characters", maxQueryLength))
	}

	category, err := extractString(args, "category", false)
	if err != nil {
		return nil, err
	}

	skinTypeRaw, err := extractString(args, "skin_type", false)
	if err != nil {
		return nil, err
	}
	var skinType types.SkinType
	if skinTypeRaw != "" {
		st, err := types.ParseSkinType(strings.ToLower(skinTypeRaw))
		if err != nil {
			return nil, invalid("skin_type", err.Error())
		}
		skinType = st
	}

	concerns, err := extractStringSlice(args, "concerns")
	if err != nil {
		return nil, err
	}

	maxPrice, _, err := extractFloat(args, "max_price")
	if err != nil {
		return nil, err
	}
	if maxPrice < 0 {
		return nil, invalid("max_price", "max_price must not be negative")
	}

	limit, ok, err := extractInt(args, "limit", false)
	if err != nil {
		return nil, err
	}
	if !ok {
		limit = c.set.cfg.SearchLimit
	}
	if limit < 1 || limit > c.set.cfg.MaxSearchLimit {
		return nil, invalid("limit", fmt.Sprintf("limit must be between 1 and %d", c.set.cfg.MaxSearchLimit))
	}

	return model.SearchProductsArgs{
		Query:    query,
		Category: strings.ToLower(category),
		SkinType: skinType,
		Concerns: concerns,
		MaxPrice: maxPrice,
		Limit:    limit,
	}, nil
}

func (c *searchProducts) run(ctx context.Context, _ Scope, args model.CapabilityArgs) (*outcome, error) {
	a := args.(model.SearchProductsArgs)
	tool.Update(ctx, fmt.Sprintf("Searching products: %s", a.Query))

	products, err := governor.Cached(ctx, c.set.cache, cacheKey("search", a), c.set.cfg.SearchTTL,
		func(ctx context.Context) ([]*model.ProductRecord, error) {
			return c.search(ctx, a)
		})
	if err != nil {
		return nil, err
	}

	return &outcome{
		payload: map[string]any{
			"count":    len(products),
			"products": summaries(products),
		},
		products: products,
	}, nil
}

// search runs the similarity and keyword paths concurrently and merges them. A failing
// path is logged and skipped; only the failure of every path is an error.
func (c *searchProducts) search(ctx context.Context, a model.SearchProductsArgs) ([]*model.ProductRecord, error) {
	filter := &model.ProductFilter{
		Category: a.Category,
		SkinType: a.SkinType,
		Concerns: a.Concerns,
		MaxPrice: a.MaxPrice,
	}
	// over-fetch so that filtering similarity hits still leaves enough candidates
	fetch := a.Limit * 3

	var semantic, keyword []*model.ProductRecord
	var semanticErr, keywordErr error

	// paths run independently; one failing never cancels the other
	var eg errgroup.Group
	eg.Go(func() error {
		semantic, semanticErr = c.bySimilarity(ctx, a.Query, fetch)
		return nil
	})
	eg.Go(func() error {
		keyword, keywordErr = c.set.repo.Catalog().ByKeyword(ctx, a.Query, filter, fetch)
		return nil
	})
	_ = eg.Wait()

	logger := logging.From(ctx)
	if semanticErr != nil {
		logger.Warn("similarity search failed", "error", semanticErr.Error(), "query", a.Query)
	}
	if keywordErr != nil {
		logger.Warn("keyword search failed", "error", keywordErr.Error(), "query", a.Query)
	}
	if semanticErr != nil && keywordErr != nil {
		return nil, goerr.Wrap(ErrSearchUnavailable, "all search paths failed",
			goerr.V("query", a.Query),
			goerr.V("similarity_error", semanticErr.Error()),
			goerr.V("keyword_error", keywordErr.Error()))
	}

	filtered := make([]*model.ProductRecord, 0, len(semantic))
	for _, p := range semantic {
		// similarity hits may be partial; filters are applied to what is known
		if p.IsPartial() || filter.Match(p) {
			filtered = append(filtered, p)
		}
	}

	merged := c.set.normalizer.Normalize(ctx, filtered, keyword)

	result := make([]*model.ProductRecord, 0, a.Limit)
	for _, p := range merged {
		if !filter.Match(p) {
			continue
		}
		result = append(result, p)
		if len(result) == a.Limit {
			break
		}
	}
	return result, nil
}

func (c *searchProducts) bySimilarity(ctx context.Context, query string, limit int) ([]*model.ProductRecord, error) {
	if c.set.embedder == nil {
		return nil, nil
	}

	embedding, err := governor.Cached(ctx, c.set.cache, cacheKey("embedding", query), c.set.cfg.EmbeddingTTL,
		func(ctx context.Context) ([]float32, error) {
			return governor.WithDeadline(ctx, c.set.cfg.EmbedTimeout, nil, func(ctx context.Context) ([]float32, error) {
				return c.set.embedder.Embed(ctx, query)
			})
		})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed search query")
	}
	if len(embedding) == 0 {
		return nil, nil
	}

	return c.set.repo.Catalog().BySimilarity(ctx, embedding, c.set.cfg.SimilarityThreshold, limit)
}
