package capability

import (
	"context"
	"fmt"
	"slices"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/dermis/pkg/agent/tool"
	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
	"github.com/secmon-lab/dermis/pkg/service/governor"
)

const (
	minCompare = 2
	maxCompare = 5
)

func extractProductID(args map[string]any, key string) (types.ProductID, error) {
	raw, err := extractString(args, key, true)
	if err != nil {
		return "", err
	}
	id := types.ProductID(raw)
	if err := id.Validate(); err != nil {
		return "", invalid(key, err.Error())
	}
	return id, nil
}

// lookupProduct returns the product or ErrProductNotFound
func (s *Set) lookupProduct(ctx context.Context, id types.ProductID) (*model.ProductRecord, error) {
	p, err := governor.Cached(ctx, s.cache, productKey(id), s.cfg.ProductTTL,
		func(ctx context.Context) (*model.ProductRecord, error) {
			found, err := s.repo.Catalog().ByID(ctx, []types.ProductID{id})
			if err != nil {
				return nil, goerr.Wrap(err, "failed to get product", goerr.V("product_id", id))
			}
			if len(found) == 0 {
				return nil, goerr.Wrap(ErrProductNotFound, "no such product", goerr.V("product_id", id))
			}
			return found[0], nil
		})
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

type getProduct struct {
	set *Set
}

func (c *getProduct) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        types.CapabilityGetProduct.String(),
		Description: "Get full details of one catalog product by its ID",
		Parameters: map[string]*gollem.Parameter{
			"product_id": {
				Type:        gollem.TypeString,
				Description: "ID of the product as returned by search_products",
				Required:    true,
			},
		},
	}
}

func (c *getProduct) parse(args map[string]any) (model.CapabilityArgs, error) {
	if err := rejectUnknown(args, "product_id"); err != nil {
		return nil, err
	}
	id, err := extractProductID(args, "product_id")
	if err != nil {
		return nil, err
	}
	return model.GetProductArgs{ProductID: id}, nil
}

func (c *getProduct) run(ctx context.Context, _ Scope, args model.CapabilityArgs) (*outcome, error) {
	a := args.(model.GetProductArgs)
	tool.Update(ctx, fmt.Sprintf("Getting product %s...", a.ProductID))

	p, err := c.set.lookupProduct(ctx, a.ProductID)
	if err != nil {
		return nil, err
	}

	summary := p.Summary()
	if p.Description != "" {
		summary["description"] = p.Description
	}
	return &outcome{
		payload:  map[string]any{"product": summary},
		products: []*model.ProductRecord{p},
	}, nil
}

type compareProducts struct {
	set *Set
}

func (c *compareProducts) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        types.CapabilityCompareProducts.String(),
		Description: fmt.Sprintf("Compare %d to %d catalog products side by side", minCompare, maxCompare),
		Parameters: map[string]*gollem.Parameter{
			"product_ids": {
				Type:        gollem.TypeArray,
				Description: "IDs of the products to compare",
				Items:       &gollem.Parameter{Type: gollem.TypeString},
				Required:    true,
			},
		},
	}
}

func (c *compareProducts) parse(args map[string]any) (model.CapabilityArgs, error) {
	if err := rejectUnknown(args, "product_ids"); err != nil {
		return nil, err
	}

	raw, err := extractStringSlice(args, "product_ids")
	if err != nil {
		return nil, err
	}
	if len(raw) < minCompare || len(raw) > maxCompare {
		return nil, invalid("product_ids", fmt.Sprintf("product_ids must list %d to %d distinct products", minCompare, maxCompare))
	}

	ids := make([]types.ProductID, len(raw))
	for i, r := range raw {
		id := types.ProductID(r)
		if err := id.Validate(); err != nil {
			return nil, invalid("product_ids", err.Error())
		}
		ids[i] = id
	}
	return model.CompareProductsArgs{ProductIDs: ids}, nil
}

func (c *compareProducts) run(ctx context.Context, _ Scope, args model.CapabilityArgs) (*outcome, error) {
	a := args.(model.CompareProductsArgs)
	tool.Update(ctx, fmt.Sprintf("Comparing %d products...", len(a.ProductIDs)))

	found, err := c.set.repo.Catalog().ByID(ctx, a.ProductIDs)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get products for comparison", goerr.V("product_ids", a.ProductIDs))
	}

	var missing []string
	for _, id := range a.ProductIDs {
		if !slices.ContainsFunc(found, func(p *model.ProductRecord) bool { return p.ID == id }) {
			missing = append(missing, id.String())
		}
	}
	if len(found) == 0 {
		return nil, goerr.Wrap(ErrProductNotFound, "none of the products exist", goerr.V("product_ids", a.ProductIDs))
	}

	payload := map[string]any{
		"products": summaries(found),
	}
	if len(missing) > 0 {
		payload["missing"] = missing
	}
	return &outcome{payload: payload, products: found}, nil
}
