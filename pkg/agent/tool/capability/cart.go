package capability

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/dermis/pkg/agent/tool"
	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
)

const maxCartQuantity = 20

type updateCart struct {
	set *Set
}

func (c *updateCart) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        types.CapabilityUpdateCart.String(),
		Description: "Set the quantity of a product in the signed-in user's cart. Quantity 0 removes it. Repeating the same call has no additional effect.",
		Parameters: map[string]*gollem.Parameter{
			"product_id": {
				Type:        gollem.TypeString,
				Description: "ID of the product",
				Required:    true,
			},
			"quantity": {
				Type:        gollem.TypeInteger,
				Description: fmt.Sprintf("New quantity, 0 to %d", maxCartQuantity),
				Required:    true,
			},
		},
	}
}

func (c *updateCart) parse(args map[string]any) (model.CapabilityArgs, error) {
	if err := rejectUnknown(args, "product_id", "quantity"); err != nil {
		return nil, err
	}

	id, err := extractProductID(args, "product_id")
	if err != nil {
		return nil, err
	}
	qty, _, err := extractInt(args, "quantity", true)
	if err != nil {
		return nil, err
	}
	if qty < 0 || qty > maxCartQuantity {
		return nil, invalid("quantity", fmt.Sprintf("quantity must be between 0 and %d", maxCartQuantity))
	}

	return model.UpdateCartArgs{ProductID: id, Quantity: qty}, nil
}

func (c *updateCart) run(ctx context.Context, scope Scope, args model.CapabilityArgs) (*outcome, error) {
	a := args.(model.UpdateCartArgs)
	resource := fmt.Sprintf("cart:%s/%s", scope.UserID, a.ProductID)

	if a.Quantity == 0 {
		tool.Update(ctx, fmt.Sprintf("Removing %s from cart...", a.ProductID))
		removed, err := c.set.repo.Cart().RemoveItem(ctx, scope.UserID, a.ProductID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to remove cart item", goerr.V("product_id", a.ProductID))
		}
		return &outcome{
			payload: map[string]any{
				"product_id": a.ProductID.String(),
				"removed":    removed,
			},
			sideEffect: &model.SideEffect{
				Resource: resource,
				Summary:  fmt.Sprintf("removed %s from cart", a.ProductID),
			},
		}, nil
	}

	tool.Update(ctx, fmt.Sprintf("Setting %s quantity to %d...", a.ProductID, a.Quantity))
	p, err := c.set.lookupProduct(ctx, a.ProductID)
	if err != nil {
		return nil, err
	}

	item, err := c.set.repo.Cart().UpsertItem(ctx, scope.UserID, a.ProductID, a.Quantity)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update cart", goerr.V("product_id", a.ProductID))
	}

	return &outcome{
		payload: map[string]any{
			"product_id": item.ProductID.String(),
			"name":       p.Name,
			"quantity":   item.Quantity,
		},
		sideEffect: &model.SideEffect{
			Resource: resource,
			Summary:  fmt.Sprintf("set %s quantity to %d", a.ProductID, item.Quantity),
		},
	}, nil
}
