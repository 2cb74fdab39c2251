package interfaces

import (
	"context"

	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
)

// CartRepository stores cart lines keyed by (user, product)
type CartRepository interface {
	// UpsertItem sets the quantity of a line. Repeating the call is harmless.
	UpsertItem(ctx context.Context, userID types.UserID, productID types.ProductID, quantity int) (*model.CartItem, error)
	// RemoveItem deletes a line and reports whether it existed.
	RemoveItem(ctx context.Context, userID types.UserID, productID types.ProductID) (bool, error)
	List(ctx context.Context, userID types.UserID) ([]*model.CartItem, error)
}
