package model

import (
	"time"

	"github.com/secmon-lab/dermis/pkg/domain/types"
)

// CartItem is one line of a user's cart, keyed by (UserID, ProductID)
type CartItem struct {
	UserID    types.UserID
	ProductID types.ProductID
	Quantity  int
	UpdatedAt time.Time
}
