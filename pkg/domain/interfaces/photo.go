package interfaces

import (
	"context"

	"github.com/secmon-lab/dermis/pkg/domain/types"
)

// PhotoStore archives user-submitted skin photos
type PhotoStore interface {
	Put(ctx context.Context, userID types.UserID, data []byte) (string, error)
}
