package interfaces

import (
	"context"

	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
)

// ProfileRepository stores one skin profile per user
type ProfileRepository interface {
	// Get returns nil without error when the user has no profile.
	Get(ctx context.Context, userID types.UserID) (*model.Profile, error)
	Put(ctx context.Context, profile *model.Profile) (*model.Profile, error)
}
