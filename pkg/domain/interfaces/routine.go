package interfaces

import (
	"context"

	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
)

// RoutineRepository stores routine documents
type RoutineRepository interface {
	// GetLatest returns the most recently saved routine, or nil when none exists.
	GetLatest(ctx context.Context, userID types.UserID) (*model.Routine, error)
	// Save upserts routine. A routine without ID is keyed by its content so that
	// repeated saves of the same content are idempotent.
	Save(ctx context.Context, routine *model.Routine) (*model.Routine, error)
}
