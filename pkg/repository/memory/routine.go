package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
)

type routineRepository struct {
	mu       sync.RWMutex
	routines map[types.RoutineID]*model.Routine
}

func newRoutineRepository() *routineRepository {
	return &routineRepository{
		routines: make(map[types.RoutineID]*model.Routine),
	}
}

func copyRoutine(r *model.Routine) *model.Routine {
	c := *r
	c.Steps = slices.Clone(r.Steps)
	return &c
}

func (r *routineRepository) GetLatest(ctx context.Context, userID types.UserID) (*model.Routine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *model.Routine
	for _, rt := range r.routines {
		if rt.UserID != userID {
			continue
		}
		if latest == nil || rt.UpdatedAt.After(latest.UpdatedAt) {
			latest = rt
		}
	}
	if latest == nil {
		return nil, nil
	}
	return copyRoutine(latest), nil
}

func (r *routineRepository) Save(ctx context.Context, routine *model.Routine) (*model.Routine, error) {
	if routine.UserID.IsAnonymous() {
		return nil, goerr.New("routine requires a user ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	stored := copyRoutine(routine)
	if stored.ID == "" {
		stored.ID = stored.ContentID()
	}
	if existing, ok := r.routines[stored.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	r.routines[stored.ID] = stored
	return copyRoutine(stored), nil
}
