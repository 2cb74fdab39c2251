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

type profileRepository struct {
	mu       sync.RWMutex
	profiles map[types.UserID]*model.Profile
}

func newProfileRepository() *profileRepository {
	return &profileRepository{
		profiles: make(map[types.UserID]*model.Profile),
	}
}

func copyProfile(p *model.Profile) *model.Profile {
	c := *p
	c.Concerns = slices.Clone(p.Concerns)
	c.Sensitivities = slices.Clone(p.Sensitivities)
	c.Goals = slices.Clone(p.Goals)
	return &c
}

func (r *profileRepository) Get(ctx context.Context, userID types.UserID) (*model.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[userID]
	if !ok {
		return nil, nil
	}
	return copyProfile(p), nil
}

func (r *profileRepository) Put(ctx context.Context, profile *model.Profile) (*model.Profile, error) {
	if profile.UserID.IsAnonymous() {
		return nil, goerr.New("profile requires a user ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	stored := copyProfile(profile)
	if existing, ok := r.profiles[profile.UserID]; ok {
		stored.CreatedAt = existing.CreatedAt
		if stored.ID == "" {
			stored.ID = existing.ID
		}
	} else {
		stored.CreatedAt = now
	}
	if stored.ID == "" {
		stored.ID = types.NewProfileID()
	}
	stored.UpdatedAt = now

	r.profiles[stored.UserID] = stored
	return copyProfile(stored), nil
}
