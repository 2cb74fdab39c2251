package capability

import (
	"context"

	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/dermis/pkg/agent/tool"
	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
	"github.com/secmon-lab/dermis/pkg/service/governor"
)

type getProfile struct {
	set *Set
}

func (c *getProfile) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        types.CapabilityGetProfile.String(),
		Description: "Get the signed-in user's stored skin profile: skin type, concerns, sensitivities, goals and budget",
		Parameters:  map[string]*gollem.Parameter{},
	}
}

func (c *getProfile) parse(args map[string]any) (model.CapabilityArgs, error) {
	if err := rejectUnknown(args); err != nil {
		return nil, err
	}
	return model.GetProfileArgs{}, nil
}

func (c *getProfile) run(ctx context.Context, scope Scope, _ model.CapabilityArgs) (*outcome, error) {
	tool.Update(ctx, "Loading skin profile...")

	profile, err := c.set.loadProfile(ctx, scope.UserID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return &outcome{payload: map[string]any{"found": false}}, nil
	}
	return &outcome{payload: map[string]any{
		"found":   true,
		"profile": profile.Summary(),
	}}, nil
}

func (s *Set) loadProfile(ctx context.Context, userID types.UserID) (*model.Profile, error) {
	return governor.Cached(ctx, s.cache, profileKey(userID), s.cfg.ProfileTTL,
		func(ctx context.Context) (*model.Profile, error) {
			return s.repo.Profile().Get(ctx, userID)
		})
}
