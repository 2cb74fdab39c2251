package model

import (
	"time"

	"github.com/secmon-lab/dermis/pkg/domain/types"
)

// Profile is a user's stored skin profile
type Profile struct {
	ID            types.ProfileID
	UserID        types.UserID
	SkinType      types.SkinType
	Concerns      []string
	Sensitivities []string
	Goals         []string
	Budget        float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Summary returns the fields exposed to the model
func (p *Profile) Summary() map[string]any {
	m := map[string]any{
		"profile_id": p.ID.String(),
		"skin_type":  p.SkinType.String(),
	}
	if len(p.Concerns) > 0 {
		m["concerns"] = p.Concerns
	}
	if len(p.Sensitivities) > 0 {
		m["sensitivities"] = p.Sensitivities
	}
	if len(p.Goals) > 0 {
		m["goals"] = p.Goals
	}
	if p.Budget > 0 {
		m["budget"] = p.Budget
	}
	return m
}
