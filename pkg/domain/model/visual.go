package model

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/dermis/pkg/domain/types"
)

// Concern labels attached to a VisualSignal
const (
	ConcernExcessOil     = "excess_oil"
	ConcernDehydration   = "dehydration"
	ConcernUnevenTexture = "uneven_texture"
)

// VisualSignal is a set of normalized skin-condition scores derived from photos.
// Consumers must not depend on which analyzer produced it.
type VisualSignal struct {
	Hydration    float64        `json:"hydration"`
	Oiliness     float64        `json:"oiliness"`
	Texture      float64        `json:"texture"`
	DetectedType types.SkinType `json:"detected_type"`
	Concerns     []string       `json:"concerns"`
	Confidence   float64        `json:"confidence"`
}

// Validate checks that every score lies in [0,1]
func (v *VisualSignal) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"hydration", v.Hydration},
		{"oiliness", v.Oiliness},
		{"texture", v.Texture},
		{"confidence", v.Confidence},
	}
	for _, f := range fields {
		if f.value < 0 || f.value > 1 {
			return goerr.Wrap(ErrInvalidSignal, "score out of range",
				goerr.V(FieldKey, f.name),
				goerr.V("value", f.value),
			)
		}
	}
	if !v.DetectedType.IsValid() {
		return goerr.Wrap(ErrInvalidSignal, "unknown skin type", goerr.V("type", v.DetectedType))
	}
	return nil
}
