package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/dermis/pkg/domain/types"
)

// RoutineStep is one ordered step of a skincare routine
type RoutineStep struct {
	Period      types.RoutinePeriod
	ProductID   types.ProductID
	Instruction string
}

// Validate checks the step
func (s *RoutineStep) Validate() error {
	if !s.Period.IsValid() {
		return goerr.New("invalid routine period", goerr.V("period", s.Period))
	}
	if s.ProductID == "" && s.Instruction == "" {
		return goerr.Wrap(ErrEmptyInstruction, "empty routine step")
	}
	return nil
}

// Routine is a saved routine document
type Routine struct {
	ID        types.RoutineID
	UserID    types.UserID
	ProfileID types.ProfileID
	Title     string
	Steps     []RoutineStep
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ContentID derives a stable ID from the owner and content, so saving the same
// routine twice writes the same document.
func (r *Routine) ContentID() types.RoutineID {
	h := sha256.New()
	h.Write([]byte(r.UserID))
	h.Write([]byte{0})
	h.Write([]byte(r.Title))
	for _, s := range r.Steps {
		h.Write([]byte{0})
		h.Write([]byte(s.Period))
		h.Write([]byte{0})
		h.Write([]byte(s.ProductID))
		h.Write([]byte{0})
		h.Write([]byte(s.Instruction))
	}
	return types.RoutineID("rt-" + hex.EncodeToString(h.Sum(nil))[:24])
}

// Summary returns the fields exposed to the model
func (r *Routine) Summary() map[string]any {
	steps := make([]map[string]any, len(r.Steps))
	for i, s := range r.Steps {
		step := map[string]any{
			"order":  i + 1,
			"period": s.Period.String(),
		}
		if s.ProductID != "" {
			step["product_id"] = s.ProductID.String()
		}
		if s.Instruction != "" {
			step["instruction"] = s.Instruction
		}
		steps[i] = step
	}
	return map[string]any{
		"routine_id": r.ID.String(),
		"title":      r.Title,
		"steps":      steps,
		"updated_at": r.UpdatedAt.Format(time.RFC3339),
	}
}
