package model

import (
	"github.com/secmon-lab/dermis/pkg/domain/types"
)

// CallRequest is a capability call exactly as the completion provider issued it.
// Arguments are untrusted until validated into a CapabilityCall.
type CallRequest struct {
	ID        types.CallID
	Name      string
	Arguments map[string]any
}

// CapabilityArgs is the closed set of typed capability arguments.
// Only types in this package can satisfy it.
type CapabilityArgs interface {
	Capability() types.CapabilityName
	isCapabilityArgs()
}

// GetProfileArgs requests the caller's skin profile
type GetProfileArgs struct{}

// GetRoutineArgs requests the caller's latest saved routine
type GetRoutineArgs struct{}

// SearchProductsArgs requests a catalog search
type SearchProductsArgs struct {
	Query    string
	Category string
	SkinType types.SkinType
	Concerns []string
	MaxPrice float64
	Limit    int
}

// GetProductArgs requests one product by ID
type GetProductArgs struct {
	ProductID types.ProductID
}

// CompareProductsArgs requests a side-by-side comparison
type CompareProductsArgs struct {
	ProductIDs []types.ProductID
}

// UpdateCartArgs sets the quantity of a cart line. Quantity zero removes it.
type UpdateCartArgs struct {
	ProductID types.ProductID
	Quantity  int
}

// SaveRoutineArgs replaces the caller's routine
type SaveRoutineArgs struct {
	Title string
	Steps []RoutineStep
}

func (GetProfileArgs) Capability() types.CapabilityName { return types.CapabilityGetProfile }
func (GetRoutineArgs) Capability() types.CapabilityName { return types.CapabilityGetRoutine }
func (SearchProductsArgs) Capability() types.CapabilityName {
	return types.CapabilitySearchProducts
}
func (GetProductArgs) Capability() types.CapabilityName { return types.CapabilityGetProduct }
func (CompareProductsArgs) Capability() types.CapabilityName {
	return types.CapabilityCompareProducts
}
func (UpdateCartArgs) Capability() types.CapabilityName  { return types.CapabilityUpdateCart }
func (SaveRoutineArgs) Capability() types.CapabilityName { return types.CapabilitySaveRoutine }

func (GetProfileArgs) isCapabilityArgs()      {}
func (GetRoutineArgs) isCapabilityArgs()      {}
func (SearchProductsArgs) isCapabilityArgs()  {}
func (GetProductArgs) isCapabilityArgs()      {}
func (CompareProductsArgs) isCapabilityArgs() {}
func (UpdateCartArgs) isCapabilityArgs()      {}
func (SaveRoutineArgs) isCapabilityArgs()     {}

// CapabilityCall is a validated call. Exactly one of Args or Rejection is set:
// a rejected call carries the reason and is never executed.
type CapabilityCall struct {
	ID        types.CallID
	Name      string
	Arguments map[string]any
	Args      CapabilityArgs
	Rejection string
}

// NewAcceptedCall builds a call that passed validation.
func NewAcceptedCall(id types.CallID, raw map[string]any, args CapabilityArgs) *CapabilityCall {
	return &CapabilityCall{
		ID:        id,
		Name:      args.Capability().String(),
		Arguments: raw,
		Args:      args,
	}
}

// NewRejectedCall builds a call that failed validation.
func NewRejectedCall(id types.CallID, name string, raw map[string]any, reason string) *CapabilityCall {
	return &CapabilityCall{
		ID:        id,
		Name:      name,
		Arguments: raw,
		Rejection: reason,
	}
}

// Rejected reports whether the call failed validation.
func (c *CapabilityCall) Rejected() bool {
	return c.Args == nil
}

// CapabilityResult is the outcome of one call. Err is set instead of Payload on failure.
type CapabilityResult struct {
	CallID  types.CallID
	Name    string
	Payload map[string]any
	Err     string

	// Products lists catalog records surfaced by the call, for the response product list.
	Products []*ProductRecord
	// SideEffect is set when the call mutated a store.
	SideEffect *SideEffect
}

// NewErrorResult builds a failed result for call.
func NewErrorResult(call *CapabilityCall, reason string) *CapabilityResult {
	return &CapabilityResult{
		CallID: call.ID,
		Name:   call.Name,
		Err:    reason,
	}
}

// Failed reports whether the call failed.
func (r *CapabilityResult) Failed() bool {
	return r.Err != ""
}

// Data returns the payload as folded into the transcript: either the payload or {error}.
func (r *CapabilityResult) Data() map[string]any {
	if r.Failed() {
		return map[string]any{"error": r.Err}
	}
	if r.Payload == nil {
		return map[string]any{}
	}
	return r.Payload
}

// SideEffect records a store mutation performed during resolution.
// Side effects are at-least-once and are never rolled back. A mutating call that hit
// its deadline is reported only as a timed-out error result and has no SideEffect,
// although the write may still have been applied in the background.
type SideEffect struct {
	CallID     types.CallID
	Capability types.CapabilityName
	Resource   string
	Summary    string
}
