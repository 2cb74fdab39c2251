package types

// ResolutionState is the terminal state of one resolution
type ResolutionState string

const (
	ResolutionSuccess         ResolutionState = "success"
	ResolutionBudgetExhausted ResolutionState = "budget_exhausted"
	ResolutionProviderTimeout ResolutionState = "provider_timeout"
)

// IsValid checks if the state is one of the terminal states
func (s ResolutionState) IsValid() bool {
	switch s {
	case ResolutionSuccess, ResolutionBudgetExhausted, ResolutionProviderTimeout:
		return true
	default:
		return false
	}
}

// IsDegraded reports whether the reply was produced by a fallback path.
func (s ResolutionState) IsDegraded() bool {
	return s != ResolutionSuccess
}

func (s ResolutionState) String() string {
	return string(s)
}
