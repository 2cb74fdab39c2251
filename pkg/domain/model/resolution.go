package model

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/dermis/pkg/domain/types"
)

// Message is a client-supplied conversation message
type Message struct {
	Role    types.Role
	Content string
}

// ResolveRequest is the input of one resolution
type ResolveRequest struct {
	UserID         types.UserID
	ConversationID types.ConversationID
	Messages       []*Message
	Images         [][]byte
}

// Validate checks the request
func (r *ResolveRequest) Validate() error {
	if len(r.Messages) == 0 {
		return goerr.New("at least one message is required")
	}
	hasUser := false
	for i, m := range r.Messages {
		if m == nil {
			return goerr.New("message is nil", goerr.V("index", i))
		}
		if !m.Role.IsClientRole() {
			return goerr.New("unsupported message role", goerr.V("index", i), goerr.V(RoleKey, m.Role))
		}
		if m.Role == types.RoleUser {
			hasUser = true
		}
	}
	if !hasUser {
		return goerr.New("at least one user message is required")
	}
	return nil
}

// Resolution is the outcome of one resolution. It always carries a message.
type Resolution struct {
	ConversationID types.ConversationID
	Message        string
	Products       []*ProductRecord
	Title          string
	State          types.ResolutionState
	Rounds         int
	SideEffects    []*SideEffect
	Signal         *VisualSignal
}
