package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/dermis/pkg/domain/types"
)

// Turn is one entry of a conversation transcript.
// Assistant turns may carry Calls; capability turns carry exactly one Result.
type Turn struct {
	Role      types.Role
	Content   string
	Calls     []*CapabilityCall
	Result    *CapabilityResult
	CreatedAt time.Time
}

// Validate checks the shape of a single turn
func (t *Turn) Validate() error {
	if !t.Role.IsValid() {
		return goerr.Wrap(ErrInvalidTurn, "unknown role", goerr.V(RoleKey, t.Role))
	}
	if len(t.Calls) > 0 && t.Role != types.RoleAssistant {
		return goerr.Wrap(ErrInvalidTurn, "only assistant turns may issue calls", goerr.V(RoleKey, t.Role))
	}
	if t.Role == types.RoleCapability && t.Result == nil {
		return goerr.Wrap(ErrInvalidTurn, "capability turn requires a result")
	}
	if t.Role != types.RoleCapability && t.Result != nil {
		return goerr.Wrap(ErrInvalidTurn, "only capability turns may carry a result", goerr.V(RoleKey, t.Role))
	}
	return nil
}

// Conversation is an ordered transcript that enforces call/result pairing:
// each capability turn must answer a call issued by the immediately preceding
// assistant turn, and each call is answered at most once.
type Conversation struct {
	ID    types.ConversationID
	turns []*Turn

	pending  map[types.CallID]bool
	answered map[types.CallID]bool
}

// NewConversation creates an empty conversation
func NewConversation(id types.ConversationID) *Conversation {
	return &Conversation{ID: id}
}

// Append adds turn to the transcript or rejects it.
func (c *Conversation) Append(turn *Turn) error {
	if turn == nil {
		return goerr.Wrap(ErrInvalidTurn, "turn is nil")
	}
	if err := turn.Validate(); err != nil {
		return err
	}

	switch turn.Role {
	case types.RoleCapability:
		id := turn.Result.CallID
		if !c.pending[id] {
			return goerr.Wrap(ErrOrphanedResult, "no pending call for result", goerr.V(CallIDKey, id))
		}
		if c.answered[id] {
			return goerr.Wrap(ErrOrphanedResult, "call already answered", goerr.V(CallIDKey, id))
		}
		c.answered[id] = true

	case types.RoleAssistant:
		c.pending = make(map[types.CallID]bool, len(turn.Calls))
		c.answered = make(map[types.CallID]bool, len(turn.Calls))
		for _, call := range turn.Calls {
			c.pending[call.ID] = true
		}

	default:
		c.pending = nil
		c.answered = nil
	}

	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	c.turns = append(c.turns, turn)
	return nil
}

// Turns returns the transcript in order. The slice must not be modified.
func (c *Conversation) Turns() []*Turn {
	return c.turns
}

// Len returns the number of turns
func (c *Conversation) Len() int {
	return len(c.turns)
}

// Unanswered returns call IDs of the last assistant turn that have no result yet.
func (c *Conversation) Unanswered() []types.CallID {
	if len(c.turns) == 0 {
		return nil
	}

	var last *Turn
	for i := len(c.turns) - 1; i >= 0; i-- {
		if c.turns[i].Role != types.RoleCapability {
			last = c.turns[i]
			break
		}
	}
	if last == nil || last.Role != types.RoleAssistant {
		return nil
	}

	var ids []types.CallID
	for _, call := range last.Calls {
		if !c.answered[call.ID] {
			ids = append(ids, call.ID)
		}
	}
	return ids
}

// LastUserMessage returns the content of the most recent user turn.
func (c *Conversation) LastUserMessage() string {
	for i := len(c.turns) - 1; i >= 0; i-- {
		if c.turns[i].Role == types.RoleUser {
			return c.turns[i].Content
		}
	}
	return ""
}
