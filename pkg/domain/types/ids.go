package types

import (
	"regexp"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

var productIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]{0,127}$`)

// UserID identifies an end user. An empty UserID means the request is anonymous.
type UserID string

func (x UserID) String() string { return string(x) }

// IsAnonymous reports whether no user is associated.
func (x UserID) IsAnonymous() bool { return x == "" }

// ConversationID identifies a chat conversation.
type ConversationID string

func (x ConversationID) String() string { return string(x) }

// NewConversationID generates a time-ordered conversation ID.
func NewConversationID() ConversationID {
	return ConversationID(uuid.Must(uuid.NewV7()).String())
}

// ProductID identifies a catalog product.
type ProductID string

func (x ProductID) String() string { return string(x) }

// Validate checks the product ID format.
func (x ProductID) Validate() error {
	if x == "" {
		return goerr.New("product ID cannot be empty")
	}
	if !productIDPattern.MatchString(string(x)) {
		return goerr.New("product ID has invalid format", goerr.V("id", x))
	}
	return nil
}

// ProfileID identifies a stored skin profile.
type ProfileID string

func (x ProfileID) String() string { return string(x) }

// NewProfileID generates a profile ID.
func NewProfileID() ProfileID {
	return ProfileID(uuid.New().String())
}

// RoutineID identifies a stored routine document.
type RoutineID string

func (x RoutineID) String() string { return string(x) }

// CallID identifies a single capability call within a conversation.
type CallID string

func (x CallID) String() string { return string(x) }

// NewCallID generates a call ID for calls the provider issued without one.
func NewCallID() CallID {
	return CallID("call-" + uuid.New().String())
}
