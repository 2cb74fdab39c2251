package model

import (
	"time"

	"github.com/secmon-lab/dermis/pkg/domain/types"
)

// HistoryTurn is a persisted conversation message
type HistoryTurn struct {
	ConversationID types.ConversationID
	UserID         types.UserID
	Role           types.Role
	Content        string
	CreatedAt      time.Time
}
