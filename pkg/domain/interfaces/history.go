package interfaces

import (
	"context"

	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
)

// HistoryRepository is an append-only store of conversation messages
type HistoryRepository interface {
	Append(ctx context.Context, conversationID types.ConversationID, turns ...*model.HistoryTurn) error
	// Recent returns at most limit turns, oldest first.
	Recent(ctx context.Context, conversationID types.ConversationID, limit int) ([]*model.HistoryTurn, error)
}
