package memory

import (
	"context"
	"sync"
	"time"

	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
)

type historyRepository struct {
	mu    sync.RWMutex
	turns map[types.ConversationID][]*model.HistoryTurn
}

func newHistoryRepository() *historyRepository {
	return &historyRepository{
		turns: make(map[types.ConversationID][]*model.HistoryTurn),
	}
}

func (r *historyRepository) Append(ctx context.Context, conversationID types.ConversationID, turns ...*model.HistoryTurn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for _, t := range turns {
		c := *t
		c.ConversationID = conversationID
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		r.turns[conversationID] = append(r.turns[conversationID], &c)
	}
	return nil
}

func (r *historyRepository) Recent(ctx context.Context, conversationID types.ConversationID, limit int) ([]*model.HistoryTurn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.turns[conversationID]
	start := 0
	if limit > 0 && len(all) > limit {
		start = len(all) - limit
	}

	result := make([]*model.HistoryTurn, 0, len(all)-start)
	for _, t := range all[start:] {
		c := *t
		result = append(result, &c)
	}
	return result, nil
}
