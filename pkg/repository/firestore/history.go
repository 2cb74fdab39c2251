package firestore

import (
	"context"
	"fmt"
	"slices"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/dermis/pkg/domain/interfaces"
	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
	"google.golang.org/api/iterator"
)

type historyRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.HistoryRepository = &historyRepository{}

func newHistoryRepository(client *firestore.Client) *historyRepository {
	return &historyRepository{
		client: client,
	}
}

type historyTurnDoc struct {
	ConversationID string    `firestore:"conversation_id"`
	UserID         string    `firestore:"user_id"`
	Role           string    `firestore:"role"`
	Content        string    `firestore:"content"`
	Seq            int64     `firestore:"seq"`
	CreatedAt      time.Time `firestore:"created_at"`
}

// turnsCollection is conversations/{conversationID}/turns
func (r *historyRepository) turnsCollection(conversationID types.ConversationID) *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, conversationsCollection)).
		Doc(string(conversationID)).
		Collection(turnsCollection)
}

func (r *historyRepository) Append(ctx context.Context, conversationID types.ConversationID, turns ...*model.HistoryTurn) error {
	if len(turns) == 0 {
		return nil
	}

	bulkWriter := r.client.BulkWriter(ctx)
	defer bulkWriter.End()

	now := time.Now().UTC()
	for i, t := range turns {
		createdAt := t.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		// seq keeps turns appended in one call ordered even when their timestamps tie
		seq := createdAt.UnixNano() + int64(i)
		doc := &historyTurnDoc{
			ConversationID: string(conversationID),
			UserID:         string(t.UserID),
			Role:           string(t.Role),
			Content:        t.Content,
			Seq:            seq,
			CreatedAt:      createdAt,
		}

		ref := r.turnsCollection(conversationID).Doc(fmt.Sprintf("%020d-%s", seq, uuid.NewString()[:8]))
		if _, err := bulkWriter.Create(ref, doc); err != nil {
			return goerr.Wrap(err, "failed to add Create operation to bulk writer",
				goerr.V("conversationID", conversationID))
		}
	}

	bulkWriter.Flush()
	return nil
}

func (r *historyRepository) Recent(ctx context.Context, conversationID types.ConversationID, limit int) ([]*model.HistoryTurn, error) {
	q := r.turnsCollection(conversationID).OrderBy("seq", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	turns := []*model.HistoryTurn{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate history", goerr.V("conversationID", conversationID))
		}

		var d historyTurnDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal history turn", goerr.V("docID", doc.Ref.ID))
		}

		turns = append(turns, &model.HistoryTurn{
			ConversationID: types.ConversationID(d.ConversationID),
			UserID:         types.UserID(d.UserID),
			Role:           types.Role(d.Role),
			Content:        d.Content,
			CreatedAt:      d.CreatedAt,
		})
	}

	slices.Reverse(turns)
	return turns, nil
}
