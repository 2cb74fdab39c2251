package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/dermis/pkg/domain/interfaces"
	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type routineRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.RoutineRepository = &routineRepository{}

func newRoutineRepository(client *firestore.Client) *routineRepository {
	return &routineRepository{
		client: client,
	}
}

type routineStepDoc struct {
	Period      string `firestore:"period"`
	ProductID   string `firestore:"product_id"`
	Instruction string `firestore:"instruction"`
}

type routineDoc struct {
	ID        string           `firestore:"id"`
	UserID    string           `firestore:"user_id"`
	ProfileID string           `firestore:"profile_id"`
	Title     string           `firestore:"title"`
	Steps     []routineStepDoc `firestore:"steps"`
	CreatedAt time.Time        `firestore:"created_at"`
	UpdatedAt time.Time        `firestore:"updated_at"`
}

func (r *routineRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, routinesCollection))
}

func (r *routineRepository) toDoc(rt *model.Routine) *routineDoc {
	steps := make([]routineStepDoc, len(rt.Steps))
	for i, s := range rt.Steps {
		steps[i] = routineStepDoc{
			Period:      string(s.Period),
			ProductID:   string(s.ProductID),
			Instruction: s.Instruction,
		}
	}
	return &routineDoc{
		ID:        string(rt.ID),
		UserID:    string(rt.UserID),
		ProfileID: string(rt.ProfileID),
		Title:     rt.Title,
		Steps:     steps,
		CreatedAt: rt.CreatedAt,
		UpdatedAt: rt.UpdatedAt,
	}
}

func (r *routineRepository) fromDoc(doc *routineDoc) *model.Routine {
	steps := make([]model.RoutineStep, len(doc.Steps))
	for i, s := range doc.Steps {
		steps[i] = model.RoutineStep{
			Period:      types.RoutinePeriod(s.Period),
			ProductID:   types.ProductID(s.ProductID),
			Instruction: s.Instruction,
		}
	}
	return &model.Routine{
		ID:        types.RoutineID(doc.ID),
		UserID:    types.UserID(doc.UserID),
		ProfileID: types.ProfileID(doc.ProfileID),
		Title:     doc.Title,
		Steps:     steps,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func (r *routineRepository) GetLatest(ctx context.Context, userID types.UserID) (*model.Routine, error) {
	iter := r.collection().
		Where("user_id", "==", string(userID)).
		OrderBy("updated_at", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query latest routine", goerr.V("userID", userID))
	}

	var rd routineDoc
	if err := doc.DataTo(&rd); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal routine", goerr.V("docID", doc.Ref.ID))
	}

	return r.fromDoc(&rd), nil
}

func (r *routineRepository) Save(ctx context.Context, routine *model.Routine) (*model.Routine, error) {
	if routine.UserID.IsAnonymous() {
		return nil, goerr.New("routine requires a user ID")
	}

	stored := *routine
	if stored.ID == "" {
		stored.ID = stored.ContentID()
	}
	ref := r.collection().Doc(string(stored.ID))

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		now := time.Now().UTC()
		stored.CreatedAt = now
		stored.UpdatedAt = now

		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil && snap.Exists() {
			var existing routineDoc
			if err := snap.DataTo(&existing); err != nil {
				return err
			}
			stored.CreatedAt = existing.CreatedAt
		}

		return tx.Set(ref, r.toDoc(&stored))
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to save routine", goerr.V("id", stored.ID))
	}

	return &stored, nil
}
