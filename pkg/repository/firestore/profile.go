package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/dermis/pkg/domain/interfaces"
	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type profileRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.ProfileRepository = &profileRepository{}

func newProfileRepository(client *firestore.Client) *profileRepository {
	return &profileRepository{
		client: client,
	}
}

// profileDoc is the Firestore persistence model, keyed by user ID
type profileDoc struct {
	ID            string    `firestore:"id"`
	UserID        string    `firestore:"user_id"`
	SkinType      string    `firestore:"skin_type"`
	Concerns      []string  `firestore:"concerns"`
	Sensitivities []string  `firestore:"sensitivities"`
	Goals         []string  `firestore:"goals"`
	Budget        float64   `firestore:"budget"`
	CreatedAt     time.Time `firestore:"created_at"`
	UpdatedAt     time.Time `firestore:"updated_at"`
}

func (r *profileRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, profilesCollection))
}

func (r *profileRepository) toDoc(p *model.Profile) *profileDoc {
	return &profileDoc{
		ID:            string(p.ID),
		UserID:        string(p.UserID),
		SkinType:      string(p.SkinType),
		Concerns:      p.Concerns,
		Sensitivities: p.Sensitivities,
		Goals:         p.Goals,
		Budget:        p.Budget,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func (r *profileRepository) fromDoc(doc *profileDoc) *model.Profile {
	return &model.Profile{
		ID:            types.ProfileID(doc.ID),
		UserID:        types.UserID(doc.UserID),
		SkinType:      types.SkinType(doc.SkinType),
		Concerns:      doc.Concerns,
		Sensitivities: doc.Sensitivities,
		Goals:         doc.Goals,
		Budget:        doc.Budget,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
}

func (r *profileRepository) Get(ctx context.Context, userID types.UserID) (*model.Profile, error) {
	doc, err := r.collection().Doc(string(userID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get profile", goerr.V("userID", userID))
	}

	var pd profileDoc
	if err := doc.DataTo(&pd); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal profile", goerr.V("userID", userID))
	}

	return r.fromDoc(&pd), nil
}

func (r *profileRepository) Put(ctx context.Context, profile *model.Profile) (*model.Profile, error) {
	if profile.UserID.IsAnonymous() {
		return nil, goerr.New("profile requires a user ID")
	}

	stored := *profile
	ref := r.collection().Doc(string(profile.UserID))

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		now := time.Now().UTC()
		stored.CreatedAt = now
		stored.UpdatedAt = now

		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil && snap.Exists() {
			var existing profileDoc
			if err := snap.DataTo(&existing); err != nil {
				return err
			}
			stored.CreatedAt = existing.CreatedAt
			if stored.ID == "" {
				stored.ID = types.ProfileID(existing.ID)
			}
		}
		if stored.ID == "" {
			stored.ID = types.NewProfileID()
		}

		return tx.Set(ref, r.toDoc(&stored))
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to put profile", goerr.V("userID", profile.UserID))
	}

	return &stored, nil
}
