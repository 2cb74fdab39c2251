package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/dermis/pkg/domain/interfaces"
)

// Collection names. A collection prefix, when configured, is joined with "_".
const (
	profilesCollection      = "profiles"
	routinesCollection      = "routines"
	cartsCollection         = "carts"
	cartItemsCollection     = "items"
	productsCollection      = "products"
	conversationsCollection = "conversations"
	turnsCollection         = "turns"

	// Maximum document references per GetAll
	firestoreGetAllLimit = 30
	// Maximum values for an array-contains-any filter
	firestoreContainsAnyLimit = 30
)

type Firestore struct {
	client  *firestore.Client
	profile *profileRepository
	routine *routineRepository
	cart    *cartRepository
	catalog *catalogRepository
	history *historyRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix namespaces every top-level collection, used by tests
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.profile.collectionPrefix = prefix
		f.routine.collectionPrefix = prefix
		f.cart.collectionPrefix = prefix
		f.catalog.collectionPrefix = prefix
		f.history.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID))
	}

	f := &Firestore{
		client:  client,
		profile: newProfileRepository(client),
		routine: newRoutineRepository(client),
		cart:    newCartRepository(client),
		catalog: newCatalogRepository(client),
		history: newHistoryRepository(client),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Profile() interfaces.ProfileRepository {
	return f.profile
}

func (f *Firestore) Routine() interfaces.RoutineRepository {
	return f.routine
}

func (f *Firestore) Cart() interfaces.CartRepository {
	return f.cart
}

func (f *Firestore) Catalog() interfaces.CatalogRepository {
	return f.catalog
}

func (f *Firestore) History() interfaces.HistoryRepository {
	return f.history
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func collectionName(prefix, name string) string {
	if prefix != "" {
		return prefix + "_" + name
	}
	return name
}
