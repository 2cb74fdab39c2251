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

type cartRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.CartRepository = &cartRepository{}

func newCartRepository(client *firestore.Client) *cartRepository {
	return &cartRepository{
		client: client,
	}
}

type cartItemDoc struct {
	UserID    string    `firestore:"user_id"`
	ProductID string    `firestore:"product_id"`
	Quantity  int       `firestore:"quantity"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// itemsCollection is carts/{userID}/items; the product ID is the document ID
func (r *cartRepository) itemsCollection(userID types.UserID) *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, cartsCollection)).
		Doc(string(userID)).
		Collection(cartItemsCollection)
}

func (r *cartRepository) UpsertItem(ctx context.Context, userID types.UserID, productID types.ProductID, quantity int) (*model.CartItem, error) {
	if quantity <= 0 {
		return nil, goerr.New("quantity must be positive", goerr.V("quantity", quantity))
	}

	item := &model.CartItem{
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		UpdatedAt: time.Now().UTC(),
	}

	doc := &cartItemDoc{
		UserID:    string(userID),
		ProductID: string(productID),
		Quantity:  quantity,
		UpdatedAt: item.UpdatedAt,
	}
	if _, err := r.itemsCollection(userID).Doc(string(productID)).Set(ctx, doc); err != nil {
		return nil, goerr.Wrap(err, "failed to upsert cart item",
			goerr.V("userID", userID),
			goerr.V("productID", productID))
	}

	return item, nil
}

func (r *cartRepository) RemoveItem(ctx context.Context, userID types.UserID, productID types.ProductID) (bool, error) {
	ref := r.itemsCollection(userID).Doc(string(productID))

	var existed bool
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existed = false
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return err
		}
		if !snap.Exists() {
			return nil
		}
		existed = true
		return tx.Delete(ref)
	})
	if err != nil {
		return false, goerr.Wrap(err, "failed to remove cart item",
			goerr.V("userID", userID),
			goerr.V("productID", productID))
	}

	return existed, nil
}

func (r *cartRepository) List(ctx context.Context, userID types.UserID) ([]*model.CartItem, error) {
	iter := r.itemsCollection(userID).OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx)
	defer iter.Stop()

	items := []*model.CartItem{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate cart items", goerr.V("userID", userID))
		}

		var d cartItemDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal cart item", goerr.V("docID", doc.Ref.ID))
		}

		items = append(items, &model.CartItem{
			UserID:    types.UserID(d.UserID),
			ProductID: types.ProductID(d.ProductID),
			Quantity:  d.Quantity,
			UpdatedAt: d.UpdatedAt,
		})
	}

	return items, nil
}
