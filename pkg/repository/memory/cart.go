package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
)

type cartKey struct {
	userID    types.UserID
	productID types.ProductID
}

type cartRepository struct {
	mu    sync.RWMutex
	items map[cartKey]*model.CartItem
}

func newCartRepository() *cartRepository {
	return &cartRepository{
		items: make(map[cartKey]*model.CartItem),
	}
}

func (r *cartRepository) UpsertItem(ctx context.Context, userID types.UserID, productID types.ProductID, quantity int) (*model.CartItem, error) {
	if quantity <= 0 {
		return nil, goerr.New("quantity must be positive", goerr.V("quantity", quantity))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	item := &model.CartItem{
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		UpdatedAt: time.Now().UTC(),
	}
	r.items[cartKey{userID: userID, productID: productID}] = item

	c := *item
	return &c, nil
}

func (r *cartRepository) RemoveItem(ctx context.Context, userID types.UserID, productID types.ProductID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := cartKey{userID: userID, productID: productID}
	if _, ok := r.items[key]; !ok {
		return false, nil
	}
	delete(r.items, key)
	return true, nil
}

func (r *cartRepository) List(ctx context.Context, userID types.UserID) ([]*model.CartItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []*model.CartItem{}
	for key, item := range r.items {
		if key.userID == userID {
			c := *item
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ProductID < result[j].ProductID
	})
	return result, nil
}
