package repository_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/dermis/pkg/domain/interfaces"
	"github.com/secmon-lab/dermis/pkg/domain/types"
)

func runCartRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("UpsertItem is idempotent per product", func(t *testing.T) {
		repo := newRepo(t)
		userID := types.UserID(fmt.Sprintf("u-%d", time.Now().UnixNano()))

		_, err := repo.Cart().UpsertItem(t.Context(), userID, "serum-01", 1)
		gt.NoError(t, err).Required()
		item, err := repo.Cart().UpsertItem(t.Context(), userID, "serum-01", 3)
		gt.NoError(t, err).Required()
		gt.Value(t, item.Quantity).Equal(3)
		_, err = repo.Cart().UpsertItem(t.Context(), userID, "serum-01", 3)
		gt.NoError(t, err).Required()

		items, err := repo.Cart().List(t.Context(), userID)
		gt.NoError(t, err).Required()
		gt.Array(t, items).Length(1)
		gt.Value(t, items[0].ProductID).Equal(types.ProductID("serum-01"))
		gt.Value(t, items[0].Quantity).Equal(3)
	})

	t.Run("List is ordered by product and scoped per user", func(t *testing.T) {
		repo := newRepo(t)
		userID := types.UserID(fmt.Sprintf("u-%d", time.Now().UnixNano()))
		other := types.UserID(fmt.Sprintf("o-%d", time.Now().UnixNano()))

		_, err := repo.Cart().UpsertItem(t.Context(), userID, "toner-02", 1)
		gt.NoError(t, err).Required()
		_, err = repo.Cart().UpsertItem(t.Context(), userID, "cream-01", 2)
		gt.NoError(t, err).Required()
		_, err = repo.Cart().UpsertItem(t.Context(), other, "mask-09", 1)
		gt.NoError(t, err).Required()

		items, err := repo.Cart().List(t.Context(), userID)
		gt.NoError(t, err).Required()
		gt.Array(t, items).Length(2)
		gt.Value(t, items[0].ProductID).Equal(types.ProductID("cream-01"))
		gt.Value(t, items[1].ProductID).Equal(types.ProductID("toner-02"))
	})

	t.Run("RemoveItem reports whether the line existed", func(t *testing.T) {
		repo := newRepo(t)
		userID := types.UserID(fmt.Sprintf("u-%d", time.Now().UnixNano()))

		_, err := repo.Cart().UpsertItem(t.Context(), userID, "serum-01", 1)
		gt.NoError(t, err).Required()

		removed, err := repo.Cart().RemoveItem(t.Context(), userID, "serum-01")
		gt.NoError(t, err).Required()
		gt.Bool(t, removed).True()

		removed, err = repo.Cart().RemoveItem(t.Context(), userID, "serum-01")
		gt.NoError(t, err).Required()
		gt.Bool(t, removed).False()

		items, err := repo.Cart().List(t.Context(), userID)
		gt.NoError(t, err).Required()
		gt.Array(t, items).Length(0)
	})

	t.Run("UpsertItem rejects non-positive quantity", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Cart().UpsertItem(t.Context(), "u-1", "serum-01", 0)
		gt.Value(t, err).NotNil()
	})
}

func TestMemoryCartRepository(t *testing.T) {
	runCartRepositoryTest(t, newMemoryRepository)
}

func TestFirestoreCartRepository(t *testing.T) {
	runCartRepositoryTest(t, newFirestoreRepository)
}
