package inventory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/bookstore/internal/domain"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/repo"
	"github.com/Skotchmaster/bookstore/internal/testutil"
)

func TestReserveRelease_StockFiveScenario(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewRepo(t)
	l := New(r, nil)
	book := testutil.SeedBook(t, r, "A", 1000, 5)

	ok, err := l.Reserve(ctx, book.ID, 5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, testutil.Stock(t, r, book.ID))

	ok, err = l.Reserve(ctx, book.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, testutil.Stock(t, r, book.ID))

	ok, err = l.Release(ctx, book.ID, 5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5, testutil.Stock(t, r, book.ID))
}

func TestReserve_MoreThanAvailableLeavesStockAlone(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewRepo(t)
	l := New(r, nil)
	book := testutil.SeedBook(t, r, "B", 500, 3)

	for _, qty := range []int{4, 10, 100} {
		ok, err := l.Reserve(ctx, book.ID, qty)
		require.NoError(t, err)
		assert.False(t, ok, "qty %d", qty)
	}
	assert.Equal(t, 3, testutil.Stock(t, r, book.ID))
}

func TestReserveThenRelease_RoundTrip(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewRepo(t)
	l := New(r, nil)
	book := testutil.SeedBook(t, r, "C", 500, 17)

	ok, err := l.Reserve(ctx, book.ID, 9)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = l.Release(ctx, book.ID, 9)
	require.NoError(t, err)

	assert.Equal(t, 17, testutil.Stock(t, r, book.ID))
}

func TestUnknownBook(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewRepo(t)
	l := New(r, nil)

	in, err := l.IsInStock(ctx, 999, 1)
	require.NoError(t, err)
	assert.False(t, in)

	ok, err := l.Reserve(ctx, 999, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Release(ctx, 999, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := l.AvailableStock(ctx, 999)
	require.NoError(t, err)
	assert.Zero(t, n)

	err = l.SetStock(ctx, 999, 3)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIsInStock_InactiveBookAndBadQuantity(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewRepo(t)
	l := New(r, nil)
	book := testutil.SeedBook(t, r, "D", 100, 10)

	in, err := l.IsInStock(ctx, book.ID, 10)
	require.NoError(t, err)
	assert.True(t, in)

	in, err = l.IsInStock(ctx, book.ID, 0)
	require.NoError(t, err)
	assert.False(t, in)

	require.NoError(t, r.SoftDeleteBook(ctx, book.ID))
	in, err = l.IsInStock(ctx, book.ID, 1)
	require.NoError(t, err)
	assert.False(t, in)

	ok, err := l.Reserve(ctx, book.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok, "inactive books cannot be reserved")
}

func TestReserve_ConcurrentCallersNeverOversell(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewRepo(t)
	l := New(r, nil)
	book := testutil.SeedBook(t, r, "E", 100, 10)

	var (
		wg      sync.WaitGroup
		granted atomic.Int32
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Reserve(ctx, book.ID, 1)
			if err == nil && ok {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 10, granted.Load())
	assert.Equal(t, 0, testutil.Stock(t, r, book.ID))
}

func TestLowStockAndSetStock(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewRepo(t)
	l := New(r, nil)
	low := testutil.SeedBook(t, r, "low", 100, 2)
	testutil.SeedBook(t, r, "plenty", 100, 50)
	edge := testutil.SeedBook(t, r, "edge", 100, 5)

	books, err := l.LowStock(ctx, 5)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, low.ID, books[0].ID)
	assert.Equal(t, edge.ID, books[1].ID)

	require.NoError(t, l.SetStock(ctx, low.ID, 40))
	books, err = l.LowStock(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, books, 1)

	assert.ErrorIs(t, l.SetStock(ctx, low.ID, -1), domain.ErrValidation)
	_, err = l.LowStock(ctx, -1)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCanAddToCart_CountsExistingLine(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewRepo(t)
	l := New(r, nil)
	book := testutil.SeedBook(t, r, "F", 100, 5)
	user := testutil.SeedUser(t, r, "reader", "secret123", models.RoleCustomer)

	require.NoError(t, r.AddToCart(ctx, &models.CartItem{UserID: user.ID, BookID: book.ID, Quantity: 4}))

	ok, err := l.CanAddToCart(ctx, user.ID, book.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.CanAddToCart(ctx, user.ID, book.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWithTx_RollbackUndoesReservation(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewRepo(t)
	l := New(r, nil)
	book := testutil.SeedBook(t, r, "G", 100, 5)

	err := r.Tx(ctx, func(tx *repo.GormRepo) error {
		ok, err := l.WithTx(tx).Reserve(ctx, book.ID, 3)
		require.NoError(t, err)
		require.True(t, ok)
		return domain.ErrConflict
	})
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 5, testutil.Stock(t, r, book.ID))
}
