package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/bookstore/internal/cache"
	"github.com/Skotchmaster/bookstore/internal/domain"
	"github.com/Skotchmaster/bookstore/internal/events"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/repo"
	"github.com/Skotchmaster/bookstore/internal/service/inventory"
	"github.com/Skotchmaster/bookstore/internal/testutil"
)

type recordedEvent struct {
	topic string
	key   string
	event any
}

type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) PublishEvent(_ context.Context, topic, key string, event any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{topic: topic, key: key, event: event})
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		switch ev := e.event.(type) {
		case events.OrderCreated:
			out = append(out, ev.Type)
		case events.CheckoutCompleted:
			out = append(out, ev.Type)
		case events.OrderStatusChanged:
			out = append(out, ev.Type)
		}
	}
	return out
}

type fixture struct {
	repo   *repo.GormRepo
	svc    *Service
	events *recorder
	cache  *cache.Memory
	user   *models.User
	admin  domain.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	r := testutil.NewRepo(t)
	rec := &recorder{}
	mem := cache.NewMemory()
	t.Cleanup(func() { _ = mem.Close() })

	svc := New(r, inventory.New(r, nil), WithCache(mem), WithPublisher(rec))
	user := testutil.SeedUser(t, r, "buyer", "secret123", models.RoleCustomer)
	adminUser := testutil.SeedUser(t, r, "boss", "secret123", models.RoleAdmin)

	return &fixture{
		repo:   r,
		svc:    svc,
		events: rec,
		cache:  mem,
		user:   user,
		admin:  domain.Principal{UserID: adminUser.ID, Username: adminUser.Username, Role: models.RoleAdmin},
	}
}

func (f *fixture) customer() domain.Principal {
	return domain.Principal{UserID: f.user.ID, Username: f.user.Username, Role: models.RoleCustomer}
}

func (f *fixture) addToCart(t *testing.T, bookID uint, qty int) {
	t.Helper()
	require.NoError(t, f.repo.AddToCart(context.Background(), &models.CartItem{UserID: f.user.ID, BookID: bookID, Quantity: qty}))
}

func countOrders(t *testing.T, r *repo.GormRepo) int64 {
	t.Helper()
	n, err := r.CountOrders(context.Background())
	require.NoError(t, err)
	return n
}

func TestCreateOrder_ReservesAndSnapshotsPrice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	book := testutil.SeedBook(t, f.repo, "Dune", 1250, 5)

	o, err := f.svc.CreateOrder(ctx, CreateOrderInput{UserID: f.user.ID, BookID: book.ID, Quantity: 2, Phone: "555"})
	require.NoError(t, err)

	assert.NotZero(t, o.ID)
	assert.Len(t, o.Number, 26)
	assert.Equal(t, models.OrderPending, o.Status)
	assert.EqualValues(t, 1250, o.UnitPrice)
	assert.EqualValues(t, 2500, o.TotalPrice)
	assert.Equal(t, 3, testutil.Stock(t, f.repo, book.ID))
	assert.Equal(t, []string{events.TypeOrderCreated}, f.events.types())

	// later price changes never touch the stored total
	book.Price = 9999
	require.NoError(t, f.repo.UpdateBookDetails(ctx, book))
	stored, err := f.repo.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2500, stored.TotalPrice)
	assert.EqualValues(t, 1250, stored.UnitPrice)
	assert.Equal(t, 3, testutil.Stock(t, f.repo, book.ID), "a price edit leaves the reserved stock alone")
}

func TestCreateOrder_InsufficientStockCreatesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	book := testutil.SeedBook(t, f.repo, "Short", 100, 1)

	_, err := f.svc.CreateOrder(ctx, CreateOrderInput{UserID: f.user.ID, BookID: book.ID, Quantity: 2})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	assert.Zero(t, countOrders(t, f.repo))
	assert.Equal(t, 1, testutil.Stock(t, f.repo, book.ID))
	assert.Empty(t, f.events.types())
}

func TestCreateOrder_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.CreateOrder(ctx, CreateOrderInput{UserID: f.user.ID, BookID: 1, Quantity: 0})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.CreateOrder(ctx, CreateOrderInput{UserID: f.user.ID, BookID: 404, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCheckout_AllLinesBecomeOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := testutil.SeedBook(t, f.repo, "A", 1000, 5)
	b := testutil.SeedBook(t, f.repo, "B", 250, 3)
	f.addToCart(t, a.ID, 2)
	f.addToCart(t, b.ID, 3)

	res, err := f.svc.Checkout(ctx, CheckoutInput{UserID: f.user.ID, DeliveryAddress: "Main st 1"})
	require.NoError(t, err)

	require.Len(t, res.Orders, 2)
	assert.EqualValues(t, 2000+750, res.TotalPrice)
	assert.Len(t, res.CheckoutRef, 26)
	for _, o := range res.Orders {
		assert.NotZero(t, o.ID)
		assert.Equal(t, res.CheckoutRef, o.CheckoutRef)
		assert.Equal(t, "Main st 1", o.DeliveryAddress)
	}
	assert.Equal(t, 3, testutil.Stock(t, f.repo, a.ID))
	assert.Equal(t, 0, testutil.Stock(t, f.repo, b.ID))

	cart, err := f.repo.GetCart(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, cart)
	assert.Equal(t, []string{events.TypeCheckoutCompleted}, f.events.types())
}

func TestCheckout_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := testutil.SeedBook(t, f.repo, "A", 1000, 5)
	b := testutil.SeedBook(t, f.repo, "B", 250, 1)
	f.addToCart(t, a.ID, 2)
	f.addToCart(t, b.ID, 2)

	_, err := f.svc.Checkout(ctx, CheckoutInput{UserID: f.user.ID})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	assert.Zero(t, countOrders(t, f.repo))
	assert.Equal(t, 5, testutil.Stock(t, f.repo, a.ID), "reservation of the first line is rolled back")
	assert.Equal(t, 1, testutil.Stock(t, f.repo, b.ID))

	cart, err := f.repo.GetCart(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Len(t, cart, 2, "cart is unchanged")
	assert.Empty(t, f.events.types())
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Checkout(context.Background(), CheckoutInput{UserID: f.user.ID})
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
}

func TestCheckout_InactiveBookAborts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := testutil.SeedBook(t, f.repo, "A", 1000, 5)
	f.addToCart(t, a.ID, 1)
	require.NoError(t, f.repo.SoftDeleteBook(ctx, a.ID))

	_, err := f.svc.Checkout(ctx, CheckoutInput{UserID: f.user.ID})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Zero(t, countOrders(t, f.repo))
}

func TestCancelTwice_ReleasesStockOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	book := testutil.SeedBook(t, f.repo, "C", 100, 5)

	o, err := f.svc.CreateOrder(ctx, CreateOrderInput{UserID: f.user.ID, BookID: book.ID, Quantity: 3})
	require.NoError(t, err)
	require.Equal(t, 2, testutil.Stock(t, f.repo, book.ID))

	got, err := f.svc.UpdateStatus(ctx, o.ID, models.OrderCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, got.Status)
	assert.Equal(t, 5, testutil.Stock(t, f.repo, book.ID))

	_, err = f.svc.UpdateStatus(ctx, o.ID, models.OrderCancelled)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = f.svc.Cancel(ctx, f.customer(), o.ID)
	require.Error(t, err)

	assert.Equal(t, 5, testutil.Stock(t, f.repo, book.ID))
}

func TestCancel_ConcurrentCancelsReleaseOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	book := testutil.SeedBook(t, f.repo, "C", 100, 4)

	o, err := f.svc.CreateOrder(ctx, CreateOrderInput{UserID: f.user.ID, BookID: book.ID, Quantity: 4})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.UpdateStatus(ctx, o.ID, models.OrderCancelled)
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, testutil.Stock(t, f.repo, book.ID))
}

func TestUpdateStatus_Transitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	book := testutil.SeedBook(t, f.repo, "T", 100, 10)

	o, err := f.svc.CreateOrder(ctx, CreateOrderInput{UserID: f.user.ID, BookID: book.ID, Quantity: 1})
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, o.ID, models.OrderShipped)
	require.NoError(t, err, "skipping forward is allowed")

	_, err = f.svc.UpdateStatus(ctx, o.ID, models.OrderConfirmed)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "no going back")

	_, err = f.svc.UpdateStatus(ctx, o.ID, models.OrderDelivered)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, o.ID, models.OrderCancelled)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "delivered is terminal")
	assert.Equal(t, 9, testutil.Stock(t, f.repo, book.ID))

	_, err = f.svc.UpdateStatus(ctx, o.ID, models.OrderStatus("Lost"))
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.UpdateStatus(ctx, 999, models.OrderConfirmed)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, []string{
		events.TypeOrderCreated, events.TypeOrderStatusChanged, events.TypeOrderStatusChanged,
	}, f.events.types())
}

func TestCancel_CustomerRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	book := testutil.SeedBook(t, f.repo, "R", 100, 10)
	stranger := domain.Principal{UserID: f.user.ID + 100, Role: models.RoleCustomer}

	o, err := f.svc.CreateOrder(ctx, CreateOrderInput{UserID: f.user.ID, BookID: book.ID, Quantity: 1})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, stranger, o.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.UpdateStatus(ctx, o.ID, models.OrderConfirmed)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, f.customer(), o.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "customers cancel only pending orders")

	got, err := f.svc.Cancel(ctx, f.admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, got.Status)
	assert.Equal(t, 10, testutil.Stock(t, f.repo, book.ID))
}

func TestGetOrder_OwnerOrAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	book := testutil.SeedBook(t, f.repo, "G", 100, 10)
	o, err := f.svc.CreateOrder(ctx, CreateOrderInput{UserID: f.user.ID, BookID: book.ID, Quantity: 1})
	require.NoError(t, err)

	got, err := f.svc.GetOrder(ctx, f.customer(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = f.svc.GetOrder(ctx, f.admin, o.ID)
	require.NoError(t, err)

	_, err = f.svc.GetOrder(ctx, domain.Principal{UserID: 77, Role: models.RoleCustomer}, o.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.GetOrder(ctx, f.admin, 12345)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteOrder_ReleasesUnlessCancelled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	book := testutil.SeedBook(t, f.repo, "D", 100, 10)

	live, err := f.svc.CreateOrder(ctx, CreateOrderInput{UserID: f.user.ID, BookID: book.ID, Quantity: 2})
	require.NoError(t, err)
	cancelled, err := f.svc.CreateOrder(ctx, CreateOrderInput{UserID: f.user.ID, BookID: book.ID, Quantity: 3})
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, cancelled.ID, models.OrderCancelled)
	require.NoError(t, err)
	require.Equal(t, 8, testutil.Stock(t, f.repo, book.ID))

	require.NoError(t, f.svc.DeleteOrder(ctx, cancelled.ID))
	assert.Equal(t, 8, testutil.Stock(t, f.repo, book.ID))

	require.NoError(t, f.svc.DeleteOrder(ctx, live.ID))
	assert.Equal(t, 10, testutil.Stock(t, f.repo, book.ID))

	assert.ErrorIs(t, f.svc.DeleteOrder(ctx, live.ID), domain.ErrNotFound)
}

func TestStatusCountsAndStatistics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	book := testutil.SeedBook(t, f.repo, "S", 1000, 20)

	counts, err := f.svc.StatusCounts(ctx)
	require.NoError(t, err)
	require.Len(t, counts, len(models.AllOrderStatuses()))
	for _, n := range counts {
		assert.Zero(t, n)
	}

	var ids []uint
	for _, qty := range []int{1, 2, 3} {
		o, err := f.svc.CreateOrder(ctx, CreateOrderInput{UserID: f.user.ID, BookID: book.ID, Quantity: qty})
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}
	_, err = f.svc.UpdateStatus(ctx, ids[0], models.OrderConfirmed)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, ids[2], models.OrderCancelled)
	require.NoError(t, err)

	counts, err = f.svc.StatusCounts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[models.OrderPending])
	assert.EqualValues(t, 1, counts[models.OrderConfirmed])
	assert.EqualValues(t, 1, counts[models.OrderCancelled])
	assert.EqualValues(t, 0, counts[models.OrderShipped])
	assert.EqualValues(t, 0, counts[models.OrderDelivered])

	st, err := f.svc.Statistics(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, st.TotalOrders)
	assert.EqualValues(t, 3000, st.TotalSales, "cancelled orders are not sales")
	assert.EqualValues(t, 1500, st.AverageOrderValue)

	ok, err := f.cache.Exists(ctx, cache.KeyOrderStats())
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.svc.CreateOrder(ctx, CreateOrderInput{UserID: f.user.ID, BookID: book.ID, Quantity: 1})
	require.NoError(t, err)
	ok, err = f.cache.Exists(ctx, cache.KeyOrderStats())
	require.NoError(t, err)
	assert.False(t, ok, "new orders invalidate cached statistics")
}

func TestListMyOrders_CachedUntilNextOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	book := testutil.SeedBook(t, f.repo, "L", 100, 10)
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return clock }

	_, err := f.svc.CreateOrder(ctx, CreateOrderInput{UserID: f.user.ID, BookID: book.ID, Quantity: 1})
	require.NoError(t, err)

	list, err := f.svc.ListMyOrders(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	clock = clock.Add(time.Hour)
	_, err = f.svc.CreateOrder(ctx, CreateOrderInput{UserID: f.user.ID, BookID: book.ID, Quantity: 1})
	require.NoError(t, err)

	list, err = f.svc.ListMyOrders(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].OrderedAt.After(list[1].OrderedAt), "newest first")
}

func TestListOrders_StatusFilter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	book := testutil.SeedBook(t, f.repo, "F", 100, 10)
	a, err := f.svc.CreateOrder(ctx, CreateOrderInput{UserID: f.user.ID, BookID: book.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = f.svc.CreateOrder(ctx, CreateOrderInput{UserID: f.user.ID, BookID: book.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, a.ID, models.OrderShipped)
	require.NoError(t, err)

	total, items, err := f.svc.ListOrders(ctx, models.OrderShipped, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, a.ID, items[0].ID)

	total, _, err = f.svc.ListOrders(ctx, "", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	_, _, err = f.svc.ListOrders(ctx, "bogus", 0, 10)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
