package order

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Skotchmaster/bookstore/internal/cache"
	"github.com/Skotchmaster/bookstore/internal/domain"
	"github.com/Skotchmaster/bookstore/internal/events"
	"github.com/Skotchmaster/bookstore/internal/metrics"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/repo"
	"github.com/Skotchmaster/bookstore/internal/service/inventory"
	"github.com/Skotchmaster/bookstore/pkg/logging"
)

const (
	statsTTL      = 10 * time.Minute
	userOrdersTTL = 5 * time.Minute
)

type Service struct {
	repo    *repo.GormRepo
	ledger  *inventory.Ledger
	cache   cache.Cache
	events  events.Publisher
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Service)

func WithCache(c cache.Cache) Option { return func(s *Service) { s.cache = c } }
func WithPublisher(p events.Publisher) Option { return func(s *Service) { s.events = p } }
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func New(r *repo.GormRepo, ledger *inventory.Ledger, opts ...Option) *Service {
	s := &Service{
		repo:   r,
		ledger: ledger,
		events: events.Nop{},
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type CreateOrderInput struct {
	UserID          uint
	BookID          uint
	Quantity        int
	DeliveryAddress string
	Phone           string
	Notes           string
}

type CheckoutInput struct {
	UserID          uint
	DeliveryAddress string
	Phone           string
	Notes           string
}

type CheckoutResult struct {
	CheckoutRef string         `json:"checkout_ref"`
	Orders      []models.Order `json:"orders"`
	TotalPrice  int64          `json:"total_price"`
}

type Statistics struct {
	TotalOrders       int64                        `json:"total_orders"`
	TotalSales        int64                        `json:"total_sales"`
	AverageOrderValue int64                        `json:"average_order_value"`
	StatusCounts      map[models.OrderStatus]int64 `json:"status_counts"`
}

// CreateOrder reserves stock and writes the order in one transaction,
// so an order never exists without its reservation.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "order.create", "user_id", in.UserID, "book_id", in.BookID)

	if in.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be > 0", domain.ErrValidation)
	}

	var (
		created models.Order
		book    *models.Book
	)
	err := s.repo.Tx(ctx, func(tx *repo.GormRepo) error {
		var err error
		book, err = tx.GetActiveBook(ctx, in.BookID)
		if err != nil {
			if repo.IsNotFound(err) {
				return fmt.Errorf("%w: book %d", domain.ErrNotFound, in.BookID)
			}
			return err
		}

		ok, err := s.ledger.WithTx(tx).Reserve(ctx, book.ID, in.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: book %d", domain.ErrInsufficientStock, book.ID)
		}

		orders := []models.Order{s.snapshot(in.UserID, book, in.Quantity, "", in.DeliveryAddress, in.Phone, in.Notes)}
		if err := tx.CreateOrders(ctx, orders); err != nil {
			return err
		}
		created = orders[0]
		return nil
	})
	if err != nil {
		if !domain.Known(err) {
			l.Error("create_order_failed", "status", 500, "error", err)
		} else {
			l.Warn("create_order_failed", "reason", err.Error())
		}
		return nil, err
	}

	book.Stock -= in.Quantity
	created.Book = book
	s.metrics.OrdersCreated(1)
	s.invalidate(ctx, in.UserID, book.ID)
	events.Notify(ctx, s.events, events.TopicOrders, created.ID, events.OrderCreated{
		Type:       events.TypeOrderCreated,
		OrderID:    created.ID,
		Number:     created.Number,
		UserID:     created.UserID,
		BookID:     created.BookID,
		Quantity:   created.Quantity,
		TotalPrice: created.TotalPrice,
		At:         created.OrderedAt,
	})
	l.Info("order_created", "order_id", created.ID, "number", created.Number, "total", created.TotalPrice)
	return &created, nil
}

// Checkout turns the whole cart into orders or, if any line cannot be reserved, changes nothing.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	l := logging.FromContext(ctx).With("svc", "order.checkout", "user_id", in.UserID)

	res := &CheckoutResult{CheckoutRef: ulid.Make().String()}
	var bookIDs []uint

	err := s.repo.Tx(ctx, func(tx *repo.GormRepo) error {
		lines, err := tx.GetCart(ctx, in.UserID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return domain.ErrEmptyCart
		}

		ledger := s.ledger.WithTx(tx)
		orders := make([]models.Order, 0, len(lines))
		for _, line := range lines {
			if line.Book == nil || !line.Book.IsActive {
				return fmt.Errorf("%w: book %d is no longer available", domain.ErrInsufficientStock, line.BookID)
			}
			ok, err := ledger.Reserve(ctx, line.BookID, line.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: book %d", domain.ErrInsufficientStock, line.BookID)
			}
			orders = append(orders, s.snapshot(in.UserID, line.Book, line.Quantity, res.CheckoutRef, in.DeliveryAddress, in.Phone, in.Notes))
			bookIDs = append(bookIDs, line.BookID)
		}

		if err := tx.CreateOrders(ctx, orders); err != nil {
			return err
		}
		if _, err := tx.ClearCart(ctx, in.UserID); err != nil {
			return err
		}
		res.Orders = orders
		return nil
	})
	if err != nil {
		if !domain.Known(err) {
			l.Error("checkout_failed", "status", 500, "error", err)
		} else {
			l.Warn("checkout_failed", "reason", err.Error())
		}
		return nil, err
	}

	ids := make([]uint, 0, len(res.Orders))
	for _, o := range res.Orders {
		res.TotalPrice += o.TotalPrice
		ids = append(ids, o.ID)
	}

	s.metrics.OrdersCreated(len(res.Orders))
	s.invalidate(ctx, in.UserID, bookIDs...)
	events.Notify(ctx, s.events, events.TopicOrders, in.UserID, events.CheckoutCompleted{
		Type:        events.TypeCheckoutCompleted,
		CheckoutRef: res.CheckoutRef,
		UserID:      in.UserID,
		OrderIDs:    ids,
		TotalPrice:  res.TotalPrice,
		At:          s.now().UTC(),
	})
	l.Info("checkout_completed", "checkout_ref", res.CheckoutRef, "orders", len(ids), "total", res.TotalPrice)
	return res, nil
}

// UpdateStatus applies an admin status change. Moving into Cancelled releases stock once.
func (s *Service) UpdateStatus(ctx context.Context, orderID uint, next models.OrderStatus) (*models.Order, error) {
	return s.transition(ctx, orderID, next, nil)
}

// Cancel lets an owner cancel their own pending order; admins may cancel any non-terminal one.
func (s *Service) Cancel(ctx context.Context, p domain.Principal, orderID uint) (*models.Order, error) {
	return s.transition(ctx, orderID, models.OrderCancelled, func(o *models.Order) error {
		if p.IsAdmin() {
			return nil
		}
		if o.UserID != p.UserID {
			return fmt.Errorf("%w: order %d", domain.ErrNotFound, o.ID)
		}
		if o.Status != models.OrderPending {
			return fmt.Errorf("%w: only pending orders can be cancelled", domain.ErrInvalidTransition)
		}
		return nil
	})
}

func (s *Service) transition(ctx context.Context, orderID uint, next models.OrderStatus, guard func(*models.Order) error) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "order.update_status", "order_id", orderID, "to", next)

	if _, err := models.ParseOrderStatus(string(next)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var (
		order *models.Order
		from  models.OrderStatus
	)
	err := s.repo.Tx(ctx, func(tx *repo.GormRepo) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			if repo.IsNotFound(err) {
				return fmt.Errorf("%w: order %d", domain.ErrNotFound, orderID)
			}
			return err
		}
		if guard != nil {
			if err := guard(o); err != nil {
				return err
			}
		}
		if !o.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, o.Status, next)
		}

		// Conditional on the loaded status: a concurrent change makes this a no-op.
		ok, err := tx.TransitionOrder(ctx, o.ID, o.Status, next)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: order %d changed concurrently", domain.ErrInvalidTransition, o.ID)
		}

		if next == models.OrderCancelled {
			released, err := s.ledger.WithTx(tx).Release(ctx, o.BookID, o.Quantity)
			if err != nil {
				return err
			}
			if !released {
				l.Warn("release_skipped", "reason", "book row missing", "book_id", o.BookID)
			}
		}

		from = o.Status
		o.Status = next
		o.UpdatedAt = s.now().UTC()
		order = o
		return nil
	})
	if err != nil {
		if !domain.Known(err) {
			l.Error("update_status_failed", "status", 500, "error", err)
		} else {
			l.Warn("update_status_failed", "reason", err.Error())
		}
		return nil, err
	}

	s.invalidate(ctx, order.UserID, order.BookID)
	events.Notify(ctx, s.events, events.TopicOrders, order.ID, events.OrderStatusChanged{
		Type:    events.TypeOrderStatusChanged,
		OrderID: order.ID,
		UserID:  order.UserID,
		From:    string(from),
		To:      string(next),
		At:      order.UpdatedAt,
	})
	l.Info("order_status_changed", "from", from)
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, p domain.Principal, orderID uint) (*models.Order, error) {
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, fmt.Errorf("%w: order %d", domain.ErrNotFound, orderID)
		}
		return nil, err
	}
	if !p.CanAccessUser(o.UserID) {
		return nil, fmt.Errorf("%w: order %d belongs to another user", domain.ErrForbidden, orderID)
	}
	return o, nil
}

func (s *Service) ListMyOrders(ctx context.Context, userID uint) ([]models.Order, error) {
	return cache.GetOrSet(ctx, s.cache, cache.KeyUserOrders(userID), userOrdersTTL,
		[]string{cache.TagOrders, cache.TagUser(userID)},
		func(ctx context.Context) ([]models.Order, error) {
			return s.repo.ListUserOrders(ctx, userID)
		})
}

// ListOrders filters by status when status is not empty.
func (s *Service) ListOrders(ctx context.Context, status models.OrderStatus, offset, limit int) (int64, []models.Order, error) {
	if status != "" {
		if _, err := models.ParseOrderStatus(string(status)); err != nil {
			return 0, nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
	}
	return s.repo.ListOrders(ctx, status, offset, limit)
}

// DeleteOrder removes the row and gives its stock back unless a cancellation already did.
func (s *Service) DeleteOrder(ctx context.Context, orderID uint) error {
	l := logging.FromContext(ctx).With("svc", "order.delete", "order_id", orderID)

	var o *models.Order
	err := s.repo.Tx(ctx, func(tx *repo.GormRepo) error {
		var err error
		o, err = tx.GetOrder(ctx, orderID)
		if err != nil {
			if repo.IsNotFound(err) {
				return fmt.Errorf("%w: order %d", domain.ErrNotFound, orderID)
			}
			return err
		}
		if err := tx.DeleteOrder(ctx, o.ID); err != nil {
			return err
		}
		if o.Status != models.OrderCancelled {
			if _, err := s.ledger.WithTx(tx).Release(ctx, o.BookID, o.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if !domain.Known(err) {
			l.Error("delete_order_failed", "status", 500, "error", err)
		}
		return err
	}

	s.invalidate(ctx, o.UserID, o.BookID)
	l.Info("order_deleted", "released", o.Status != models.OrderCancelled)
	return nil
}

// StatusCounts has an entry for every status, zero when no order has it.
func (s *Service) StatusCounts(ctx context.Context) (map[models.OrderStatus]int64, error) {
	counts, err := s.repo.OrderStatusCounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[models.OrderStatus]int64, len(models.AllOrderStatuses()))
	for _, st := range models.AllOrderStatuses() {
		out[st] = counts[st]
	}
	return out, nil
}

func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	return cache.GetOrSet(ctx, s.cache, cache.KeyOrderStats(), statsTTL, []string{cache.TagOrders},
		func(ctx context.Context) (Statistics, error) {
			var (
				st         Statistics
				salesCount int64
			)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				n, err := s.repo.CountOrders(gctx)
				st.TotalOrders = n
				return err
			})
			g.Go(func() error {
				sum, n, err := s.repo.SalesTotal(gctx)
				st.TotalSales, salesCount = sum, n
				return err
			})
			g.Go(func() error {
				counts, err := s.StatusCounts(gctx)
				st.StatusCounts = counts
				return err
			})
			if err := g.Wait(); err != nil {
				return Statistics{}, err
			}
			if salesCount > 0 {
				st.AverageOrderValue = st.TotalSales / salesCount
			}
			return st, nil
		})
}

func (s *Service) snapshot(userID uint, book *models.Book, qty int, checkoutRef, address, phone, notes string) models.Order {
	return models.Order{
		Number:          ulid.Make().String(),
		CheckoutRef:     checkoutRef,
		UserID:          userID,
		BookID:          book.ID,
		Quantity:        qty,
		UnitPrice:       book.Price,
		TotalPrice:      book.Price * int64(qty),
		Status:          models.OrderPending,
		DeliveryAddress: address,
		Phone:           phone,
		Notes:           notes,
		OrderedAt:       s.now().UTC(),
	}
}

func (s *Service) invalidate(ctx context.Context, userID uint, bookIDs ...uint) {
	tags := []string{cache.TagOrders, cache.TagUser(userID), cache.TagBooks}
	for _, id := range bookIDs {
		tags = append(tags, cache.TagBook(id))
	}
	cache.Invalidate(ctx, s.cache, tags...)
}
