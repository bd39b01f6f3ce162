// Package inventory is the only writer of book stock.
package inventory

import (
	"context"
	"fmt"

	"github.com/Skotchmaster/bookstore/internal/domain"
	"github.com/Skotchmaster/bookstore/internal/metrics"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/repo"
	"github.com/Skotchmaster/bookstore/pkg/logging"
)

type Ledger struct {
	repo    *repo.GormRepo
	metrics *metrics.Metrics
}

func New(r *repo.GormRepo, m *metrics.Metrics) *Ledger {
	return &Ledger{repo: r, metrics: m}
}

// WithTx returns a ledger whose writes join the caller's transaction.
func (l *Ledger) WithTx(tx *repo.GormRepo) *Ledger {
	return &Ledger{repo: tx, metrics: l.metrics}
}

// IsInStock is false for unknown or inactive books and for non-positive quantities.
func (l *Ledger) IsInStock(ctx context.Context, bookID uint, qty int) (bool, error) {
	if qty < 1 {
		return false, nil
	}
	return l.repo.IsInStock(ctx, bookID, qty)
}

// Reserve takes qty off the stock only if that leaves it non-negative.
func (l *Ledger) Reserve(ctx context.Context, bookID uint, qty int) (bool, error) {
	if qty < 1 {
		return false, nil
	}
	ok, err := l.repo.ReserveStock(ctx, bookID, qty)
	if err != nil {
		return false, err
	}
	if !ok {
		l.metrics.ReservationFailed()
		logging.FromContext(ctx).Debug("reserve_refused", "svc", "inventory", "book_id", bookID, "qty", qty)
	}
	return ok, nil
}

// Release puts qty back. It is false only when the book does not exist.
func (l *Ledger) Release(ctx context.Context, bookID uint, qty int) (bool, error) {
	if qty < 1 {
		return false, nil
	}
	return l.repo.ReleaseStock(ctx, bookID, qty)
}

func (l *Ledger) AvailableStock(ctx context.Context, bookID uint) (int, error) {
	return l.repo.AvailableStock(ctx, bookID)
}

func (l *Ledger) LowStock(ctx context.Context, threshold int) ([]models.Book, error) {
	if threshold < 0 {
		return nil, fmt.Errorf("%w: threshold must be >= 0", domain.ErrValidation)
	}
	return l.repo.LowStockBooks(ctx, threshold)
}

// SetStock overwrites the counter; it is an admin correction, not a reservation.
func (l *Ledger) SetStock(ctx context.Context, bookID uint, qty int) error {
	lg := logging.FromContext(ctx).With("svc", "inventory.set_stock", "book_id", bookID)
	if qty < 0 {
		return fmt.Errorf("%w: stock must be >= 0", domain.ErrValidation)
	}
	ok, err := l.repo.SetStock(ctx, bookID, qty)
	if err != nil {
		lg.Error("set_stock_failed", "error", err)
		return err
	}
	if !ok {
		return fmt.Errorf("%w: book %d", domain.ErrNotFound, bookID)
	}
	lg.Info("stock_set", "stock", qty)
	return nil
}

// CanAddToCart checks the book can cover what is already in the cart plus qty.
func (l *Ledger) CanAddToCart(ctx context.Context, userID, bookID uint, qty int) (bool, error) {
	if qty < 1 {
		return false, nil
	}
	inCart, err := l.repo.CartQuantity(ctx, userID, bookID)
	if err != nil {
		return false, err
	}
	return l.repo.IsInStock(ctx, bookID, inCart+qty)
}
