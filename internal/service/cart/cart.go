package cart

import (
	"context"
	"fmt"

	"github.com/Skotchmaster/bookstore/internal/domain"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/repo"
	"github.com/Skotchmaster/bookstore/internal/service/inventory"
	"github.com/Skotchmaster/bookstore/pkg/logging"
)

type Service struct {
	repo   *repo.GormRepo
	ledger *inventory.Ledger
}

func New(r *repo.GormRepo, ledger *inventory.Ledger) *Service {
	return &Service{repo: r, ledger: ledger}
}

type Line struct {
	BookID    uint         `json:"book_id"`
	Book      *models.Book `json:"book,omitempty"`
	Quantity  int          `json:"quantity"`
	UnitPrice int64        `json:"unit_price"`
	LineTotal int64        `json:"line_total"`
	Available bool         `json:"available"`
}

type Cart struct {
	Items      []Line `json:"items"`
	TotalItems int    `json:"total_items"`
	TotalPrice int64  `json:"total_price"`
}

// Get prices lines at the current book price; nothing is reserved until checkout.
func (s *Service) Get(ctx context.Context, userID uint) (*Cart, error) {
	items, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	c := &Cart{Items: make([]Line, 0, len(items))}
	for _, it := range items {
		line := Line{BookID: it.BookID, Book: it.Book, Quantity: it.Quantity}
		if it.Book != nil {
			line.UnitPrice = it.Book.Price
			line.LineTotal = it.Book.Price * int64(it.Quantity)
			line.Available = it.Book.IsActive && it.Book.Stock >= it.Quantity
		}
		c.Items = append(c.Items, line)
		c.TotalItems += it.Quantity
		c.TotalPrice += line.LineTotal
	}
	return c, nil
}

func (s *Service) Add(ctx context.Context, userID, bookID uint, qty int) (*models.CartItem, error) {
	l := logging.FromContext(ctx).With("svc", "cart.add", "user_id", userID, "book_id", bookID)
	if qty < 1 {
		return nil, fmt.Errorf("%w: quantity must be > 0", domain.ErrValidation)
	}
	if _, err := s.repo.GetActiveBook(ctx, bookID); err != nil {
		if repo.IsNotFound(err) {
			return nil, fmt.Errorf("%w: book %d", domain.ErrNotFound, bookID)
		}
		return nil, err
	}
	ok, err := s.ledger.CanAddToCart(ctx, userID, bookID, qty)
	if err != nil {
		return nil, err
	}
	if !ok {
		l.Warn("cart_add_failed", "status", 409, "reason", "not enough stock", "qty", qty)
		return nil, fmt.Errorf("%w: book %d", domain.ErrInsufficientStock, bookID)
	}

	item := &models.CartItem{UserID: userID, BookID: bookID, Quantity: qty}
	if err := s.repo.AddToCart(ctx, item); err != nil {
		l.Error("cart_add_failed", "status", 500, "error", err)
		return nil, err
	}
	return item, nil
}

func (s *Service) SetQuantity(ctx context.Context, userID, bookID uint, qty int) error {
	if qty < 1 {
		return fmt.Errorf("%w: quantity must be > 0", domain.ErrValidation)
	}
	ok, err := s.ledger.IsInStock(ctx, bookID, qty)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: book %d", domain.ErrInsufficientStock, bookID)
	}
	if err := s.repo.SetCartQuantity(ctx, userID, bookID, qty); err != nil {
		if repo.IsNotFound(err) {
			return fmt.Errorf("%w: book %d is not in the cart", domain.ErrNotFound, bookID)
		}
		return err
	}
	return nil
}

func (s *Service) Remove(ctx context.Context, userID, bookID uint) error {
	if err := s.repo.RemoveFromCart(ctx, userID, bookID); err != nil {
		if repo.IsNotFound(err) {
			return fmt.Errorf("%w: book %d is not in the cart", domain.ErrNotFound, bookID)
		}
		return err
	}
	return nil
}

func (s *Service) Clear(ctx context.Context, userID uint) (int64, error) {
	return s.repo.ClearCart(ctx, userID)
}
