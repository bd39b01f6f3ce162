package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Skotchmaster/bookstore/internal/cache"
	"github.com/Skotchmaster/bookstore/internal/domain"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/repo"
	"github.com/Skotchmaster/bookstore/internal/util"
	"github.com/Skotchmaster/bookstore/pkg/logging"
)

const (
	listTTL     = 15 * time.Minute
	bookTTL     = 30 * time.Minute
	categoryTTL = 30 * time.Minute

	DefaultLanguage = "Turkish"
	maxShelf        = 50
)

// Index is the search backend kept in sync with book writes.
type Index interface {
	IndexBook(ctx context.Context, b models.Book) error
	DeleteBook(ctx context.Context, id uint) error
	Search(ctx context.Context, f domain.BookFilter, from, size int) (int64, []uint, error)
}

type Service struct {
	repo  *repo.GormRepo
	cache cache.Cache
	index Index
}

type Option func(*Service)

func WithCache(c cache.Cache) Option { return func(s *Service) { s.cache = c } }
func WithIndex(i Index) Option { return func(s *Service) { s.index = i } }

func New(r *repo.GormRepo, opts ...Option) *Service {
	s := &Service{repo: r}
	for _, o := range opts {
		o(s)
	}
	return s
}

type BookInput struct {
	Title       string
	Author      string
	Description string
	Price       int64
	Stock       int
	CategoryID  uint
	ISBN        *string
	PageCount   *int
	PublishedAt *time.Time
	Language    string
}

// BookPatch leaves nil fields untouched. Stock is not patchable; it moves through the ledger.
type BookPatch struct {
	Title       *string
	Author      *string
	Description *string
	Price       *int64
	CategoryID  *uint
	ISBN        *string
	PageCount   *int
	PublishedAt *time.Time
	Language    *string
}

func (s *Service) ListBooks(ctx context.Context, page, size int) (domain.Page[models.Book], error) {
	page, size = util.Normalize(page, size)
	return cache.GetOrSet(ctx, s.cache, cache.KeyBookPage(page, size), listTTL, []string{cache.TagBooks},
		func(ctx context.Context) (domain.Page[models.Book], error) {
			from, limit := util.Calculate(page, size)
			total, items, err := s.repo.ListBooks(ctx, from, limit)
			if err != nil {
				return domain.Page[models.Book]{}, err
			}
			return domain.NewPage(items, total, page, size), nil
		})
}

func (s *Service) GetBook(ctx context.Context, id uint) (*models.Book, error) {
	return cache.GetOrSet(ctx, s.cache, cache.KeyBook(id), bookTTL, []string{cache.TagBooks, cache.TagBook(id)},
		func(ctx context.Context) (*models.Book, error) {
			b, err := s.repo.GetActiveBook(ctx, id)
			if err != nil {
				if repo.IsNotFound(err) {
					return nil, fmt.Errorf("%w: book %d", domain.ErrNotFound, id)
				}
				return nil, err
			}
			return b, nil
		})
}

func (s *Service) CreateBook(ctx context.Context, in BookInput) (*models.Book, error) {
	l := logging.FromContext(ctx).With("svc", "catalog.create_book")

	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	switch {
	case in.Title == "":
		return nil, fmt.Errorf("%w: title is required", domain.ErrValidation)
	case in.Author == "":
		return nil, fmt.Errorf("%w: author is required", domain.ErrValidation)
	case in.Price < 0:
		return nil, fmt.Errorf("%w: price must be >= 0", domain.ErrValidation)
	case in.Stock < 0:
		return nil, fmt.Errorf("%w: stock must be >= 0", domain.ErrValidation)
	}
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}
	if in.Language == "" {
		in.Language = DefaultLanguage
	}

	b := &models.Book{
		Title:       in.Title,
		Author:      in.Author,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		CategoryID:  in.CategoryID,
		ISBN:        in.ISBN,
		PageCount:   in.PageCount,
		PublishedAt: in.PublishedAt,
		Language:    in.Language,
		IsActive:    true,
	}
	if err := s.repo.CreateBook(ctx, b); err != nil {
		l.Error("create_book_failed", "status", 500, "error", err)
		return nil, err
	}

	cache.Invalidate(ctx, s.cache, cache.TagBooks)
	s.syncIndex(ctx, *b)
	l.Info("book_created", "book_id", b.ID)
	return b, nil
}

func (s *Service) UpdateBook(ctx context.Context, id uint, p BookPatch) (*models.Book, error) {
	l := logging.FromContext(ctx).With("svc", "catalog.update_book", "book_id", id)

	b, err := s.repo.GetActiveBook(ctx, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, fmt.Errorf("%w: book %d", domain.ErrNotFound, id)
		}
		return nil, err
	}

	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return nil, fmt.Errorf("%w: title is required", domain.ErrValidation)
		}
		b.Title = strings.TrimSpace(*p.Title)
	}
	if p.Author != nil {
		if strings.TrimSpace(*p.Author) == "" {
			return nil, fmt.Errorf("%w: author is required", domain.ErrValidation)
		}
		b.Author = strings.TrimSpace(*p.Author)
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.Price != nil {
		if *p.Price < 0 {
			return nil, fmt.Errorf("%w: price must be >= 0", domain.ErrValidation)
		}
		b.Price = *p.Price
	}
	if p.CategoryID != nil && *p.CategoryID != b.CategoryID {
		if err := s.checkCategory(ctx, *p.CategoryID); err != nil {
			return nil, err
		}
		b.CategoryID = *p.CategoryID
		b.Category = nil
	}
	if p.ISBN != nil {
		b.ISBN = p.ISBN
	}
	if p.PageCount != nil {
		b.PageCount = p.PageCount
	}
	if p.PublishedAt != nil {
		b.PublishedAt = p.PublishedAt
	}
	if p.Language != nil {
		b.Language = *p.Language
	}

	if err := s.repo.UpdateBookDetails(ctx, b); err != nil {
		if repo.IsNotFound(err) {
			l.Warn("update_book_failed", "status", 404, "reason", "deleted concurrently")
			return nil, fmt.Errorf("%w: book %d", domain.ErrNotFound, id)
		}
		l.Error("update_book_failed", "status", 500, "error", err)
		return nil, err
	}

	cache.Invalidate(ctx, s.cache, cache.TagBooks, cache.TagBook(id))
	// Reload so the response carries the stock the ledger holds now.
	if fresh, err := s.repo.GetActiveBook(ctx, id); err == nil {
		b = fresh
	}
	s.syncIndex(ctx, *b)
	l.Info("book_updated")
	return b, nil
}

// DeleteBook is a soft delete; existing orders keep pointing at the row.
func (s *Service) DeleteBook(ctx context.Context, id uint) error {
	if err := s.repo.SoftDeleteBook(ctx, id); err != nil {
		if repo.IsNotFound(err) {
			return fmt.Errorf("%w: book %d", domain.ErrNotFound, id)
		}
		return err
	}
	cache.Invalidate(ctx, s.cache, cache.TagBooks, cache.TagBook(id))
	if s.index != nil {
		if err := s.index.DeleteBook(ctx, id); err != nil {
			logging.FromContext(ctx).Warn("index_delete_failed", "book_id", id, "error", err)
		}
	}
	logging.FromContext(ctx).Info("book_deleted", "svc", "catalog.delete_book", "book_id", id)
	return nil
}

// Search asks the index first and falls back to SQL when there is no index or it fails.
func (s *Service) Search(ctx context.Context, f domain.BookFilter, page, size int) (domain.Page[models.Book], error) {
	l := logging.FromContext(ctx).With("svc", "catalog.search")

	f = f.Normalized()
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return domain.Page[models.Book]{}, fmt.Errorf("%w: minPrice is greater than maxPrice", domain.ErrValidation)
	}
	page, size = util.Normalize(page, size)
	from, limit := util.Calculate(page, size)

	if s.index != nil {
		total, ids, err := s.index.Search(ctx, f, from, limit)
		if err == nil {
			books, err := s.repo.BooksByIDs(ctx, ids)
			if err != nil {
				return domain.Page[models.Book]{}, err
			}
			return domain.NewPage(books, total, page, size), nil
		}
		l.Warn("index_search_failed", "reason", "falling back to database", "error", err)
	}

	total, items, err := s.repo.SearchBooks(ctx, f, from, limit)
	if err != nil {
		l.Error("search_failed", "status", 500, "error", err)
		return domain.Page[models.Book]{}, err
	}
	return domain.NewPage(items, total, page, size), nil
}

func clampShelf(n int) int {
	if n < 1 {
		return 10
	}
	if n > maxShelf {
		return maxShelf
	}
	return n
}

func (s *Service) Newest(ctx context.Context, n int) ([]models.Book, error) {
	n = clampShelf(n)
	return cache.GetOrSet(ctx, s.cache, cache.KeyNewest(n), listTTL, []string{cache.TagBooks},
		func(ctx context.Context) ([]models.Book, error) {
			return s.repo.NewestBooks(ctx, n)
		})
}

// Popular ranks books by how many orders reference them.
func (s *Service) Popular(ctx context.Context, n int) ([]models.Book, error) {
	n = clampShelf(n)
	return cache.GetOrSet(ctx, s.cache, cache.KeyPopular(n), listTTL, []string{cache.TagBooks, cache.TagOrders},
		func(ctx context.Context) ([]models.Book, error) {
			ids, err := s.repo.PopularBookIDs(ctx, n)
			if err != nil {
				return nil, err
			}
			return s.repo.BooksByIDs(ctx, ids)
		})
}

// Reindex pushes every active book to the index and returns how many were sent.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}
	const batch = 100
	sent := 0
	for from := 0; ; from += batch {
		_, items, err := s.repo.ListBooks(ctx, from, batch)
		if err != nil {
			return sent, err
		}
		for _, b := range items {
			if err := s.index.IndexBook(ctx, b); err != nil {
				return sent, err
			}
			sent++
		}
		if len(items) < batch {
			return sent, nil
		}
	}
}

func (s *Service) checkCategory(ctx context.Context, id uint) error {
	if _, err := s.repo.GetCategory(ctx, id); err != nil {
		if repo.IsNotFound(err) {
			return fmt.Errorf("%w: unknown category %d", domain.ErrValidation, id)
		}
		return err
	}
	return nil
}

func (s *Service) syncIndex(ctx context.Context, b models.Book) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexBook(ctx, b); err != nil {
		logging.FromContext(ctx).Warn("index_sync_failed", "book_id", b.ID, "error", err)
	}
}
