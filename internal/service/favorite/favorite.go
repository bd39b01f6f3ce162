package favorite

import (
	"context"
	"fmt"

	"github.com/Skotchmaster/bookstore/internal/domain"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/repo"
)

type Service struct {
	repo *repo.GormRepo
}

func New(r *repo.GormRepo) *Service {
	return &Service{repo: r}
}

func (s *Service) List(ctx context.Context, userID uint) ([]models.Favorite, error) {
	return s.repo.ListFavorites(ctx, userID)
}

// Add fails with ErrConflict when the book is already a favorite.
func (s *Service) Add(ctx context.Context, userID, bookID uint) (*models.Favorite, error) {
	if _, err := s.repo.GetActiveBook(ctx, bookID); err != nil {
		if repo.IsNotFound(err) {
			return nil, fmt.Errorf("%w: book %d", domain.ErrNotFound, bookID)
		}
		return nil, err
	}
	fav := &models.Favorite{UserID: userID, BookID: bookID}
	created, err := s.repo.AddFavorite(ctx, fav)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, fmt.Errorf("%w: book %d is already a favorite", domain.ErrConflict, bookID)
	}
	return fav, nil
}

func (s *Service) Remove(ctx context.Context, userID, bookID uint) error {
	if err := s.repo.RemoveFavorite(ctx, userID, bookID); err != nil {
		if repo.IsNotFound(err) {
			return fmt.Errorf("%w: book %d is not a favorite", domain.ErrNotFound, bookID)
		}
		return err
	}
	return nil
}

func (s *Service) IsFavorite(ctx context.Context, userID, bookID uint) (bool, error) {
	return s.repo.IsFavorite(ctx, userID, bookID)
}
