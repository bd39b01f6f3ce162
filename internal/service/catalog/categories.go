package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/Skotchmaster/bookstore/internal/cache"
	"github.com/Skotchmaster/bookstore/internal/domain"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/repo"
	"github.com/Skotchmaster/bookstore/pkg/logging"
)

type CategoryInput struct {
	Name        string
	Description string
	ImageURL    string
}

type CategoryPatch struct {
	Name        *string
	Description *string
	ImageURL    *string
}

type CategoryDetail struct {
	models.Category
	Books []models.Book `json:"books"`
}

func (s *Service) ListCategories(ctx context.Context) ([]models.Category, error) {
	return cache.GetOrSet(ctx, s.cache, cache.KeyCategories(), categoryTTL, []string{cache.TagCategories},
		func(ctx context.Context) ([]models.Category, error) {
			return s.repo.ListCategories(ctx)
		})
}

func (s *Service) GetCategory(ctx context.Context, id uint) (*CategoryDetail, error) {
	return cache.GetOrSet(ctx, s.cache, cache.KeyCategory(id), categoryTTL, []string{cache.TagCategories, cache.TagBooks},
		func(ctx context.Context) (*CategoryDetail, error) {
			c, err := s.repo.GetCategory(ctx, id)
			if err != nil {
				if repo.IsNotFound(err) {
					return nil, fmt.Errorf("%w: category %d", domain.ErrNotFound, id)
				}
				return nil, err
			}
			books, err := s.repo.BooksInCategory(ctx, id)
			if err != nil {
				return nil, err
			}
			return &CategoryDetail{Category: *c, Books: books}, nil
		})
}

func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (*models.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if err := s.ensureNameFree(ctx, name, 0); err != nil {
		return nil, err
	}

	c := &models.Category{Name: name, Description: in.Description, ImageURL: in.ImageURL, IsActive: true}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		if repo.IsDuplicate(err) {
			return nil, fmt.Errorf("%w: category %q exists", domain.ErrConflict, name)
		}
		return nil, err
	}
	cache.Invalidate(ctx, s.cache, cache.TagCategories)
	logging.FromContext(ctx).Info("category_created", "svc", "catalog.create_category", "category_id", c.ID)
	return c, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id uint, p CategoryPatch) (*models.Category, error) {
	c, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, fmt.Errorf("%w: category %d", domain.ErrNotFound, id)
		}
		return nil, err
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
		}
		if err := s.ensureNameFree(ctx, name, id); err != nil {
			return nil, err
		}
		c.Name = name
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.ImageURL != nil {
		c.ImageURL = *p.ImageURL
	}
	if err := s.repo.UpdateCategoryDetails(ctx, c); err != nil {
		if repo.IsNotFound(err) {
			return nil, fmt.Errorf("%w: category %d", domain.ErrNotFound, id)
		}
		return nil, err
	}
	cache.Invalidate(ctx, s.cache, cache.TagCategories, cache.TagBooks)
	return c, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id uint) error {
	if err := s.repo.SoftDeleteCategory(ctx, id); err != nil {
		if repo.IsNotFound(err) {
			return fmt.Errorf("%w: category %d", domain.ErrNotFound, id)
		}
		return err
	}
	cache.Invalidate(ctx, s.cache, cache.TagCategories, cache.TagBooks)
	return nil
}

func (s *Service) ensureNameFree(ctx context.Context, name string, exceptID uint) error {
	taken, err := s.repo.CategoryNameTaken(ctx, name, exceptID)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: category %q exists", domain.ErrConflict, name)
	}
	return nil
}
