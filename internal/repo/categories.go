package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/bookstore/internal/models"
)

func (r *GormRepo) ListCategories(ctx context.Context) ([]models.Category, error) {
	var items []models.Category
	err := r.DB.WithContext(ctx).Where("is_active = ?", true).Order("name ASC").Find(&items).Error
	return items, err
}

func (r *GormRepo) GetCategory(ctx context.Context, id uint) (*models.Category, error) {
	var c models.Category
	if err := r.DB.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GormRepo) BooksInCategory(ctx context.Context, categoryID uint) ([]models.Book, error) {
	var items []models.Book
	err := r.DB.WithContext(ctx).
		Where("category_id = ? AND is_active = ?", categoryID, true).
		Order("created_at DESC").Order("id DESC").
		Find(&items).Error
	return items, err
}

func (r *GormRepo) CreateCategory(ctx context.Context, c *models.Category) error {
	return r.DB.WithContext(ctx).Create(c).Error
}

// UpdateCategoryDetails leaves is_active alone so a concurrent soft delete sticks.
func (r *GormRepo) UpdateCategoryDetails(ctx context.Context, c *models.Category) error {
	res := r.DB.WithContext(ctx).Model(&models.Category{}).
		Where("id = ? AND is_active = ?", c.ID, true).
		UpdateColumns(map[string]any{
			"name":        c.Name,
			"description": c.Description,
			"image_url":   c.ImageURL,
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) SoftDeleteCategory(ctx context.Context, id uint) error {
	res := r.DB.WithContext(ctx).Model(&models.Category{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) CategoryNameTaken(ctx context.Context, name string, exceptID uint) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Category{}).
		Where("LOWER(name) = LOWER(?) AND id <> ?", name, exceptID).
		Count(&n).Error
	return n > 0, err
}
