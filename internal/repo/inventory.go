package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/bookstore/internal/models"
)

func (r *GormRepo) IsInStock(ctx context.Context, bookID uint, qty int) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.Book{}).
		Where("id = ? AND is_active = ? AND stock >= ?", bookID, true, qty).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ReserveStock decrements stock only when enough is left; false means nothing changed.
func (r *GormRepo) ReserveStock(ctx context.Context, bookID uint, qty int) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Book{}).
		Where("id = ? AND is_active = ? AND stock >= ?", bookID, true, qty).
		UpdateColumns(map[string]any{
			"stock":      gorm.Expr("stock - ?", qty),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepo) ReleaseStock(ctx context.Context, bookID uint, qty int) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Book{}).
		Where("id = ?", bookID).
		UpdateColumns(map[string]any{
			"stock":      gorm.Expr("stock + ?", qty),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepo) SetStock(ctx context.Context, bookID uint, qty int) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Book{}).
		Where("id = ?", bookID).
		UpdateColumns(map[string]any{
			"stock":      qty,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AvailableStock returns 0 for unknown books.
func (r *GormRepo) AvailableStock(ctx context.Context, bookID uint) (int, error) {
	var stocks []int
	if err := r.DB.WithContext(ctx).Model(&models.Book{}).
		Where("id = ?", bookID).
		Limit(1).
		Pluck("stock", &stocks).Error; err != nil {
		return 0, err
	}
	if len(stocks) == 0 {
		return 0, nil
	}
	return stocks[0], nil
}

func (r *GormRepo) LowStockBooks(ctx context.Context, threshold int) ([]models.Book, error) {
	var books []models.Book
	err := r.DB.WithContext(ctx).
		Preload("Category").
		Where("is_active = ? AND stock <= ?", true, threshold).
		Order("stock ASC").Order("id ASC").
		Find(&books).Error
	return books, err
}
