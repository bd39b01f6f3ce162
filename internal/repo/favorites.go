package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/Skotchmaster/bookstore/internal/models"
)

func (r *GormRepo) ListFavorites(ctx context.Context, userID uint) ([]models.Favorite, error) {
	var items []models.Favorite
	err := r.DB.WithContext(ctx).
		Preload("Book").
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&items).Error
	return items, err
}

func (r *GormRepo) IsFavorite(ctx context.Context, userID, bookID uint) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Favorite{}).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Count(&n).Error
	return n > 0, err
}

// AddFavorite reports false when the pair already existed.
func (r *GormRepo) AddFavorite(ctx context.Context, fav *models.Favorite) (bool, error) {
	exists, err := r.IsFavorite(ctx, fav.UserID, fav.BookID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := r.DB.WithContext(ctx).Omit("Book").Create(fav).Error; err != nil {
		if IsDuplicate(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *GormRepo) RemoveFavorite(ctx context.Context, userID, bookID uint) error {
	res := r.DB.WithContext(ctx).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Delete(&models.Favorite{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
