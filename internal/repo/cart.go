package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/Skotchmaster/bookstore/internal/models"
)

func (r *GormRepo) GetCart(ctx context.Context, userID uint) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.DB.WithContext(ctx).
		Preload("Book").
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// CartQuantity returns 0 when the book is not in the cart.
func (r *GormRepo) CartQuantity(ctx context.Context, userID, bookID uint) (int, error) {
	var qty []int
	if err := r.DB.WithContext(ctx).Model(&models.CartItem{}).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Limit(1).
		Pluck("quantity", &qty).Error; err != nil {
		return 0, err
	}
	if len(qty) == 0 {
		return 0, nil
	}
	return qty[0], nil
}

func (r *GormRepo) AddToCart(ctx context.Context, item *models.CartItem) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.CartItem{}).
			Where("user_id = ? AND book_id = ?", item.UserID, item.BookID).
			Update("quantity", gorm.Expr("quantity + ?", item.Quantity))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return tx.Where("user_id = ? AND book_id = ?", item.UserID, item.BookID).First(item).Error
		}

		return tx.Omit("Book").Create(item).Error
	})
}

func (r *GormRepo) SetCartQuantity(ctx context.Context, userID, bookID uint, qty int) error {
	res := r.DB.WithContext(ctx).Model(&models.CartItem{}).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Update("quantity", qty)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) RemoveFromCart(ctx context.Context, userID, bookID uint) error {
	res := r.DB.WithContext(ctx).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Delete(&models.CartItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) ClearCart(ctx context.Context, userID uint) (int64, error) {
	res := r.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}
