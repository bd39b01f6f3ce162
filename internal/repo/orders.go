package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/bookstore/internal/models"
)

func (r *GormRepo) CreateOrders(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Omit("User", "Book").Create(&orders).Error
}

func (r *GormRepo) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	if err := r.DB.WithContext(ctx).
		Preload("Book").
		Preload("User").
		Where("id = ?", id).
		First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *GormRepo) ListUserOrders(ctx context.Context, userID uint) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB.WithContext(ctx).
		Preload("Book").
		Where("user_id = ?", userID).
		Order("ordered_at DESC").Order("id DESC").
		Find(&orders).Error
	return orders, err
}

// ListOrders filters by status when status is non-empty.
func (r *GormRepo) ListOrders(ctx context.Context, status models.OrderStatus, offset, limit int) (int64, []models.Order, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if status != "" {
			return db.Where("status = ?", status)
		}
		return db
	}

	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Order{}).Scopes(scope).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var orders []models.Order
	if err := r.DB.WithContext(ctx).
		Scopes(scope).
		Preload("Book").
		Preload("User").
		Order("ordered_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&orders).Error; err != nil {
		return 0, nil, err
	}
	return total, orders, nil
}

// TransitionOrder moves an order from one status to another; false means the
// stored status was no longer `from`.
func (r *GormRepo) TransitionOrder(ctx context.Context, id uint, from, to models.OrderStatus) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		UpdateColumns(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepo) DeleteOrder(ctx context.Context, id uint) error {
	res := r.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Order{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) OrderStatusCounts(ctx context.Context) (map[models.OrderStatus]int64, error) {
	var rows []struct {
		Status models.OrderStatus
		Cnt    int64
	}
	if err := r.DB.WithContext(ctx).Model(&models.Order{}).
		Select("status, COUNT(*) AS cnt").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[models.OrderStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Cnt
	}
	return out, nil
}

func (r *GormRepo) CountOrders(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Order{}).Count(&n).Error
	return n, err
}

// SalesTotal sums totals of orders that were not cancelled.
func (r *GormRepo) SalesTotal(ctx context.Context) (sum int64, count int64, err error) {
	var row struct {
		Total int64
		Cnt   int64
	}
	if err := r.DB.WithContext(ctx).Model(&models.Order{}).
		Select("COALESCE(SUM(total_price), 0) AS total, COUNT(*) AS cnt").
		Where("status <> ?", models.OrderCancelled).
		Scan(&row).Error; err != nil {
		return 0, 0, err
	}
	return row.Total, row.Cnt, nil
}
