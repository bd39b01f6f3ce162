package repo

import (
	"context"
	"time"

	"github.com/Skotchmaster/bookstore/internal/models"
)

func (r *GormRepo) CreateRefreshToken(ctx context.Context, t *models.RefreshToken) error {
	return r.DB.WithContext(ctx).Create(t).Error
}

func (r *GormRepo) FindRefreshByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	var t models.RefreshToken
	if err := r.DB.WithContext(ctx).Where("token_hash = ?", hash).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// DeactivateRefresh flips one active token off; false means another caller got there first.
func (r *GormRepo) DeactivateRefresh(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("id = ? AND is_active = ?", id, true).
		UpdateColumns(map[string]any{"is_active": false, "revoked_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepo) RevokeRefreshByHash(ctx context.Context, hash string, at time.Time) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ? AND is_active = ?", hash, true).
		UpdateColumns(map[string]any{"is_active": false, "revoked_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormRepo) RevokeAllRefreshForUser(ctx context.Context, userID uint, at time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		UpdateColumns(map[string]any{"is_active": false, "revoked_at": at})
	return res.RowsAffected, res.Error
}

func (r *GormRepo) CountActiveRefreshForUser(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&n).Error
	return n, err
}

// PurgeRefreshTokens deletes tokens that expired, or were revoked, before cutoff.
func (r *GormRepo) PurgeRefreshTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("expires_at < ? OR (is_active = ? AND revoked_at < ?)", cutoff, false, cutoff).
		Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}
