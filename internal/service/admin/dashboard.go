// Package admin serves the back-office read models.
package admin

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Skotchmaster/bookstore/internal/domain"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/repo"
	"github.com/Skotchmaster/bookstore/internal/util"
)

const recentOrders = 5

type Service struct {
	repo *repo.GormRepo
}

func New(r *repo.GormRepo) *Service {
	return &Service{repo: r}
}

type Dashboard struct {
	TotalBooks     int64                        `json:"total_books"`
	ActiveUsers    int64                        `json:"active_users"`
	TotalOrders    int64                        `json:"total_orders"`
	TotalSales     int64                        `json:"total_sales"`
	PendingOrders  int64                        `json:"pending_orders"`
	LowStockBooks  int64                        `json:"low_stock_books"`
	StatusCounts   map[models.OrderStatus]int64 `json:"status_counts"`
	RecentOrders   []models.Order               `json:"recent_orders"`
	LowStockCutoff int                          `json:"low_stock_threshold"`
}

// Dashboard runs its independent reads concurrently and fails if any of them does.
func (s *Service) Dashboard(ctx context.Context, lowStockThreshold int) (*Dashboard, error) {
	d := &Dashboard{LowStockCutoff: lowStockThreshold}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		d.TotalBooks, err = s.repo.CountActiveBooks(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.ActiveUsers, err = s.repo.CountActiveUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.TotalOrders, err = s.repo.CountOrders(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.TotalSales, _, err = s.repo.SalesTotal(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.LowStockBooks, err = s.repo.CountLowStockBooks(gctx, lowStockThreshold)
		return err
	})
	g.Go(func() error {
		counts, err := s.repo.OrderStatusCounts(gctx)
		if err != nil {
			return err
		}
		d.StatusCounts = make(map[models.OrderStatus]int64, len(models.AllOrderStatuses()))
		for _, st := range models.AllOrderStatuses() {
			d.StatusCounts[st] = counts[st]
		}
		d.PendingOrders = counts[models.OrderPending]
		return nil
	})
	g.Go(func() (err error) {
		_, d.RecentOrders, err = s.repo.ListOrders(gctx, "", 0, recentOrders)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) ListUsers(ctx context.Context, page, size int) (domain.Page[models.User], error) {
	page, size = util.Normalize(page, size)
	from, limit := util.Calculate(page, size)
	total, users, err := s.repo.ListUsers(ctx, from, limit)
	if err != nil {
		return domain.Page[models.User]{}, err
	}
	return domain.NewPage(users, total, page, size), nil
}
