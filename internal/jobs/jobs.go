// Package jobs runs periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Skotchmaster/bookstore/internal/events"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/pkg/logging"
)

type TokenPurger interface {
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

type StockScanner interface {
	LowStock(ctx context.Context, threshold int) ([]models.Book, error)
}

type Sweeper interface {
	Sweep() int
}

type Config struct {
	PurgeSchedule     string
	LowStockSchedule  string
	SweepSchedule     string
	LowStockThreshold int
	// Tokens expired or revoked longer ago than this are deleted.
	TokenRetention time.Duration
	JobTimeout     time.Duration
}

func DefaultConfig() Config {
	return Config{
		PurgeSchedule:     "@every 1h",
		LowStockSchedule:  "@every 15m",
		SweepSchedule:     "@every 5m",
		LowStockThreshold: 5,
		TokenRetention:    24 * time.Hour,
		JobTimeout:        time.Minute,
	}
}

type Runner struct {
	cfg      Config
	log      *slog.Logger
	tokens   TokenPurger
	stock    StockScanner
	events   events.Publisher
	sweepers []Sweeper
	now      func() time.Time
	cron     *cron.Cron
}

func New(base *slog.Logger, cfg Config, tokens TokenPurger, stock StockScanner, pub events.Publisher, sweepers ...Sweeper) *Runner {
	if pub == nil {
		pub = events.Nop{}
	}
	l := base.With("component", "jobs")
	return &Runner{
		cfg:      cfg,
		log:      l,
		tokens:   tokens,
		stock:    stock,
		events:   pub,
		sweepers: sweepers,
		now:      time.Now,
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger{l}))),
	}
}

// Start registers every job with a non-empty schedule and starts the scheduler.
func (r *Runner) Start() error {
	jobs := []struct {
		name     string
		schedule string
		fn       func(context.Context) error
	}{
		{"purge_refresh_tokens", r.cfg.PurgeSchedule, func(ctx context.Context) error { _, err := r.PurgeTokens(ctx); return err }},
		{"low_stock_scan", r.cfg.LowStockSchedule, func(ctx context.Context) error { _, err := r.ScanLowStock(ctx); return err }},
		{"sweep", r.cfg.SweepSchedule, func(context.Context) error { r.Sweep(); return nil }},
	}
	for _, j := range jobs {
		if j.schedule == "" {
			continue
		}
		j := j
		if _, err := r.cron.AddFunc(j.schedule, func() { r.run(j.name, j.fn) }); err != nil {
			return fmt.Errorf("schedule %s %q: %w", j.name, j.schedule, err)
		}
		r.log.Info("job_scheduled", "job", j.name, "schedule", j.schedule)
	}
	r.cron.Start()
	return nil
}

// Stop waits for running jobs or ctx, whichever comes first.
func (r *Runner) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

func (r *Runner) run(name string, fn func(context.Context) error) {
	timeout := r.cfg.JobTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	l := r.log.With("job", name)
	ctx, cancel := context.WithTimeout(logging.IntoContext(context.Background(), l), timeout)
	defer cancel()

	start := time.Now()
	if err := fn(ctx); err != nil {
		l.Error("job_failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return
	}
	l.Debug("job_done", "duration_ms", time.Since(start).Milliseconds())
}

func (r *Runner) PurgeTokens(ctx context.Context) (int64, error) {
	if r.tokens == nil {
		return 0, nil
	}
	n, err := r.tokens.PurgeExpired(ctx, r.now().Add(-r.cfg.TokenRetention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logging.FromContext(ctx).Info("refresh_tokens_purged", "count", n)
	}
	return n, nil
}

// ScanLowStock publishes one low_stock event per book at or under the threshold.
func (r *Runner) ScanLowStock(ctx context.Context) (int, error) {
	if r.stock == nil {
		return 0, nil
	}
	books, err := r.stock.LowStock(ctx, r.cfg.LowStockThreshold)
	if err != nil {
		return 0, err
	}
	at := r.now().UTC()
	for _, b := range books {
		events.Notify(ctx, r.events, events.TopicInventory, b.ID, events.LowStock{
			Type:      events.TypeLowStock,
			BookID:    b.ID,
			Title:     b.Title,
			Stock:     b.Stock,
			Threshold: r.cfg.LowStockThreshold,
			At:        at,
		})
	}
	if len(books) > 0 {
		logging.FromContext(ctx).Warn("low_stock", "books", len(books), "threshold", r.cfg.LowStockThreshold)
	}
	return len(books), nil
}

func (r *Runner) Sweep() int {
	n := 0
	for _, s := range r.sweepers {
		n += s.Sweep()
	}
	return n
}

type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, kv ...any) { c.l.Debug(msg, kv...) }
func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error(msg, append(kv, "error", err)...)
}
