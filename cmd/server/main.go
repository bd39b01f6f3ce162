package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Skotchmaster/bookstore/internal/cache"
	"github.com/Skotchmaster/bookstore/internal/config"
	"github.com/Skotchmaster/bookstore/internal/events"
	"github.com/Skotchmaster/bookstore/internal/httpserver"
	"github.com/Skotchmaster/bookstore/internal/jobs"
	"github.com/Skotchmaster/bookstore/internal/metrics"
	"github.com/Skotchmaster/bookstore/internal/middleware/auth"
	ratelimitmw "github.com/Skotchmaster/bookstore/internal/middleware/ratelimit"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/ratelimit"
	"github.com/Skotchmaster/bookstore/internal/repo"
	"github.com/Skotchmaster/bookstore/internal/search"
	"github.com/Skotchmaster/bookstore/internal/service/admin"
	authsvc "github.com/Skotchmaster/bookstore/internal/service/auth"
	"github.com/Skotchmaster/bookstore/internal/service/cart"
	"github.com/Skotchmaster/bookstore/internal/service/catalog"
	"github.com/Skotchmaster/bookstore/internal/service/favorite"
	"github.com/Skotchmaster/bookstore/internal/service/inventory"
	"github.com/Skotchmaster/bookstore/internal/service/order"
	"github.com/Skotchmaster/bookstore/pkg/db"
	"github.com/Skotchmaster/bookstore/pkg/logging"
	"github.com/Skotchmaster/bookstore/pkg/tokens"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server_exit", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	base := logging.New(cfg.LogLevel)
	slog.SetDefault(base)
	ctx := logging.IntoContext(context.Background(), base)

	initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	gdb, err := db.Open(initCtx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(gdb); err != nil {
			base.Error("db_close_failed", "error", err)
		}
	}()
	if err := db.Migrate(initCtx, gdb, models.All()...); err != nil {
		return err
	}
	r := repo.New(gdb)
	m := metrics.New()

	var c cache.Cache
	if cfg.RedisAddr != "" {
		rc := cache.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}), "bookstore:", cfg.CacheTTL)
		if err := rc.Ping(initCtx); err != nil {
			return err
		}
		defer rc.Close()
		c = rc
		base.Info("cache_backend", "backend", "redis", "addr", cfg.RedisAddr)
	} else {
		mc := cache.NewMemory(cache.WithDefaultTTL(cfg.CacheTTL), cache.WithSlidingTTL(cfg.CacheSlidingTTL))
		defer mc.Close()
		if cfg.SweepSchedule == "" {
			mc.StartJanitor(5 * time.Minute)
		}
		c = mc
		base.Info("cache_backend", "backend", "memory")
	}

	var pub events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		p := events.NewProducer(cfg.KafkaBrokers)
		defer func() {
			if err := p.Close(); err != nil {
				base.Error("kafka_close_failed", "error", err)
			}
		}()
		pub = p
	}

	catalogOpts := []catalog.Option{catalog.WithCache(c)}
	if cfg.ESURL != "" {
		idx, err := search.NewClient(initCtx, search.Config{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword, Index: cfg.ESIndex})
		if err != nil {
			base.Warn("search_unavailable", "reason", "falling back to database search", "error", err)
		} else {
			catalogOpts = append(catalogOpts, catalog.WithIndex(idx))
		}
	}

	signer := tokens.NewSigner(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAud, cfg.AccessTTL)
	authSvc := authsvc.New(r, signer,
		authsvc.WithAccessTTL(cfg.AccessTTL),
		authsvc.WithRefreshTTL(cfg.RefreshTTL),
		authsvc.WithPublisher(pub),
	)
	ledger := inventory.New(r, m)
	catalogSvc := catalog.New(r, catalogOpts...)
	orderSvc := order.New(r, ledger, order.WithCache(c), order.WithPublisher(pub), order.WithMetrics(m))

	if cfg.AdminBootstrap() {
		created, err := authSvc.EnsureAdmin(initCtx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return err
		}
		base.Info("admin_bootstrap", "username", cfg.AdminUsername, "created", created)
	}
	if n, err := catalogSvc.Reindex(initCtx); err != nil {
		base.Warn("reindex_failed", "error", err)
	} else if n > 0 {
		base.Info("reindexed", "books", n)
	}

	limiter := ratelimit.New(ratelimit.DefaultRules())
	guard := ratelimitmw.NewGuard(cfg.GuardRPS, cfg.GuardBurst)
	sweepers := []jobs.Sweeper{limiter}
	if guard != nil {
		sweepers = append(sweepers, guard)
	}
	if mc, ok := c.(*cache.Memory); ok {
		sweepers = append(sweepers, mc)
	}

	runner := jobs.New(base, jobs.Config{
		PurgeSchedule:     cfg.PurgeSchedule,
		LowStockSchedule:  cfg.LowStockSchedule,
		SweepSchedule:     cfg.SweepSchedule,
		LowStockThreshold: cfg.LowStockThreshold,
		TokenRetention:    24 * time.Hour,
		JobTimeout:        time.Minute,
	}, authSvc, ledger, pub, sweepers...)
	if err := runner.Start(); err != nil {
		return err
	}

	cookies := auth.Cookies{Secure: cfg.CookieSecure}
	e := httpserver.New(httpserver.Deps{
		Logger:        base,
		DB:            gdb,
		Metrics:       m,
		Limiter:       limiter,
		Guard:         guard,
		Authenticator: auth.NewAuthenticator(authSvc, cookies),
		CookieSecure:  cfg.CookieSecure,
		CORSOrigins:   cfg.CORSOrigins,

		Auth:      &httpserver.AuthHTTP{Svc: authSvc, Cookies: cookies},
		Catalog:   &httpserver.CatalogHTTP{Svc: catalogSvc},
		Orders:    &httpserver.OrderHTTP{Svc: orderSvc},
		Cart:      &httpserver.CartHTTP{Svc: cart.New(r, ledger), Orders: orderSvc},
		Favorites: &httpserver.FavoriteHTTP{Svc: favorite.New(r)},
		Admin: &httpserver.AdminHTTP{
			Svc:               admin.New(r),
			Ledger:            ledger,
			Auth:              authSvc,
			Cache:             c,
			LowStockThreshold: cfg.LowStockThreshold,
		},
	})
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Server.IdleTimeout = 60 * time.Second

	errCh := make(chan error, 1)
	go func() {
		base.Info("http_listening", "addr", cfg.Addr())
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-stop:
		base.Info("shutting_down", "signal", sig.String())
	case err := <-errCh:
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		base.Error("http_shutdown_failed", "error", err)
	}
	runner.Stop(shutdownCtx)
	base.Info("shutdown_complete")
	return nil
}
