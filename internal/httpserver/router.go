package httpserver

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	"github.com/Skotchmaster/bookstore/internal/metrics"
	"github.com/Skotchmaster/bookstore/internal/middleware/auth"
	"github.com/Skotchmaster/bookstore/internal/middleware/csrf"
	ratelimitmw "github.com/Skotchmaster/bookstore/internal/middleware/ratelimit"
	"github.com/Skotchmaster/bookstore/internal/ratelimit"
	"github.com/Skotchmaster/bookstore/pkg/db"
	loggingmw "github.com/Skotchmaster/bookstore/pkg/middleware/logging"
)

type Deps struct {
	Logger  *slog.Logger
	DB      *gorm.DB
	Metrics *metrics.Metrics

	Limiter       *ratelimit.Limiter
	Guard         *ratelimitmw.Guard
	Authenticator *auth.Authenticator
	CookieSecure  bool
	CORSOrigins   []string

	Auth      *AuthHTTP
	Catalog   *CatalogHTTP
	Orders    *OrderHTTP
	Cart      *CartHTTP
	Favorites *FavoriteHTTP
	Admin     *AdminHTTP
}

func isOps(c echo.Context) bool {
	p := c.Request().URL.Path
	return strings.HasPrefix(p, "/health/") || p == "/metrics"
}

func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()
	e.HTTPErrorHandler = ErrorHandler

	e.Use(
		middleware.Recover(),
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}),
		loggingmw.RequestLogger(d.Logger),
		d.Metrics.Middleware(),
		middleware.Secure(),
		middleware.BodyLimit("1M"),
	)
	if len(d.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     d.CORSOrigins,
			AllowCredentials: true,
			AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType, "X-CSRF-Token"},
		}))
	}
	e.Use(ratelimitmw.Middleware(ratelimitmw.Config{
		Skipper: isOps,
		Limiter: d.Limiter,
		Guard:   d.Guard,
		Metrics: d.Metrics,
	}))

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.DB != nil {
			if err := db.Ping(c.Request().Context(), d.DB); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable").SetInternal(err)
			}
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}

	csrfCfg := csrf.DefaultConfig()
	csrfCfg.Secure = d.CookieSecure
	csrfCfg.Skipper = csrf.CookieSessionsOnly(auth.AccessCookie)

	api := e.Group("/api", d.Authenticator.Middleware(), csrf.Middleware(csrfCfg))
	register(api, d)
	return e
}

func register(api *echo.Group, d Deps) {
	authed := auth.RequireAuth
	admin := auth.RequireAdmin

	a := api.Group("/auth")
	a.POST("/login", d.Auth.Login)
	a.POST("/register", d.Auth.Register)
	a.POST("/refresh", d.Auth.Refresh)
	a.POST("/logout", d.Auth.Logout)
	a.POST("/revoke-all", d.Auth.RevokeAll, authed)
	a.POST("/change-password", d.Auth.ChangePassword, authed)
	a.GET("/me", d.Auth.Me, authed)

	b := api.Group("/books")
	b.GET("", d.Catalog.ListBooks)
	b.GET("/search", d.Catalog.SearchBooks)
	b.GET("/newest", d.Catalog.Newest)
	b.GET("/popular", d.Catalog.Popular)
	b.GET("/:id", d.Catalog.GetBook)
	b.POST("", d.Catalog.CreateBook, admin)
	b.PUT("/:id", d.Catalog.UpdateBook, admin)
	b.DELETE("/:id", d.Catalog.DeleteBook, admin)

	cg := api.Group("/categories")
	cg.GET("", d.Catalog.ListCategories)
	cg.GET("/:id", d.Catalog.GetCategory)
	cg.POST("", d.Catalog.CreateCategory, admin)
	cg.PUT("/:id", d.Catalog.UpdateCategory, admin)
	cg.DELETE("/:id", d.Catalog.DeleteCategory, admin)

	o := api.Group("/orders", authed)
	o.GET("", d.Orders.List, admin)
	o.GET("/my-orders", d.Orders.Mine)
	o.GET("/statistics", d.Orders.Statistics, admin)
	o.GET("/:id", d.Orders.Get)
	o.POST("", d.Orders.Create)
	o.PUT("/:id/status", d.Orders.UpdateStatus, admin)
	o.POST("/:id/cancel", d.Orders.Cancel)
	o.DELETE("/:id", d.Orders.Delete, admin)

	ct := api.Group("/cart", authed)
	ct.GET("", d.Cart.Get)
	ct.POST("/items", d.Cart.Add)
	ct.PUT("/items/:bookId", d.Cart.SetQuantity)
	ct.DELETE("/items/:bookId", d.Cart.Remove)
	ct.DELETE("", d.Cart.Clear)
	ct.POST("/checkout", d.Cart.Checkout)

	f := api.Group("/favorites", authed)
	f.GET("", d.Favorites.List)
	f.POST("/:bookId", d.Favorites.Add)
	f.DELETE("/:bookId", d.Favorites.Remove)

	ad := api.Group("/admin", admin)
	ad.GET("/dashboard", d.Admin.Dashboard)
	ad.GET("/inventory/low-stock", d.Admin.LowStock)
	ad.PUT("/inventory/:bookId", d.Admin.SetStock)
	ad.GET("/users", d.Admin.Users)
	ad.POST("/users/:id/revoke-tokens", d.Admin.RevokeUserTokens)
}
