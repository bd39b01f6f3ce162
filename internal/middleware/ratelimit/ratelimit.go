// Package ratelimit rejects over-limit requests with 429 before they reach handlers.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/bookstore/internal/metrics"
	"github.com/Skotchmaster/bookstore/internal/ratelimit"
	"github.com/Skotchmaster/bookstore/pkg/logging"
)

type Config struct {
	Skipper middleware.Skipper
	Limiter *ratelimit.Limiter
	Guard   *Guard
	Metrics *metrics.Metrics
}

// ClientID identifies a caller by address and user agent.
func ClientID(c echo.Context) string {
	return c.RealIP() + "|" + c.Request().UserAgent()
}

func Middleware(cfg Config) echo.MiddlewareFunc {
	if cfg.Skipper == nil {
		cfg.Skipper = middleware.DefaultSkipper
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper(c) {
				return next(c)
			}
			l := logging.FromContext(c.Request().Context()).With("handler", "ratelimit")

			if !cfg.Guard.Allow(c.RealIP()) {
				cfg.Metrics.RateLimited("guard")
				l.Warn("rate_limited", "status", 429, "reason", "burst guard", "ip", c.RealIP())
				return tooMany(c, time.Second)
			}
			if cfg.Limiter == nil {
				return next(c)
			}

			exceeded, retry, rule := cfg.Limiter.IsExceeded(ClientID(c), c.Request().URL.Path)
			if exceeded {
				cfg.Metrics.RateLimited(rule.Prefix)
				l.Warn("rate_limited", "status", 429, "reason", "window limit", "rule", rule.Prefix, "limit", rule.Limit, "retry_after_s", retry.Seconds())
				return tooMany(c, retry)
			}
			return next(c)
		}
	}
}

func tooMany(c echo.Context, retry time.Duration) error {
	secs := int(math.Ceil(retry.Seconds()))
	if secs < 1 {
		secs = 1
	}
	c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
	return c.JSON(http.StatusTooManyRequests, map[string]any{
		"success":    false,
		"message":    "Too many requests. Please try again later.",
		"retryAfter": secs,
		"timestamp":  time.Now().UTC(),
	})
}
