// Package auth resolves the caller of each request from its access token and
// guards routes by role.
package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/internal/domain"
	authsvc "github.com/Skotchmaster/bookstore/internal/service/auth"
	"github.com/Skotchmaster/bookstore/pkg/logging"
)

type TokenService interface {
	ValidateAccess(token string) (domain.Principal, error)
	Refresh(ctx context.Context, raw string) (*authsvc.TokenPair, error)
}

const (
	principalKey = "principal"
	tokenErrKey  = "auth_token_error"
)

type tokenError struct {
	token string
	err   error
}

type Authenticator struct {
	svc     TokenService
	cookies Cookies
}

func NewAuthenticator(svc TokenService, cookies Cookies) *Authenticator {
	return &Authenticator{svc: svc, cookies: cookies}
}

// Middleware attaches a Principal to the request context when the request
// carries a valid access token. Requests without one continue anonymously.
// An expired cookie token is rotated in place when a refresh cookie is present;
// any other bad token is rejected with 401 and the auth cookies are cleared.
func (a *Authenticator) Middleware() echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:             principalKey,
		TokenLookup:            "header:Authorization:Bearer ,cookie:" + AccessCookie,
		ContinueOnIgnoredError: true,
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			p, err := a.svc.ValidateAccess(token)
			if err != nil {
				c.Set(tokenErrKey, tokenError{token: token, err: err})
				return nil, err
			}
			return p, nil
		},
		SuccessHandler: func(c echo.Context) {
			if p, ok := c.Get(principalKey).(domain.Principal); ok {
				setPrincipal(c, p)
			}
		},
		ErrorHandler: a.handleError,
	})
}

func (a *Authenticator) handleError(c echo.Context, _ error) error {
	te, ok := c.Get(tokenErrKey).(tokenError)
	if !ok {
		return nil
	}
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_middleware")

	fromCookie := te.token == cookieValue(c, AccessCookie)
	if errors.Is(te.err, jwt.ErrTokenExpired) && fromCookie {
		if refresh := cookieValue(c, RefreshCookie); refresh != "" {
			pair, err := a.svc.Refresh(ctx, refresh)
			if err == nil {
				a.cookies.Set(c, pair)
				setPrincipal(c, domain.Principal{UserID: pair.User.ID, Username: pair.User.Username, Role: pair.User.Role})
				l.Info("access_token_rotated", "user_id", pair.User.ID)
				return nil
			}
			l.Warn("access_token_rotation_failed", "status", 401, "error", err)
		}
	}

	a.cookies.Clear(c)
	l.Warn("access_token_rejected", "status", 401, "reason", "invalid or expired token", "error", te.err)
	return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
}

func setPrincipal(c echo.Context, p domain.Principal) {
	req := c.Request()
	ctx := domain.ContextWithPrincipal(req.Context(), p)
	ctx = logging.IntoContext(ctx, logging.FromContext(ctx).With("user_id", p.UserID))
	c.SetRequest(req.WithContext(ctx))
}

// PrincipalFrom returns the caller resolved by Middleware.
func PrincipalFrom(c echo.Context) (domain.Principal, bool) {
	return domain.PrincipalFromContext(c.Request().Context())
}
