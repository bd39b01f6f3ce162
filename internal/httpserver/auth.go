package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/internal/domain"
	"github.com/Skotchmaster/bookstore/internal/middleware/auth"
	authsvc "github.com/Skotchmaster/bookstore/internal/service/auth"
	"github.com/Skotchmaster/bookstore/pkg/logging"
)

type AuthHTTP struct {
	Svc     *authsvc.Service
	Cookies auth.Cookies
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req loginRequest
	if err := bind(c, &req); err != nil {
		l.Warn("login_failed", "status", 400, "error", err)
		return err
	}

	pair, err := h.Svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		return fail(l, "login", err)
	}
	h.Cookies.Set(c, pair)
	return respond(c, http.StatusOK, "Login successful", pair)
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req registerRequest
	if err := bind(c, &req); err != nil {
		l.Warn("register_failed", "status", 400, "error", err)
		return err
	}

	var actor *domain.Principal
	if p, ok := auth.PrincipalFrom(c); ok {
		actor = &p
	}
	user, err := h.Svc.Register(ctx, authsvc.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Role:            req.Role,
	}, actor)
	if err != nil {
		return fail(l, "register", err)
	}
	return respond(c, http.StatusCreated, "Registration successful", echo.Map{"user": authsvc.NewUserInfo(user)})
}

// refreshToken prefers the body and falls back to the cookie.
func refreshToken(c echo.Context) string {
	var req refreshRequest
	_ = c.Bind(&req)
	if req.RefreshToken != "" {
		return req.RefreshToken
	}
	if ck, err := c.Cookie(auth.RefreshCookie); err == nil {
		return ck.Value
	}
	return ""
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	pair, err := h.Svc.Refresh(ctx, refreshToken(c))
	if err != nil {
		h.Cookies.Clear(c)
		return fail(l, "refresh", err)
	}
	h.Cookies.Set(c, pair)
	return respond(c, http.StatusOK, "Token refreshed", pair)
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	raw := refreshToken(c)
	h.Cookies.Clear(c)
	if raw == "" {
		l.Warn("logout_failed", "status", 400, "reason", "no refresh token")
		return echo.NewHTTPError(http.StatusBadRequest, "refresh token is required")
	}
	revoked, err := h.Svc.Revoke(ctx, raw)
	if err != nil {
		return fail(l, "logout", err)
	}
	l.Info("logout_ok", "revoked", revoked)
	return respond(c, http.StatusOK, "Logged out", nil)
}

func (h *AuthHTTP) RevokeAll(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_revoke_all")

	p, err := principal(c)
	if err != nil {
		return err
	}
	n, err := h.Svc.RevokeAll(ctx, p.UserID)
	if err != nil {
		return fail(l, "revoke_all", err)
	}
	h.Cookies.Clear(c)
	return respond(c, http.StatusOK, "All sessions revoked", echo.Map{"revoked": n})
}

func (h *AuthHTTP) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_change_password")

	p, err := principal(c)
	if err != nil {
		return err
	}
	var req changePasswordRequest
	if err := bind(c, &req); err != nil {
		l.Warn("change_password_failed", "status", 400, "error", err)
		return err
	}
	if err := h.Svc.ChangePassword(ctx, p.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		return fail(l, "change_password", err)
	}
	h.Cookies.Clear(c)
	return respond(c, http.StatusOK, "Password changed, please log in again", nil)
}

func (h *AuthHTTP) Me(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_me")

	p, err := principal(c)
	if err != nil {
		return err
	}
	user, err := h.Svc.Me(ctx, p.UserID)
	if err != nil {
		return fail(l, "me", err)
	}
	return respond(c, http.StatusOK, "", authsvc.NewUserInfo(user))
}
