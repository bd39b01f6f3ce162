package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/internal/cache"
	"github.com/Skotchmaster/bookstore/internal/service/admin"
	authsvc "github.com/Skotchmaster/bookstore/internal/service/auth"
	"github.com/Skotchmaster/bookstore/internal/service/inventory"
	"github.com/Skotchmaster/bookstore/internal/util"
	"github.com/Skotchmaster/bookstore/pkg/logging"
)

type AdminHTTP struct {
	Svc               *admin.Service
	Ledger            *inventory.Ledger
	Auth              *authsvc.Service
	Cache             cache.Cache
	LowStockThreshold int
}

func (h *AdminHTTP) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()
	d, err := h.Svc.Dashboard(ctx, h.LowStockThreshold)
	if err != nil {
		return fail(logging.FromContext(ctx).With("handler", "admin_dashboard"), "dashboard", err)
	}
	return respond(c, http.StatusOK, "", d)
}

func (h *AdminHTTP) LowStock(c echo.Context) error {
	ctx := c.Request().Context()
	threshold := util.ParseIntDefault(c.QueryParam("threshold"), h.LowStockThreshold)
	books, err := h.Ledger.LowStock(ctx, threshold)
	if err != nil {
		return fail(logging.FromContext(ctx).With("handler", "admin_low_stock"), "low_stock", err)
	}
	return respond(c, http.StatusOK, "", books)
}

func (h *AdminHTTP) SetStock(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_set_stock")

	bookID, err := paramID(c, "bookId")
	if err != nil {
		return err
	}
	var req stockRequest
	if err := bind(c, &req); err != nil {
		l.Warn("set_stock_failed", "status", 400, "error", err)
		return err
	}
	if err := h.Ledger.SetStock(ctx, bookID, *req.Stock); err != nil {
		return fail(l, "set_stock", err)
	}
	cache.Invalidate(ctx, h.Cache, cache.TagBook(bookID), cache.TagBooks)
	return respond(c, http.StatusOK, "Stock updated", echo.Map{"book_id": bookID, "stock": *req.Stock})
}

func (h *AdminHTTP) Users(c echo.Context) error {
	ctx := c.Request().Context()
	page, size := pageParams(c)
	res, err := h.Svc.ListUsers(ctx, page, size)
	if err != nil {
		return fail(logging.FromContext(ctx).With("handler", "admin_users"), "list_users", err)
	}
	return respond(c, http.StatusOK, "", res)
}

func (h *AdminHTTP) RevokeUserTokens(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	n, err := h.Auth.RevokeAll(ctx, id)
	if err != nil {
		return fail(logging.FromContext(ctx).With("handler", "admin_revoke_tokens"), "revoke_user_tokens", err)
	}
	return respond(c, http.StatusOK, "Tokens revoked", echo.Map{"revoked": n})
}
