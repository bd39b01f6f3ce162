package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/internal/service/cart"
	"github.com/Skotchmaster/bookstore/internal/service/favorite"
	"github.com/Skotchmaster/bookstore/internal/service/order"
	"github.com/Skotchmaster/bookstore/pkg/logging"
)

type CartHTTP struct {
	Svc    *cart.Service
	Orders *order.Service
}

func (h *CartHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := principal(c)
	if err != nil {
		return err
	}
	ct, err := h.Svc.Get(ctx, p.UserID)
	if err != nil {
		return fail(logging.FromContext(ctx).With("handler", "cart_get"), "get_cart", err)
	}
	return respond(c, http.StatusOK, "", ct)
}

func (h *CartHTTP) Add(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart_add")

	p, err := principal(c)
	if err != nil {
		return err
	}
	var req cartItemRequest
	if err := bind(c, &req); err != nil {
		l.Warn("add_to_cart_failed", "status", 400, "error", err)
		return err
	}
	item, err := h.Svc.Add(ctx, p.UserID, req.BookID, req.Quantity)
	if err != nil {
		return fail(l, "add_to_cart", err)
	}
	return respond(c, http.StatusOK, "Added to cart", item)
}

func (h *CartHTTP) SetQuantity(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart_set_quantity")

	p, err := principal(c)
	if err != nil {
		return err
	}
	bookID, err := paramID(c, "bookId")
	if err != nil {
		return err
	}
	var req quantityRequest
	if err := bind(c, &req); err != nil {
		l.Warn("set_quantity_failed", "status", 400, "error", err)
		return err
	}
	if err := h.Svc.SetQuantity(ctx, p.UserID, bookID, req.Quantity); err != nil {
		return fail(l, "set_quantity", err)
	}
	return respond(c, http.StatusOK, "Cart updated", nil)
}

func (h *CartHTTP) Remove(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := principal(c)
	if err != nil {
		return err
	}
	bookID, err := paramID(c, "bookId")
	if err != nil {
		return err
	}
	if err := h.Svc.Remove(ctx, p.UserID, bookID); err != nil {
		return fail(logging.FromContext(ctx).With("handler", "cart_remove"), "remove_from_cart", err)
	}
	return respond(c, http.StatusOK, "Removed from cart", nil)
}

func (h *CartHTTP) Clear(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := principal(c)
	if err != nil {
		return err
	}
	n, err := h.Svc.Clear(ctx, p.UserID)
	if err != nil {
		return fail(logging.FromContext(ctx).With("handler", "cart_clear"), "clear_cart", err)
	}
	return respond(c, http.StatusOK, "Cart cleared", echo.Map{"removed": n})
}

func (h *CartHTTP) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart_checkout")

	p, err := principal(c)
	if err != nil {
		return err
	}
	var req checkoutRequest
	if err := bind(c, &req); err != nil {
		l.Warn("checkout_failed", "status", 400, "error", err)
		return err
	}
	res, err := h.Orders.Checkout(ctx, order.CheckoutInput{
		UserID:          p.UserID,
		DeliveryAddress: req.DeliveryAddress,
		Phone:           req.Phone,
		Notes:           req.Notes,
	})
	if err != nil {
		return fail(l, "checkout", err)
	}
	return respond(c, http.StatusCreated, "Checkout complete", res)
}

type FavoriteHTTP struct {
	Svc *favorite.Service
}

func (h *FavoriteHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := principal(c)
	if err != nil {
		return err
	}
	favs, err := h.Svc.List(ctx, p.UserID)
	if err != nil {
		return fail(logging.FromContext(ctx).With("handler", "favorites_list"), "list_favorites", err)
	}
	return respond(c, http.StatusOK, "", favs)
}

func (h *FavoriteHTTP) Add(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := principal(c)
	if err != nil {
		return err
	}
	bookID, err := paramID(c, "bookId")
	if err != nil {
		return err
	}
	fav, err := h.Svc.Add(ctx, p.UserID, bookID)
	if err != nil {
		return fail(logging.FromContext(ctx).With("handler", "favorites_add"), "add_favorite", err)
	}
	return respond(c, http.StatusCreated, "Added to favorites", fav)
}

func (h *FavoriteHTTP) Remove(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := principal(c)
	if err != nil {
		return err
	}
	bookID, err := paramID(c, "bookId")
	if err != nil {
		return err
	}
	if err := h.Svc.Remove(ctx, p.UserID, bookID); err != nil {
		return fail(logging.FromContext(ctx).With("handler", "favorites_remove"), "remove_favorite", err)
	}
	return respond(c, http.StatusOK, "Removed from favorites", nil)
}
