package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/internal/domain"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/service/order"
	"github.com/Skotchmaster/bookstore/internal/util"
	"github.com/Skotchmaster/bookstore/pkg/logging"
)

type OrderHTTP struct {
	Svc *order.Service
}

func (h *OrderHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "orders_list")

	page, size := pageParams(c)
	from, limit := util.Calculate(page, size)
	total, orders, err := h.Svc.ListOrders(ctx, models.OrderStatus(c.QueryParam("status")), from, limit)
	if err != nil {
		return fail(l, "list_orders", err)
	}
	return respond(c, http.StatusOK, "", domain.NewPage(orders, total, page, size))
}

func (h *OrderHTTP) Mine(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := principal(c)
	if err != nil {
		return err
	}
	orders, err := h.Svc.ListMyOrders(ctx, p.UserID)
	if err != nil {
		return fail(logging.FromContext(ctx).With("handler", "orders_mine"), "list_my_orders", err)
	}
	return respond(c, http.StatusOK, "", orders)
}

func (h *OrderHTTP) Statistics(c echo.Context) error {
	ctx := c.Request().Context()
	stats, err := h.Svc.Statistics(ctx)
	if err != nil {
		return fail(logging.FromContext(ctx).With("handler", "orders_statistics"), "order_statistics", err)
	}
	return respond(c, http.StatusOK, "", stats)
}

func (h *OrderHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	o, err := h.Svc.GetOrder(ctx, p, id)
	if err != nil {
		return fail(logging.FromContext(ctx).With("handler", "orders_get"), "get_order", err)
	}
	return respond(c, http.StatusOK, "", o)
}

func (h *OrderHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "orders_create")

	p, err := principal(c)
	if err != nil {
		return err
	}
	var req createOrderRequest
	if err := bind(c, &req); err != nil {
		l.Warn("create_order_failed", "status", 400, "error", err)
		return err
	}
	o, err := h.Svc.CreateOrder(ctx, order.CreateOrderInput{
		UserID:          p.UserID,
		BookID:          req.BookID,
		Quantity:        req.Quantity,
		DeliveryAddress: req.DeliveryAddress,
		Phone:           req.Phone,
		Notes:           req.Notes,
	})
	if err != nil {
		return fail(l, "create_order", err)
	}
	return respond(c, http.StatusCreated, "Order created", o)
}

func (h *OrderHTTP) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "orders_update_status")

	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req statusRequest
	if err := bind(c, &req); err != nil {
		l.Warn("update_status_failed", "status", 400, "error", err)
		return err
	}
	next, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	o, err := h.Svc.UpdateStatus(ctx, id, next)
	if err != nil {
		return fail(l, "update_status", err)
	}
	return respond(c, http.StatusOK, "Order status updated", o)
}

func (h *OrderHTTP) Cancel(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	o, err := h.Svc.Cancel(ctx, p, id)
	if err != nil {
		return fail(logging.FromContext(ctx).With("handler", "orders_cancel"), "cancel_order", err)
	}
	return respond(c, http.StatusOK, "Order cancelled", o)
}

func (h *OrderHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.Svc.DeleteOrder(ctx, id); err != nil {
		return fail(logging.FromContext(ctx).With("handler", "orders_delete"), "delete_order", err)
	}
	return respond(c, http.StatusOK, "Order deleted", nil)
}
