package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"storefront-service/internal/checkout"
	"storefront-service/internal/events"
	"storefront-service/internal/model"
	mid "storefront-service/internal/middleware"
	"storefront-service/internal/store"
	"storefront-service/pkg/logger"
	"storefront-service/prometheus"
)

const idempotencyHeader = "Idempotency-Key"

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

// CreateOrder runs a checkout. Signed-in customers get the order linked to
// their account.
func (h *Handler) CreateOrder(c echo.Context) error {
	var req checkout.Request
	if err := c.Bind(&req); err != nil {
		return fail(c, "Invalid order request", errBadRequest)
	}
	req.IdempotencyKey = strings.TrimSpace(c.Request().Header.Get(idempotencyHeader))
	if claims, ok := mid.Claims(c); ok {
		req.UserID = claims.UserID
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	res, err := h.checkout.Checkout(ctx, req)
	if err != nil {
		return fail(c, "Checkout failed", err, zap.String("payment_method", req.PaymentMethod))
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	return respond(c, status, res.Order)
}

// ListOrders is the admin order book with optional status and email filters
func (h *Handler) ListOrders(c echo.Context) error {
	var filter store.OrderFilter
	if status := c.QueryParam("status"); status != "" {
		parsed, err := model.ParseOrderStatus(status)
		if err != nil {
			return fail(c, "Invalid status filter", err, zap.String("status", status))
		}
		filter.Status = parsed
	}
	filter.Email = c.QueryParam("email")

	ctx, cancel := h.requestContext(c)
	defer cancel()

	orders, err := h.store.Orders().List(ctx, filter)
	if err != nil {
		return fail(c, "Failed to list orders", err)
	}
	return respond(c, http.StatusOK, orders)
}

// MyOrders lists the orders placed with the signed-in customer's email,
// including guest orders from before the account existed.
func (h *Handler) MyOrders(c echo.Context) error {
	claims, ok := mid.Claims(c)
	if !ok || claims.Email == "" {
		return respondError(c, http.StatusUnauthorized, "Unauthorized")
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	orders, err := h.store.Orders().List(ctx, store.OrderFilter{Email: claims.Email})
	if err != nil {
		return fail(c, "Failed to list orders", err, zap.String("user_id", claims.UserID))
	}
	return respond(c, http.StatusOK, orders)
}

func (h *Handler) GetOrder(c echo.Context) error {
	id := c.Param("id")

	ctx, cancel := h.requestContext(c)
	defer cancel()

	order, err := h.store.Orders().Get(ctx, id)
	if err != nil {
		return fail(c, "Order not found", err, zap.String("order_id", id))
	}
	return respond(c, http.StatusOK, order)
}

// UpdateOrderStatus moves an order through its lifecycle. The store returns a
// cancelled order's items to stock in the same step.
func (h *Handler) UpdateOrderStatus(c echo.Context) error {
	log := logger.FromEcho(c)
	id := c.Param("id")

	var req statusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return fail(c, "Invalid status update", err, zap.String("order_id", id))
	}
	to, err := model.ParseOrderStatus(req.Status)
	if err != nil {
		return fail(c, "Invalid status update", err, zap.String("order_id", id))
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	order, err := h.store.Orders().Get(ctx, id)
	if err != nil {
		return fail(c, "Order not found", err, zap.String("order_id", id))
	}
	from := order.Status
	if from == to {
		return respond(c, http.StatusOK, order)
	}
	if err := model.Transition(from, to); err != nil {
		return fail(c, "Order status transition rejected", err, zap.String("order_id", id))
	}

	updated, err := h.store.Orders().UpdateStatus(ctx, id, from, to)
	if errors.Is(err, store.ErrConflict) {
		err = model.ErrInvalidTransition
	}
	if err != nil {
		return fail(c, "Failed to update order status", err, zap.String("order_id", id))
	}

	prometheus.RecordOrderTransition(string(from), string(to))
	h.publishStatusChange(ctx, updated, from)
	log.Info("Order status updated",
		zap.String("order_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return respond(c, http.StatusOK, updated)
}

func (h *Handler) publishStatusChange(ctx context.Context, o *model.Order, from model.OrderStatus) {
	evt := events.New(events.TypeOrderStatusChanged, o.ID, map[string]any{
		"from": from,
		"to":   o.Status,
	})
	if err := h.publisher.Publish(ctx, evt); err != nil {
		logger.FromContext(ctx).Warn("Failed to publish order event", zap.String("order_id", o.ID), zap.Error(err))
	}
}

func (h *Handler) DeleteOrder(c echo.Context) error {
	id := c.Param("id")

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.store.Orders().Delete(ctx, id); err != nil {
		return fail(c, "Failed to delete order", err, zap.String("order_id", id))
	}

	if err := h.publisher.Publish(ctx, events.New(events.TypeOrderDeleted, id, nil)); err != nil {
		logger.FromEcho(c).Warn("Failed to publish order event", zap.String("order_id", id), zap.Error(err))
	}
	logger.FromEcho(c).Info("Order deleted successfully", zap.String("order_id", id))
	return respondMessage(c, http.StatusOK, "Order deleted successfully")
}
