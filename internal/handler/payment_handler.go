package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront-service/internal/model"
	"storefront-service/pkg/logger"
)

type quoteRequest struct {
	Lines []model.CartLine `json:"items"`
}

// intentRequest prices the intent from items when given, so the charged
// amount always matches the checkout total. A bare amount is accepted for
// clients that price on their side.
type intentRequest struct {
	Lines    []model.CartLine  `json:"items"`
	Amount   decimal.Decimal   `json:"amount"`
	Metadata map[string]string `json:"metadata"`
}

// QuoteCart prices a cart without placing an order
func (h *Handler) QuoteCart(c echo.Context) error {
	var req quoteRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, "Invalid cart", errBadRequest)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	quote, err := h.checkout.Quote(ctx, req.Lines)
	if err != nil {
		return fail(c, "Failed to price cart", err)
	}
	return respond(c, http.StatusOK, quote)
}

// CreatePaymentIntent opens a card payment with the provider
func (h *Handler) CreatePaymentIntent(c echo.Context) error {
	log := logger.FromEcho(c)

	var req intentRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, "Invalid payment intent request", errBadRequest)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	amount := req.Amount
	if len(req.Lines) > 0 {
		quote, err := h.checkout.Quote(ctx, req.Lines)
		if err != nil {
			return fail(c, "Failed to price payment intent", err)
		}
		amount = quote.Total
	}
	if !amount.IsPositive() {
		return respondError(c, http.StatusBadRequest, "Invalid amount")
	}

	metadata := req.Metadata
	if metadata == nil {
		metadata = make(map[string]string, 1)
	}
	metadata["request_id"] = c.Response().Header().Get(echo.HeaderXRequestID)

	intent, err := h.gateway.CreateIntent(ctx, amount, h.currency, metadata)
	if err != nil {
		return fail(c, "Failed to create payment intent", err, zap.String("amount", amount.StringFixed(2)))
	}

	log.Info("Payment intent created",
		zap.String("payment_intent_id", intent.ID),
		zap.String("amount", amount.StringFixed(2)))
	return respond(c, http.StatusOK, intent)
}

// PendingPayments lists captured payments that still have no order
func (h *Handler) PendingPayments(c echo.Context) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	markers, err := h.checkout.PendingPayments(ctx)
	if err != nil {
		return fail(c, "Failed to list pending payments", err)
	}
	return respond(c, http.StatusOK, markers)
}

// ReconcilePayment completes the order for a pending payment
func (h *Handler) ReconcilePayment(c echo.Context) error {
	txID := c.Param("transactionId")

	ctx, cancel := h.requestContext(c)
	defer cancel()

	res, err := h.checkout.Reconcile(ctx, txID)
	if err != nil {
		return fail(c, "Failed to reconcile payment", err, zap.String("transaction_id", txID))
	}

	logger.FromEcho(c).Info("Payment reconciled",
		zap.String("transaction_id", txID),
		zap.String("order_id", res.Order.ID),
		zap.Bool("already_completed", res.Replayed))
	return respond(c, http.StatusOK, res.Order)
}
