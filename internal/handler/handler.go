// Package handler serves the storefront JSON API.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"storefront-service/internal/auth"
	"storefront-service/internal/bootstrap"
	"storefront-service/internal/checkout"
	"storefront-service/internal/events"
	"storefront-service/internal/model"
	"storefront-service/internal/payment"
	"storefront-service/internal/seo"
	"storefront-service/internal/store"
	"storefront-service/internal/validation"
	"storefront-service/pkg/logger"
)

// Options are the collaborators a Handler needs
type Options struct {
	Store     store.Store
	Checkout  *checkout.Service
	Auth      *auth.Service
	Gateway   payment.Gateway
	SEO       *seo.Generator
	Bootstrap *bootstrap.Bootstrapper
	Publisher events.Publisher
	Currency  string
	Timeout   time.Duration
}

// Handler holds the HTTP endpoints
type Handler struct {
	store     store.Store
	checkout  *checkout.Service
	auth      *auth.Service
	gateway   payment.Gateway
	seo       *seo.Generator
	bootstrap *bootstrap.Bootstrapper
	publisher events.Publisher
	currency  string
	timeout   time.Duration
}

func New(opts Options) *Handler {
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Handler{
		store:     opts.Store,
		checkout:  opts.Checkout,
		auth:      opts.Auth,
		gateway:   opts.Gateway,
		seo:       opts.SEO,
		bootstrap: opts.Bootstrap,
		publisher: publisher,
		currency:  opts.Currency,
		timeout:   opts.Timeout,
	}
}

// Validator adapts go-playground/validator to echo.Validator
type Validator struct {
	v *validator.Validate
}

func NewValidator(v *validator.Validate) *Validator {
	return &Validator{v: v}
}

func (cv *Validator) Validate(i interface{}) error {
	return cv.v.Struct(i)
}

// requestContext bounds downstream calls by the configured request timeout
func (h *Handler) requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.Request().Context())
	}
	return context.WithTimeout(c.Request().Context(), h.timeout)
}

// bindAndValidate decodes the body into req and runs its validate tags
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return errBadRequest
	}
	return c.Validate(req)
}

func respond(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, echo.Map{"success": true, "data": data})
}

func respondMessage(c echo.Context, status int, message string) error {
	return c.JSON(status, echo.Map{"success": true, "message": message})
}

func respondError(c echo.Context, status int, message string) error {
	return c.JSON(status, echo.Map{"success": false, "error": message})
}

var errBadRequest = errors.New("invalid request body")

type errorMapping struct {
	err     error
	status  int
	message string
}

// errorTable is checked in order; the first match wins
var errorTable = []errorMapping{
	{errBadRequest, http.StatusBadRequest, "Invalid request body"},
	{checkout.ErrEmptyCart, http.StatusBadRequest, "Cart is empty"},
	{model.ErrInvalidCategory, http.StatusBadRequest, "Invalid category"},
	{model.ErrInvalidStatus, http.StatusBadRequest, "Invalid order status"},
	{model.ErrInvalidPaymentMethod, http.StatusBadRequest, "Invalid payment method"},
	{model.ErrNegativePrice, http.StatusBadRequest, "Price must not be negative"},
	{model.ErrNegativeStock, http.StatusBadRequest, "Stock must not be negative"},
	{seo.ErrMissingInput, http.StatusBadRequest, "Title and description are required"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
	{checkout.ErrPaymentRequired, http.StatusPaymentRequired, "Payment is required for card orders"},
	{checkout.ErrPaymentNotConfirmed, http.StatusPaymentRequired, "Payment not confirmed"},
	{checkout.ErrMarkerNotFound, http.StatusNotFound, "Payment not found"},
	{checkout.ErrIdempotencyMismatch, http.StatusUnprocessableEntity, "Transaction was already used for a different order"},
	{store.ErrNotFound, http.StatusNotFound, "Not found"},
	{auth.ErrEmailTaken, http.StatusConflict, "User already exists"},
	{model.ErrInvalidTransition, http.StatusConflict, "Order status transition not allowed"},
	{store.ErrInsufficientStock, http.StatusConflict, "Insufficient stock"},
	{store.ErrConflict, http.StatusConflict, "Already exists"},
	{payment.ErrNotConfigured, http.StatusServiceUnavailable, "Payment provider not configured"},
	{payment.ErrUpstream, http.StatusBadGateway, "Payment provider error"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "Request timed out"},
}

// fail logs err and answers with the matching status and envelope
func fail(c echo.Context, msg string, err error, fields ...zap.Field) error {
	log := logger.FromEcho(c)

	var verr *checkout.ValidationError
	if errors.As(err, &verr) {
		log.Info(msg, append(fields, zap.Error(err))...)
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "Validation failed",
			"fields":  verr.Fields,
		})
	}
	if ferrs := validation.Fields(err); ferrs != nil {
		log.Info(msg, append(fields, zap.Error(err))...)
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "Validation failed",
			"fields":  ferrs,
		})
	}

	// A charged customer always gets the support message and the transaction
	// id, whatever stopped the order. Unpaid orders that ran out of stock fall
	// through to the plain 409.
	var perr *checkout.PersistenceError
	if errors.As(err, &perr) && (perr.PaymentCaptured || !errors.Is(err, store.ErrInsufficientStock)) {
		log.Error(msg, append(fields,
			zap.String("transaction_id", perr.TransactionID),
			zap.Bool("payment_captured", perr.PaymentCaptured),
			zap.Error(err))...)

		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrInsufficientStock) {
			status = http.StatusConflict
		}
		body := echo.Map{"success": false, "error": "Order could not be saved"}
		if perr.TransactionID != "" {
			body["transactionId"] = perr.TransactionID
		}
		if perr.PaymentCaptured {
			body["error"] = "Order could not be saved. Your payment was received; contact support with your transaction id."
		}
		return c.JSON(status, body)
	}

	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				log.Error(msg, append(fields, zap.Error(err))...)
			} else {
				log.Warn(msg, append(fields, zap.Error(err))...)
			}
			return respondError(c, m.status, m.message)
		}
	}

	log.Error(msg, append(fields, zap.Error(err))...)
	return respondError(c, http.StatusInternalServerError, "Internal server error")
}
