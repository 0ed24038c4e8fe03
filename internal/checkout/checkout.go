// Package checkout turns a cart into a persisted order.
//
// Card payments are confirmed with the payment provider before anything is
// written. A payment marker keyed by the transaction id is stored before the
// order, and the order insert completes it, so a captured payment without an
// order is always visible through PendingPayments and can be finished with
// Reconcile.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront-service/internal/cart"
	"storefront-service/internal/events"
	"storefront-service/internal/model"
	"storefront-service/internal/payment"
	"storefront-service/internal/store"
	"storefront-service/internal/validation"
	"storefront-service/prometheus"
)

// idempotencyPrefix keeps client keys apart from provider transaction ids
const idempotencyPrefix = "idem_"

// Request is a checkout submission
type Request struct {
	Lines []model.CartLine `json:"items"`
	model.Customer
	PaymentMethod   string `json:"paymentMethod"`
	PaymentIntentID string `json:"paymentIntentId,omitempty"`

	// Set by the transport layer, never decoded from the body
	IdempotencyKey string `json:"-"`
	UserID         string `json:"-"`
}

// Result is a placed order. Replayed is true when the order already existed
// for the same transaction.
type Result struct {
	Order    *model.Order
	Replayed bool
}

// Service runs checkouts against the store
type Service struct {
	store     store.Store
	gateway   payment.Gateway
	publisher events.Publisher
	validate  *validator.Validate
	currency  string
	log       *zap.Logger
}

func NewService(st store.Store, gateway payment.Gateway, publisher events.Publisher, v *validator.Validate, currency string, log *zap.Logger) *Service {
	return &Service{
		store:     st,
		gateway:   gateway,
		publisher: publisher,
		validate:  v,
		currency:  currency,
		log:       log,
	}
}

// Quote prices lines without placing an order
func (s *Service) Quote(ctx context.Context, lines []model.CartLine) (*cart.Quote, error) {
	if err := s.validateLines(lines); err != nil {
		return nil, err
	}
	c := cart.New(lines...)
	if c.Len() == 0 {
		return nil, ErrEmptyCart
	}
	return cart.Price(ctx, c.Lines(), s.store.Products())
}

// Checkout validates the request, confirms payment and places the order
func (s *Service) Checkout(ctx context.Context, req Request) (*Result, error) {
	log := s.log.With(zap.String("payment_method", req.PaymentMethod))

	// Lines are checked one by one before merging so an invalid quantity
	// cannot be summed into a valid one.
	if err := s.validateLines(req.Lines); err != nil {
		prometheus.RecordCheckoutFailure("validation")
		return nil, err
	}

	c := cart.New(req.Lines...)
	c.OnChange = func(lines []model.CartLine) {
		log.Debug("Cart changed", zap.Int("lines", len(lines)))
	}
	sess := NewSession(c, s.validate)

	if err := sess.Begin(); err != nil {
		prometheus.RecordCheckoutFailure("validation")
		return nil, err
	}
	method, err := model.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		prometheus.RecordCheckoutFailure("validation")
		return nil, &ValidationError{Fields: validation.FieldErrors{"paymentMethod": "Invalid payment method"}}
	}
	if err := sess.SubmitCustomer(req.Customer); err != nil {
		prometheus.RecordCheckoutFailure("validation")
		return nil, err
	}

	quote, err := cart.Price(ctx, c.Lines(), s.store.Products())
	if err != nil {
		return nil, err
	}

	snapshot := model.CheckoutSnapshot{
		Lines:         quote.Lines,
		Customer:      sess.Customer(),
		PaymentMethod: method,
		PaymentStatus: model.PaymentStatusPending,
		UserID:        req.UserID,
	}

	var txID string
	switch {
	case method.RequiresCapture():
		if err := s.confirmPayment(ctx, req.PaymentIntentID, quote.Total); err != nil {
			prometheus.RecordCheckoutFailure("payment")
			log.Warn("Card payment not confirmed",
				zap.String("payment_intent_id", req.PaymentIntentID),
				zap.Error(err))
			return nil, err
		}
		txID = req.PaymentIntentID
		snapshot.PaymentStatus = model.PaymentStatusPaid
	case req.IdempotencyKey != "":
		txID = idempotencyPrefix + req.IdempotencyKey
	}

	if txID != "" {
		res, err := s.recordMarker(ctx, txID, quote.Total, snapshot)
		if err != nil || res != nil {
			return res, err
		}
	}

	order := buildOrder(snapshot, txID)
	if err := s.place(ctx, order, txID); err != nil {
		_ = sess.Fail(err)
		if errors.Is(err, store.ErrConflict) && txID != "" {
			// Lost a race with a concurrent submission of the same transaction
			return s.replay(ctx, txID)
		}
		return nil, s.placementError(ctx, log, txID, order.PaymentStatus == model.PaymentStatusPaid, err)
	}

	_ = sess.Complete(order)
	prometheus.RecordOrderCreated(string(order.PaymentMethod))
	log.Info("Order placed",
		zap.String("order_id", order.ID),
		zap.String("total", order.Total.StringFixed(2)),
		zap.String("transaction_id", txID))
	s.publish(ctx, events.TypeOrderCreated, order)

	return &Result{Order: order}, nil
}

// Reconcile finishes the order for a pending payment marker, or returns the
// existing order when the marker is already completed.
func (s *Service) Reconcile(ctx context.Context, transactionID string) (*Result, error) {
	m, err := s.store.Payments().Get(ctx, transactionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrMarkerNotFound
	}
	if err != nil {
		return nil, err
	}
	if m.Status == model.MarkerCompleted {
		return s.replay(ctx, transactionID)
	}

	log := s.log.With(zap.String("transaction_id", transactionID))
	order := buildOrder(m.Snapshot, transactionID)
	if err := s.place(ctx, order, transactionID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return s.replay(ctx, transactionID)
		}
		return nil, s.placementError(ctx, log, transactionID, order.PaymentStatus == model.PaymentStatusPaid, err)
	}

	prometheus.RecordOrderCreated(string(order.PaymentMethod))
	log.Info("Order reconciled from payment marker", zap.String("order_id", order.ID))
	s.publish(ctx, events.TypeOrderCreated, order)
	return &Result{Order: order}, nil
}

// PendingPayments lists markers whose order was never stored
func (s *Service) PendingPayments(ctx context.Context) ([]model.PaymentMarker, error) {
	return s.store.Payments().ListPending(ctx)
}

func (s *Service) validateLines(lines []model.CartLine) error {
	for _, l := range lines {
		if err := s.validate.Struct(l); err != nil {
			if fields := validation.Fields(err); fields != nil {
				return &ValidationError{Fields: validation.FieldErrors{"items": firstMessage(fields)}}
			}
			return err
		}
	}
	return nil
}

func firstMessage(fields validation.FieldErrors) string {
	for _, k := range []string{"productId", "quantity", "text", "color", "design"} {
		if m, ok := fields[k]; ok {
			return m
		}
	}
	for _, m := range fields {
		return m
	}
	return "invalid item"
}

func (s *Service) confirmPayment(ctx context.Context, intentID string, total decimal.Decimal) error {
	if intentID == "" {
		return ErrPaymentRequired
	}
	conf, err := s.gateway.Confirm(ctx, intentID)
	if err != nil {
		return err
	}
	if !conf.Covers(total, s.currency) {
		return fmt.Errorf("%w: intent %s status succeeded=%t amount %s %s for total %s %s",
			ErrPaymentNotConfirmed, intentID, conf.Succeeded, conf.Amount, conf.Currency, total, s.currency)
	}
	return nil
}

// recordMarker writes the pending marker for txID. A non-nil Result means the
// transaction already has an order. A marker recorded for a different
// checkout fails with ErrIdempotencyMismatch.
func (s *Service) recordMarker(ctx context.Context, txID string, amount decimal.Decimal, snapshot model.CheckoutSnapshot) (*Result, error) {
	paid := snapshot.PaymentStatus == model.PaymentStatusPaid

	existing, err := s.store.Payments().Get(ctx, txID)
	if errors.Is(err, store.ErrNotFound) {
		done := prometheus.TrackDBOperation("marker_insert")
		err = s.store.Payments().RecordPending(ctx, &model.PaymentMarker{
			TransactionID: txID,
			Amount:        amount,
			Snapshot:      snapshot,
		})
		done(time.Now())
		if err == nil {
			return nil, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, &PersistenceError{TransactionID: txID, PaymentCaptured: paid, Err: err}
		}
		// A concurrent submission recorded it first
		existing, err = s.store.Payments().Get(ctx, txID)
	}
	if err != nil {
		return nil, &PersistenceError{TransactionID: txID, PaymentCaptured: paid, Err: err}
	}

	if !sameCheckout(existing.Snapshot, snapshot) {
		s.log.Warn("Transaction reused for a different checkout", zap.String("transaction_id", txID))
		return nil, ErrIdempotencyMismatch
	}
	if existing.Status == model.MarkerCompleted {
		return s.replay(ctx, txID)
	}
	// A previous attempt failed after the marker was written; retry it
	return nil, nil
}

// sameCheckout reports whether two snapshots describe the same purchase: the
// same customer email, payment method and product quantities. Prices are left
// out so a retry after a price edit still matches.
func sameCheckout(a, b model.CheckoutSnapshot) bool {
	if !strings.EqualFold(a.Customer.Email, b.Customer.Email) || a.PaymentMethod != b.PaymentMethod {
		return false
	}
	if len(a.Lines) != len(b.Lines) {
		return false
	}
	qty := make(map[string]int, len(a.Lines))
	for _, l := range a.Lines {
		qty[l.ProductID] += l.Quantity
	}
	for _, l := range b.Lines {
		qty[l.ProductID] -= l.Quantity
	}
	for _, n := range qty {
		if n != 0 {
			return false
		}
	}
	return true
}

func (s *Service) place(ctx context.Context, order *model.Order, txID string) error {
	defer prometheus.TrackDBOperation("order_place")(time.Now())
	return s.store.Orders().Place(ctx, order, txID)
}

func (s *Service) placementError(ctx context.Context, log *zap.Logger, txID string, paid bool, err error) error {
	reason := "persistence"
	if errors.Is(err, store.ErrInsufficientStock) || errors.Is(err, store.ErrNotFound) {
		reason = "stock"
	}
	prometheus.RecordCheckoutFailure(reason)
	log.Error("Failed to place order", zap.String("transaction_id", txID), zap.Error(err))

	if txID != "" {
		if ferr := s.store.Payments().Fail(ctx, txID, err.Error()); ferr != nil {
			log.Error("Failed to record placement failure on payment marker",
				zap.String("transaction_id", txID),
				zap.Error(ferr))
		}
	}
	return &PersistenceError{TransactionID: txID, PaymentCaptured: paid, Err: err}
}

func (s *Service) replay(ctx context.Context, txID string) (*Result, error) {
	m, err := s.store.Payments().Get(ctx, txID)
	if err != nil {
		return nil, err
	}
	order, err := s.store.Orders().Get(ctx, m.OrderID)
	if err != nil {
		return nil, err
	}
	s.log.Info("Replaying existing order for transaction",
		zap.String("transaction_id", txID),
		zap.String("order_id", order.ID))
	return &Result{Order: order, Replayed: true}, nil
}

func (s *Service) publish(ctx context.Context, eventType string, o *model.Order) {
	evt := events.New(eventType, o.ID, map[string]any{
		"status":        o.Status,
		"total":         o.Total.StringFixed(2),
		"paymentMethod": o.PaymentMethod,
		"paymentStatus": o.PaymentStatus,
	})
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn("Failed to publish order event",
			zap.String("order_id", o.ID),
			zap.String("type", eventType),
			zap.Error(err))
	}
}

// buildOrder turns a priced snapshot into a new pending order
func buildOrder(snap model.CheckoutSnapshot, txID string) *model.Order {
	lines := append([]model.OrderLine(nil), snap.Lines...)
	subtotal, tax, total := cart.Totals(lines)

	o := &model.Order{
		Lines:         lines,
		Subtotal:      subtotal,
		Tax:           tax,
		Total:         total,
		Status:        model.OrderStatusPending,
		Customer:      snap.Customer,
		PaymentMethod: snap.PaymentMethod,
		PaymentStatus: snap.PaymentStatus,
		UserID:        snap.UserID,
	}
	if snap.PaymentMethod.RequiresCapture() {
		o.TransactionID = txID
	}
	return o
}
