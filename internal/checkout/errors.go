package checkout

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"storefront-service/internal/validation"
)

var (
	ErrEmptyCart           = errors.New("cart is empty")
	ErrPaymentRequired     = errors.New("payment intent is required for card payments")
	ErrPaymentNotConfirmed = errors.New("payment not confirmed")
	ErrMarkerNotFound      = errors.New("payment marker not found")
	// ErrIdempotencyMismatch is returned when a transaction id or idempotency
	// key comes back with a different customer or cart.
	ErrIdempotencyMismatch = errors.New("transaction already used for a different checkout")
)

// ValidationError carries per-field messages for the checkout form
type ValidationError struct {
	Fields validation.FieldErrors
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "validation failed: " + strings.Join(keys, ", ")
}

// PersistenceError reports that an order could not be stored. TransactionID
// names the payment marker; PaymentCaptured is set when the customer was
// already charged, so support has to reconcile.
type PersistenceError struct {
	TransactionID   string
	PaymentCaptured bool
	Err             error
}

func (e *PersistenceError) Error() string {
	if e.TransactionID == "" || !e.PaymentCaptured {
		return fmt.Sprintf("order could not be saved: %v", e.Err)
	}
	return fmt.Sprintf("order could not be saved, contact support with transaction %s: %v", e.TransactionID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
