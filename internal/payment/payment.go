// Package payment talks to the hosted card payment provider.
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNotConfigured = errors.New("payment provider not configured")
	ErrUpstream      = errors.New("payment provider error")
)

// Intent is a created payment intent handed to the client widget
type Intent struct {
	ID           string `json:"paymentIntentId"`
	ClientSecret string `json:"clientSecret"`
}

// Confirmation is the provider's view of a payment intent
type Confirmation struct {
	ID        string
	Amount    decimal.Decimal
	Currency  string
	Succeeded bool
}

// Covers reports whether the confirmation pays at least total in currency
func (c *Confirmation) Covers(total decimal.Decimal, currency string) bool {
	return c.Succeeded && c.Currency == currency && c.Amount.GreaterThanOrEqual(total)
}

// Gateway creates and confirms card payments
type Gateway interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*Intent, error)
	Confirm(ctx context.Context, intentID string) (*Confirmation, error)
}

// ToMinorUnits converts an amount to the provider's integer minor units
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts provider minor units back to an amount
func FromMinorUnits(units int64) decimal.Decimal {
	return decimal.New(units, -2)
}
