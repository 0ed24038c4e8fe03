package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidStatus        = errors.New("invalid order status")
	ErrInvalidTransition    = errors.New("order status transition not allowed")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every status in lifecycle order
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// next holds the single forward step out of each non-terminal state
var next = map[OrderStatus]OrderStatus{
	OrderStatusPending:    OrderStatusProcessing,
	OrderStatusProcessing: OrderStatusShipped,
	OrderStatusShipped:    OrderStatusDelivered,
}

// ParseOrderStatus validates a wire value
func ParseOrderStatus(s string) (OrderStatus, error) {
	for _, st := range OrderStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// IsTerminal reports whether no further transition is possible
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransition is the order status guard. Orders move forward one step at a
// time, may be cancelled from any non-terminal state, and accept a same-state
// update as a no-op.
func CanTransition(from, to OrderStatus) bool {
	if from == to {
		return true
	}
	if from.IsTerminal() {
		return false
	}
	if to == OrderStatusCancelled {
		return true
	}
	return next[from] == to
}

// Transition returns ErrInvalidTransition when the guard denies the move
func Transition(from, to OrderStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// PaymentMethod is how the customer pays
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash-on-delivery"
	PaymentCreditCard     PaymentMethod = "credit-card"
	PaymentDebitCard      PaymentMethod = "debit-card"
	PaymentPayPal         PaymentMethod = "paypal"
	PaymentBankTransfer   PaymentMethod = "bank-transfer"
)

// ParsePaymentMethod validates a wire value
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case PaymentCashOnDelivery, PaymentCreditCard, PaymentDebitCard, PaymentPayPal, PaymentBankTransfer:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, s)
}

// RequiresCapture reports whether the method is charged through the hosted
// payment provider before the order is placed.
func (m PaymentMethod) RequiresCapture() bool {
	return m == PaymentCreditCard || m == PaymentDebitCard
}

// PaymentStatus tracks whether money has been collected
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// Customer holds contact and shipping details
type Customer struct {
	Name    string `json:"customerName" validate:"required"`
	Email   string `json:"customerEmail" validate:"required,storeemail"`
	Phone   string `json:"customerPhone" validate:"required"`
	Address string `json:"customerAddress" validate:"required"`
	City    string `json:"customerCity" validate:"required"`
	ZipCode string `json:"customerZipCode" validate:"required"`
}

// Order is the persisted result of a checkout. Total is fixed at creation.
type Order struct {
	ID       string          `json:"id"`
	Lines    []OrderLine     `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
	Status   OrderStatus     `json:"status"`
	Customer
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	TransactionID string        `json:"transactionId,omitempty"`
	UserID        string        `json:"userId,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}
