package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarkerStatus tracks whether a captured payment has its order yet
type MarkerStatus string

const (
	MarkerPending   MarkerStatus = "pending"
	MarkerCompleted MarkerStatus = "completed"
)

// CheckoutSnapshot is everything needed to rebuild an order from a marker.
// Lines are already priced so a rebuilt order matches what was charged.
type CheckoutSnapshot struct {
	Lines         []OrderLine   `json:"items"`
	Customer      Customer      `json:"customer"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	UserID        string        `json:"userId,omitempty"`
}

// PaymentMarker is written before an order is persisted, keyed by the external
// transaction id, so a captured payment can always be matched to an order.
type PaymentMarker struct {
	TransactionID string           `json:"transactionId"`
	Status        MarkerStatus     `json:"status"`
	OrderID       string           `json:"orderId,omitempty"`
	Amount        decimal.Decimal  `json:"amount"`
	Snapshot      CheckoutSnapshot `json:"snapshot"`
	LastError     string           `json:"lastError,omitempty"`
	Attempts      int              `json:"attempts"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}
