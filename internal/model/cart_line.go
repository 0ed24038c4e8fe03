package model

import "github.com/shopspring/decimal"

// MaxCustomTextLength bounds the free text a customer can print on an item
const MaxCustomTextLength = 50

// Customization is the optional personalisation chosen for a cart line
type Customization struct {
	Color  string `json:"color,omitempty" validate:"max=64"`
	Design string `json:"design,omitempty" validate:"max=64"`
	Text   string `json:"text,omitempty" validate:"max=50"`
}

// CartLine is one product in a cart. The product reference is not enforced here.
type CartLine struct {
	ProductID     string         `json:"productId" validate:"required"`
	Quantity      int            `json:"quantity" validate:"required,min=1"`
	Customization *Customization `json:"customization,omitempty"`
}

// OrderLine is the by-value snapshot of a cart line taken at checkout
type OrderLine struct {
	ProductID     string          `json:"productId"`
	Name          string          `json:"name"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	Quantity      int             `json:"quantity"`
	Customization *Customization  `json:"customization,omitempty"`
}

// LineTotal is unit price times quantity
func (l OrderLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
