package cart

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"storefront-service/internal/model"
)

// TaxRate is applied to the subtotal. There is no shipping charge.
var TaxRate = decimal.RequireFromString("0.10")

// ProductLookup resolves a product by id
type ProductLookup interface {
	Get(ctx context.Context, id string) (*model.Product, error)
}

// Quote is a priced cart
type Quote struct {
	Lines    []model.OrderLine `json:"items"`
	Subtotal decimal.Decimal   `json:"subtotal"`
	Tax      decimal.Decimal   `json:"tax"`
	Total    decimal.Decimal   `json:"total"`
}

// Totals computes subtotal, tax and total for priced lines. Total is
// subtotal * (1 + TaxRate) rounded to two decimal places.
func Totals(lines []model.OrderLine) (subtotal, tax, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.LineTotal())
	}
	tax = subtotal.Mul(TaxRate).Round(2)
	total = subtotal.Mul(decimal.NewFromInt(1).Add(TaxRate)).Round(2)
	return subtotal, tax, total
}

// Price snapshots each line's product name and price from the catalog and
// totals the result. Errors from the lookup are wrapped with the product id.
func Price(ctx context.Context, lines []model.CartLine, catalog ProductLookup) (*Quote, error) {
	priced := make([]model.OrderLine, 0, len(lines))
	for _, l := range lines {
		p, err := catalog.Get(ctx, l.ProductID)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", l.ProductID, err)
		}
		var custom *model.Customization
		if l.Customization != nil {
			c := *l.Customization
			custom = &c
		}
		priced = append(priced, model.OrderLine{
			ProductID:     p.ID,
			Name:          p.Name,
			UnitPrice:     p.Price,
			Quantity:      l.Quantity,
			Customization: custom,
		})
	}

	subtotal, tax, total := Totals(priced)
	return &Quote{Lines: priced, Subtotal: subtotal, Tax: tax, Total: total}, nil
}
