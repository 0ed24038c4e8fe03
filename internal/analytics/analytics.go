// Package analytics computes the admin dashboard figures.
package analytics

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"storefront-service/internal/model"
	"storefront-service/internal/store"
)

// LowStockThreshold marks products that need restocking
const LowStockThreshold = 20

// CategoryStats aggregates one category
type CategoryStats struct {
	Category   model.Category  `json:"category"`
	Count      int             `json:"count"`
	StockValue decimal.Decimal `json:"stockValue"`
}

// LowStockItem is a product under LowStockThreshold
type LowStockItem struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Stock int    `json:"stock"`
}

// Dashboard is the analytics summary
type Dashboard struct {
	TotalProducts        int                       `json:"totalProducts"`
	TotalOrders          int                       `json:"totalOrders"`
	Revenue              decimal.Decimal           `json:"revenue"`
	InventoryValue       decimal.Decimal           `json:"inventoryValue"`
	InventoryUnits       int                       `json:"inventoryUnits"`
	LowStockCount        int                       `json:"lowStockCount"`
	LowStock             []LowStockItem            `json:"lowStock"`
	CustomizableProducts int                       `json:"customizableProducts"`
	Categories           []CategoryStats           `json:"categories"`
	OrdersByStatus       map[model.OrderStatus]int `json:"ordersByStatus"`
}

// Compute builds the dashboard from products and orders. Cancelled orders do
// not count towards revenue.
func Compute(products []model.Product, orders []model.Order) *Dashboard {
	d := &Dashboard{
		TotalProducts:  len(products),
		TotalOrders:    len(orders),
		Revenue:        decimal.Zero,
		InventoryValue: decimal.Zero,
		LowStock:       []LowStockItem{},
		OrdersByStatus: make(map[model.OrderStatus]int, len(model.OrderStatuses)),
	}

	byCategory := make(map[model.Category]*CategoryStats, len(model.Categories))
	for _, c := range model.Categories {
		byCategory[c] = &CategoryStats{Category: c, StockValue: decimal.Zero}
	}

	for _, p := range products {
		value := p.Price.Mul(decimal.NewFromInt(int64(p.Stock)))
		d.InventoryValue = d.InventoryValue.Add(value)
		d.InventoryUnits += p.Stock
		if p.Customizable {
			d.CustomizableProducts++
		}
		if p.Stock < LowStockThreshold {
			d.LowStock = append(d.LowStock, LowStockItem{ID: p.ID, Name: p.Name, Stock: p.Stock})
		}
		cs, ok := byCategory[p.Category]
		if !ok {
			cs = &CategoryStats{Category: p.Category, StockValue: decimal.Zero}
			byCategory[p.Category] = cs
		}
		cs.Count++
		cs.StockValue = cs.StockValue.Add(value)
	}
	d.LowStockCount = len(d.LowStock)
	sort.Slice(d.LowStock, func(i, j int) bool { return d.LowStock[i].Stock < d.LowStock[j].Stock })

	for _, st := range model.OrderStatuses {
		d.OrdersByStatus[st] = 0
	}
	for _, o := range orders {
		d.OrdersByStatus[o.Status]++
		if o.Status != model.OrderStatusCancelled {
			d.Revenue = d.Revenue.Add(o.Total)
		}
	}

	for _, c := range model.Categories {
		d.Categories = append(d.Categories, *byCategory[c])
		delete(byCategory, c)
	}
	for _, cs := range byCategory {
		d.Categories = append(d.Categories, *cs)
	}
	return d
}

// Load reads the catalog and order book and computes the dashboard
func Load(ctx context.Context, st store.Store) (*Dashboard, error) {
	products, err := st.Products().List(ctx, store.ProductFilter{})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	orders, err := st.Orders().List(ctx, store.OrderFilter{})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return Compute(products, orders), nil
}
