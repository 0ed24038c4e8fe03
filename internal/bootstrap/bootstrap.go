// Package bootstrap prepares an empty database: the default admin account and
// the sample catalog.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"storefront-service/internal/model"
	"storefront-service/internal/store"
	"storefront-service/prometheus"
)

// AccountCreator creates accounts with a hashed password
type AccountCreator interface {
	CreateUser(ctx context.Context, name, email, password string, role model.Role) (*model.User, error)
}

// Result reports what Init did
type Result struct {
	AdminCreated   bool   `json:"adminCreated"`
	AdminExists    bool   `json:"adminExists"`
	AdminEmail     string `json:"adminEmail"`
	ProductsSeeded bool   `json:"productsSeeded"`
	ProductsExist  bool   `json:"productsExist"`
	ProductCount   int64  `json:"productCount"`
}

// Bootstrapper seeds the store
type Bootstrapper struct {
	store         store.Store
	accounts      AccountCreator
	adminEmail    string
	adminPassword string
	log           *zap.Logger
}

func New(st store.Store, accounts AccountCreator, adminEmail, adminPassword string, log *zap.Logger) *Bootstrapper {
	return &Bootstrapper{
		store:         st,
		accounts:      accounts,
		adminEmail:    adminEmail,
		adminPassword: adminPassword,
		log:           log,
	}
}

// Init creates the admin account if it is missing and seeds the catalog if it
// is empty. Running it again changes nothing.
func (b *Bootstrapper) Init(ctx context.Context) (*Result, error) {
	res := &Result{AdminEmail: b.adminEmail}

	_, err := b.store.Users().GetByEmail(ctx, b.adminEmail)
	switch {
	case err == nil:
		res.AdminExists = true
	case errors.Is(err, store.ErrNotFound):
		_, err = b.accounts.CreateUser(ctx, "Admin", b.adminEmail, b.adminPassword, model.RoleAdmin)
		if err != nil {
			return nil, fmt.Errorf("create admin: %w", err)
		}
		res.AdminCreated = true
		b.log.Info("Default admin user created", zap.String("email", b.adminEmail))
	default:
		return nil, fmt.Errorf("find admin: %w", err)
	}

	count, err := b.store.Products().Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	res.ProductCount = count

	if count == 0 {
		products := SampleProducts()
		if err := b.store.Products().InsertMany(ctx, products); err != nil {
			return nil, fmt.Errorf("seed products: %w", err)
		}
		res.ProductsSeeded = true
		res.ProductCount = int64(len(products))
		prometheus.UpdateInventoryUnits(totalStock(products))
		b.log.Info("Products seeded", zap.Int("count", len(products)))
	} else {
		res.ProductsExist = true
	}

	return res, nil
}

// Seed wipes the catalog and inserts the sample products. Orders are kept.
func (b *Bootstrapper) Seed(ctx context.Context) (int, error) {
	if err := b.store.Products().DeleteAll(ctx); err != nil {
		return 0, fmt.Errorf("clear products: %w", err)
	}
	products := SampleProducts()
	if err := b.store.Products().InsertMany(ctx, products); err != nil {
		return 0, fmt.Errorf("seed products: %w", err)
	}
	prometheus.UpdateInventoryUnits(totalStock(products))
	b.log.Info("Database seeded", zap.Int("count", len(products)))
	return len(products), nil
}

func totalStock(products []model.Product) int {
	var n int
	for _, p := range products {
		n += p.Stock
	}
	return n
}

// SlugFor derives a URL slug from a product name
func SlugFor(name string) string {
	return slug.Make(name)
}
