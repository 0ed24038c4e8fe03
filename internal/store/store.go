// Package store defines the persistence contracts shared by the PostgreSQL,
// MongoDB and in-memory backends.
package store

import (
	"context"
	"errors"

	"storefront-service/internal/model"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ProductFilter narrows a catalog listing. Zero values match everything.
type ProductFilter struct {
	Category model.Category
	Search   string
}

// OrderFilter narrows an order listing. Zero values match everything.
type OrderFilter struct {
	Status model.OrderStatus
	Email  string
	UserID string
}

// Products is the Catalog Store
type Products interface {
	// List returns matching products, newest first.
	List(ctx context.Context, filter ProductFilter) ([]model.Product, error)
	Get(ctx context.Context, id string) (*model.Product, error)
	GetBySlug(ctx context.Context, slug string) (*model.Product, error)
	Create(ctx context.Context, p *model.Product) error
	Update(ctx context.Context, id string, patch model.ProductPatch) (*model.Product, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
	InsertMany(ctx context.Context, products []model.Product) error
	DeleteAll(ctx context.Context) error
}

// Orders is the Order Lifecycle store
type Orders interface {
	// Place decrements stock for every line, inserts the order and, when
	// transactionID is set, completes the matching payment marker, all in one
	// persistence step. It fails with ErrInsufficientStock without side effects
	// when any line cannot be covered, and with ErrConflict when the marker
	// for transactionID is already completed.
	Place(ctx context.Context, o *model.Order, transactionID string) error
	Get(ctx context.Context, id string) (*model.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]model.Order, error)
	// UpdateStatus moves an order from one status to another. It fails with
	// ErrConflict when the stored status is no longer from. Moving to
	// cancelled returns the order's lines to stock in the same step.
	UpdateStatus(ctx context.Context, id string, from, to model.OrderStatus) (*model.Order, error)
	Delete(ctx context.Context, id string) error
}

// Users stores accounts
type Users interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Get(ctx context.Context, id string) (*model.User, error)
}

// Payments stores payment markers
type Payments interface {
	// RecordPending inserts a pending marker; ErrConflict if one exists.
	RecordPending(ctx context.Context, m *model.PaymentMarker) error
	Get(ctx context.Context, transactionID string) (*model.PaymentMarker, error)
	// Fail records a failed placement attempt on a pending marker.
	Fail(ctx context.Context, transactionID string, reason string) error
	ListPending(ctx context.Context) ([]model.PaymentMarker, error)
}

// Store bundles every collection behind one connection
type Store interface {
	Products() Products
	Orders() Orders
	Users() Users
	Payments() Payments
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
