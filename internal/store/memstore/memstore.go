// Package memstore keeps the whole store in process memory. It backs tests
// and serves development instances whose database is unreachable.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront-service/internal/model"
	"storefront-service/internal/store"
)

// Store is a mutex-guarded in-memory store.Store
type Store struct {
	mu       sync.RWMutex
	products map[string]model.Product
	orders   map[string]model.Order
	users    map[string]model.User
	markers  map[string]model.PaymentMarker
	now      func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns an empty store
func New() *Store {
	return &Store{
		products: make(map[string]model.Product),
		orders:   make(map[string]model.Order),
		users:    make(map[string]model.User),
		markers:  make(map[string]model.PaymentMarker),
		now:      time.Now,
	}
}

func (s *Store) Products() store.Products { return productRepo{s} }
func (s *Store) Orders() store.Orders     { return orderRepo{s} }
func (s *Store) Users() store.Users       { return userRepo{s} }
func (s *Store) Payments() store.Payments { return paymentRepo{s} }

func (s *Store) Ping(context.Context) error  { return nil }
func (s *Store) Close(context.Context) error { return nil }

func cloneProduct(p model.Product) model.Product {
	p.Colors = append([]string(nil), p.Colors...)
	p.Designs = append([]string(nil), p.Designs...)
	p.Keywords = append([]string(nil), p.Keywords...)
	return p
}

func cloneOrder(o model.Order) model.Order {
	lines := make([]model.OrderLine, len(o.Lines))
	for i, l := range o.Lines {
		if l.Customization != nil {
			c := *l.Customization
			l.Customization = &c
		}
		lines[i] = l
	}
	o.Lines = lines
	return o
}

// --- products ---

type productRepo struct{ s *Store }

func (r productRepo) List(_ context.Context, filter store.ProductFilter) ([]model.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]model.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if !p.MatchesSearch(filter.Search) {
			continue
		}
		out = append(out, cloneProduct(p))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r productRepo) Get(_ context.Context, id string) (*model.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	p = cloneProduct(p)
	return &p, nil
}

func (r productRepo) GetBySlug(_ context.Context, slug string) (*model.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, p := range r.s.products {
		if p.Slug == slug {
			p = cloneProduct(p)
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r productRepo) slugTaken(slug, exceptID string) bool {
	if slug == "" {
		return false
	}
	for id, p := range r.s.products {
		if id != exceptID && p.Slug == slug {
			return true
		}
	}
	return false
}

func (r productRepo) insert(p *model.Product) error {
	if r.slugTaken(p.Slug, "") {
		return store.ErrConflict
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := r.s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	r.s.products[p.ID] = cloneProduct(*p)
	return nil
}

func (r productRepo) Create(_ context.Context, p *model.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.insert(p)
}

func (r productRepo) Update(_ context.Context, id string, patch model.ProductPatch) (*model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	p = cloneProduct(p)
	if err := patch.Apply(&p); err != nil {
		return nil, err
	}
	if r.slugTaken(p.Slug, id) {
		return nil, store.ErrConflict
	}
	p.UpdatedAt = r.s.now()
	r.s.products[id] = p
	p = cloneProduct(p)
	return &p, nil
}

func (r productRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.products, id)
	return nil
}

func (r productRepo) Count(context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.products)), nil
}

func (r productRepo) InsertMany(_ context.Context, products []model.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i := range products {
		if err := r.insert(&products[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r productRepo) DeleteAll(context.Context) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.products = make(map[string]model.Product)
	return nil
}

// --- orders ---

type orderRepo struct{ s *Store }

func (r orderRepo) Place(_ context.Context, o *model.Order, transactionID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var marker *model.PaymentMarker
	if transactionID != "" {
		if m, ok := r.s.markers[transactionID]; ok {
			if m.Status == model.MarkerCompleted {
				return store.ErrConflict
			}
			marker = &m
		}
	}

	// Sum per product first so repeated lines are checked together
	need := make(map[string]int)
	for _, l := range o.Lines {
		need[l.ProductID] += l.Quantity
	}
	for id, qty := range need {
		p, ok := r.s.products[id]
		if !ok {
			return store.ErrNotFound
		}
		if p.Stock < qty {
			return store.ErrInsufficientStock
		}
	}

	now := r.s.now()
	for id, qty := range need {
		p := r.s.products[id]
		p.Stock -= qty
		p.UpdatedAt = now
		r.s.products[id] = p
	}

	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.CreatedAt = now
	o.UpdatedAt = now
	r.s.orders[o.ID] = cloneOrder(*o)

	if marker != nil {
		marker.Status = model.MarkerCompleted
		marker.OrderID = o.ID
		marker.UpdatedAt = now
		r.s.markers[transactionID] = *marker
	}
	return nil
}

func (r orderRepo) Get(_ context.Context, id string) (*model.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	o = cloneOrder(o)
	return &o, nil
}

func (r orderRepo) List(_ context.Context, filter store.OrderFilter) ([]model.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]model.Order, 0, len(r.s.orders))
	for _, o := range r.s.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.Email != "" && !strings.EqualFold(o.Email, filter.Email) {
			continue
		}
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r orderRepo) UpdateStatus(_ context.Context, id string, from, to model.OrderStatus) (*model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if o.Status != from {
		return nil, store.ErrConflict
	}
	o.Status = to
	o.UpdatedAt = r.s.now()
	r.s.orders[id] = o
	if to == model.OrderStatusCancelled {
		r.restock(o.Lines)
	}
	o = cloneOrder(o)
	return &o, nil
}

func (r orderRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.orders[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.orders, id)
	return nil
}

// restock must be called with the write lock held
func (r orderRepo) restock(lines []model.OrderLine) {
	for _, l := range lines {
		p, ok := r.s.products[l.ProductID]
		if !ok {
			// Product was deleted since the order; nothing to return stock to
			continue
		}
		p.Stock += l.Quantity
		r.s.products[l.ProductID] = p
	}
}

// --- users ---

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u.Email = strings.ToLower(u.Email)
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return store.ErrConflict
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := r.s.now()
	u.CreatedAt = now
	u.UpdatedAt = now
	r.s.users[u.ID] = *u
	return nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	email = strings.ToLower(email)
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r userRepo) Get(_ context.Context, id string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

// --- payment markers ---

type paymentRepo struct{ s *Store }

func (r paymentRepo) RecordPending(_ context.Context, m *model.PaymentMarker) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.markers[m.TransactionID]; ok {
		return store.ErrConflict
	}
	now := r.s.now()
	m.Status = model.MarkerPending
	m.CreatedAt = now
	m.UpdatedAt = now
	r.s.markers[m.TransactionID] = *m
	return nil
}

func (r paymentRepo) Get(_ context.Context, transactionID string) (*model.PaymentMarker, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.markers[transactionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &m, nil
}

func (r paymentRepo) Fail(_ context.Context, transactionID string, reason string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.markers[transactionID]
	if !ok {
		return store.ErrNotFound
	}
	m.LastError = reason
	m.Attempts++
	m.UpdatedAt = r.s.now()
	r.s.markers[transactionID] = m
	return nil
}

func (r paymentRepo) ListPending(context.Context) ([]model.PaymentMarker, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []model.PaymentMarker
	for _, m := range r.s.markers {
		if m.Status == model.MarkerPending {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
