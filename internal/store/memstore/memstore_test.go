package memstore

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/model"
	"storefront-service/internal/store"
)

func seedProduct(t *testing.T, s *Store, slug string, stock int) *model.Product {
	t.Helper()
	p := &model.Product{
		Name:     "Journal " + slug,
		Slug:     slug,
		Price:    decimal.NewFromInt(500),
		Category: model.CategoryJournals,
		Stock:    stock,
		Keywords: []string{"leather"},
	}
	require.NoError(t, s.Products().Create(context.Background(), p))
	return p
}

func orderFor(p *model.Product, qty int) *model.Order {
	return &model.Order{
		Lines:  []model.OrderLine{{ProductID: p.ID, Name: p.Name, UnitPrice: p.Price, Quantity: qty}},
		Status: model.OrderStatusPending,
	}
}

func TestProductsCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedProduct(t, s, "a", 5)
	assert.NotEmpty(t, p.ID)

	got, err := s.Products().GetBySlug(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	err = s.Products().Create(ctx, &model.Product{Slug: "a", Category: model.CategoryTools})
	assert.ErrorIs(t, err, store.ErrConflict)

	stock := 9
	updated, err := s.Products().Update(ctx, p.ID, model.ProductPatch{Stock: &stock})
	require.NoError(t, err)
	assert.Equal(t, 9, updated.Stock)

	require.NoError(t, s.Products().Delete(ctx, p.ID))
	_, err = s.Products().Get(ctx, p.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProductsListFilters(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedProduct(t, s, "a", 1)
	require.NoError(t, s.Products().Create(ctx, &model.Product{Name: "Glue gun", Slug: "b", Category: model.CategoryTools}))

	all, err := s.Products().List(ctx, store.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	tools, err := s.Products().List(ctx, store.ProductFilter{Category: model.CategoryTools})
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "Glue gun", tools[0].Name)

	byKeyword, err := s.Products().List(ctx, store.ProductFilter{Search: "LEATHER"})
	require.NoError(t, err)
	require.Len(t, byKeyword, 1)
	assert.Equal(t, "a", byKeyword[0].Slug)
}

func TestReturnedProductsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedProduct(t, s, "a", 1)

	got, err := s.Products().Get(ctx, p.ID)
	require.NoError(t, err)
	got.Keywords[0] = "changed"
	got.Stock = 100

	again, err := s.Products().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "leather", again.Keywords[0])
	assert.Equal(t, 1, again.Stock)
}

func TestPlaceDecrementsStock(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedProduct(t, s, "a", 3)

	o := orderFor(p, 2)
	require.NoError(t, s.Orders().Place(ctx, o, ""))
	assert.NotEmpty(t, o.ID)

	got, err := s.Products().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stock)

	err = s.Orders().Place(ctx, orderFor(p, 2), "")
	assert.ErrorIs(t, err, store.ErrInsufficientStock)

	got, err = s.Products().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stock, "failed placement must not touch stock")
}

func TestPlaceChecksRepeatedLinesTogether(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedProduct(t, s, "a", 3)

	o := orderFor(p, 2)
	o.Lines = append(o.Lines, o.Lines[0])
	assert.ErrorIs(t, s.Orders().Place(ctx, o, ""), store.ErrInsufficientStock)
}

func TestPlaceConcurrentLastUnit(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedProduct(t, s, "a", 1)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.Orders().Place(ctx, orderFor(p, 1), "")
		}()
	}
	wg.Wait()
	close(results)

	var ok, short int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, store.ErrInsufficientStock):
			short++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
}

func TestPlaceCompletesMarker(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedProduct(t, s, "a", 1)

	require.NoError(t, s.Payments().RecordPending(ctx, &model.PaymentMarker{TransactionID: "pi_1"}))
	assert.ErrorIs(t, s.Payments().RecordPending(ctx, &model.PaymentMarker{TransactionID: "pi_1"}), store.ErrConflict)

	pending, err := s.Payments().ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	o := orderFor(p, 1)
	require.NoError(t, s.Orders().Place(ctx, o, "pi_1"))

	m, err := s.Payments().Get(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, model.MarkerCompleted, m.Status)
	assert.Equal(t, o.ID, m.OrderID)

	pending, err = s.Payments().ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCancelRestocks(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedProduct(t, s, "a", 2)
	o := orderFor(p, 2)
	require.NoError(t, s.Orders().Place(ctx, o, ""))

	got, err := s.Products().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)

	_, err = s.Orders().UpdateStatus(ctx, o.ID, model.OrderStatusPending, model.OrderStatusProcessing)
	require.NoError(t, err)
	got, err = s.Products().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock, "only cancelling returns stock")

	_, err = s.Orders().UpdateStatus(ctx, o.ID, model.OrderStatusProcessing, model.OrderStatusCancelled)
	require.NoError(t, err)
	got, err = s.Products().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stock)

	// A second cancel loses the compare-and-set and must not restock again
	_, err = s.Orders().UpdateStatus(ctx, o.ID, model.OrderStatusProcessing, model.OrderStatusCancelled)
	assert.ErrorIs(t, err, store.ErrConflict)
	got, err = s.Products().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stock)
}

func TestOrderCopiesDoNotShareCustomization(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedProduct(t, s, "a", 5)
	o := orderFor(p, 1)
	o.Lines[0].Customization = &model.Customization{Text: "Sara"}
	require.NoError(t, s.Orders().Place(ctx, o, ""))

	o.Lines[0].Customization.Text = "changed by caller"
	first, err := s.Orders().Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sara", first.Lines[0].Customization.Text)

	first.Lines[0].Customization.Text = "changed by reader"
	second, err := s.Orders().Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sara", second.Lines[0].Customization.Text)
}

func TestUsersUniqueEmail(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Users().Create(ctx, &model.User{Email: "A@Example.com"}))
	assert.ErrorIs(t, s.Users().Create(ctx, &model.User{Email: "a@example.com"}), store.ErrConflict)

	u, err := s.Users().GetByEmail(ctx, "a@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", u.Email)
}

func TestOrdersListFilter(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedProduct(t, s, "a", 10)

	a := orderFor(p, 1)
	a.Email = "x@example.com"
	a.UserID = "u1"
	require.NoError(t, s.Orders().Place(ctx, a, ""))
	b := orderFor(p, 1)
	b.Email = "y@example.com"
	require.NoError(t, s.Orders().Place(ctx, b, ""))
	_, err := s.Orders().UpdateStatus(ctx, b.ID, model.OrderStatusPending, model.OrderStatusProcessing)
	require.NoError(t, err)

	mine, err := s.Orders().List(ctx, store.OrderFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, a.ID, mine[0].ID)

	processing, err := s.Orders().List(ctx, store.OrderFilter{Status: model.OrderStatusProcessing})
	require.NoError(t, err)
	require.Len(t, processing, 1)
	assert.Equal(t, b.ID, processing[0].ID)

	byEmail, err := s.Orders().List(ctx, store.OrderFilter{Email: "X@example.com"})
	require.NoError(t, err)
	assert.Len(t, byEmail, 1)
}

func TestPlaceRejectsCompletedMarker(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedProduct(t, s, "a", 5)
	require.NoError(t, s.Payments().RecordPending(ctx, &model.PaymentMarker{TransactionID: "pi_1"}))
	require.NoError(t, s.Orders().Place(ctx, orderFor(p, 1), "pi_1"))

	err := s.Orders().Place(ctx, orderFor(p, 1), "pi_1")
	assert.ErrorIs(t, err, store.ErrConflict)

	got, err := s.Products().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Stock)
}

func TestUpdateStatusComparesCurrentStatus(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedProduct(t, s, "a", 10)
	o := orderFor(p, 1)
	require.NoError(t, s.Orders().Place(ctx, o, ""))

	_, err := s.Orders().UpdateStatus(ctx, o.ID, model.OrderStatusPending, model.OrderStatusCancelled)
	require.NoError(t, err)

	_, err = s.Orders().UpdateStatus(ctx, o.ID, model.OrderStatusPending, model.OrderStatusCancelled)
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = s.Orders().UpdateStatus(ctx, "missing", model.OrderStatusPending, model.OrderStatusCancelled)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
