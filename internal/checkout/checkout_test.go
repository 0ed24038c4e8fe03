package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront-service/internal/events"
	"storefront-service/internal/model"
	"storefront-service/internal/payment"
	"storefront-service/internal/store"
	"storefront-service/internal/store/memstore"
	"storefront-service/internal/validation"
)

type fixture struct {
	svc     *Service
	store   *memstore.Store
	gateway *payment.Fake
	events  *events.Recorder
	journal *model.Product
}

func newFixture(t *testing.T, stock int) *fixture {
	t.Helper()
	st := memstore.New()
	journal := &model.Product{
		Name:     "Journal A",
		Slug:     "journal-a",
		Price:    decimal.NewFromInt(500),
		Category: model.CategoryJournals,
		Stock:    stock,
	}
	require.NoError(t, st.Products().Create(context.Background(), journal))

	f := &fixture{store: st, gateway: payment.NewFake(), events: &events.Recorder{}, journal: journal}
	f.svc = NewService(st, f.gateway, f.events, validation.New(), "pkr", zap.NewNop())
	return f
}

func validCustomer() model.Customer {
	return model.Customer{
		Name:    "Sara",
		Email:   "sara@example.com",
		Phone:   "0300",
		Address: "1 Mall Road",
		City:    "Lahore",
		ZipCode: "54000",
	}
}

func (f *fixture) request(qty int, method string) Request {
	return Request{
		Lines:         []model.CartLine{{ProductID: f.journal.ID, Quantity: qty}},
		Customer:      validCustomer(),
		PaymentMethod: method,
	}
}

func (f *fixture) stock(t *testing.T) int {
	p, err := f.store.Products().Get(context.Background(), f.journal.ID)
	require.NoError(t, err)
	return p.Stock
}

func TestCashOnDeliveryOrder(t *testing.T) {
	f := newFixture(t, 5)
	res, err := f.svc.Checkout(context.Background(), f.request(2, "cash-on-delivery"))
	require.NoError(t, err)

	o := res.Order
	assert.Equal(t, "1100.00", o.Total.StringFixed(2))
	assert.Equal(t, model.OrderStatusPending, o.Status)
	assert.Equal(t, model.PaymentStatusPending, o.PaymentStatus)
	assert.Empty(t, o.TransactionID)
	assert.Equal(t, 3, f.stock(t))
	assert.Equal(t, []string{events.TypeOrderCreated}, f.events.Types())
}

func TestQuoteMatchesOrderTotal(t *testing.T) {
	f := newFixture(t, 5)
	q, err := f.svc.Quote(context.Background(), f.request(3, "").Lines)
	require.NoError(t, err)

	res, err := f.svc.Checkout(context.Background(), f.request(3, "bank-transfer"))
	require.NoError(t, err)
	assert.True(t, q.Total.Equal(res.Order.Total))
}

func TestCheckoutValidation(t *testing.T) {
	f := newFixture(t, 5)

	req := f.request(1, "cash-on-delivery")
	req.Customer = model.Customer{Email: "bad"}
	_, err := f.svc.Checkout(context.Background(), req)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Invalid email format", verr.Fields["customerEmail"])
	assert.Equal(t, "Name is required", verr.Fields["customerName"])
	assert.Len(t, verr.Fields, 6)
	assert.Equal(t, 5, f.stock(t))
}

func TestCheckoutRejectsBadInput(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	_, err := f.svc.Checkout(ctx, Request{Customer: validCustomer(), PaymentMethod: "cash-on-delivery"})
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = f.svc.Checkout(ctx, f.request(1, "barter"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "paymentMethod")

	req := f.request(1, "cash-on-delivery")
	req.Lines[0].Customization = &model.Customization{Text: string(make([]byte, 51))}
	_, err = f.svc.Checkout(ctx, req)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "items")

	req = f.request(1, "cash-on-delivery")
	req.Lines[0].ProductID = "missing"
	_, err = f.svc.Checkout(ctx, req)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCardPaymentRequiresConfirmedIntent(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	_, err := f.svc.Checkout(ctx, f.request(1, "credit-card"))
	assert.ErrorIs(t, err, ErrPaymentRequired)

	f.gateway.Set(payment.Confirmation{ID: "pi_low", Amount: decimal.NewFromInt(10), Currency: "pkr", Succeeded: true})
	req := f.request(1, "credit-card")
	req.PaymentIntentID = "pi_low"
	_, err = f.svc.Checkout(ctx, req)
	assert.ErrorIs(t, err, ErrPaymentNotConfirmed)

	req.PaymentIntentID = "pi_unknown"
	_, err = f.svc.Checkout(ctx, req)
	assert.ErrorIs(t, err, payment.ErrUpstream)

	assert.Equal(t, 5, f.stock(t))
	pending, err := f.svc.PendingPayments(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCardPaymentMarksPaidAndReplays(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	intent, err := f.gateway.CreateIntent(ctx, decimal.NewFromInt(550), "pkr", nil)
	require.NoError(t, err)

	req := f.request(1, "debit-card")
	req.PaymentIntentID = intent.ID
	first, err := f.svc.Checkout(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, first.Order.PaymentStatus)
	assert.Equal(t, intent.ID, first.Order.TransactionID)

	second, err := f.svc.Checkout(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, 4, f.stock(t))

	m, err := f.store.Payments().Get(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MarkerCompleted, m.Status)
}

func TestIdempotencyKeyOnOfflineOrder(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	req := f.request(1, "cash-on-delivery")
	req.IdempotencyKey = "abc"
	first, err := f.svc.Checkout(ctx, req)
	require.NoError(t, err)
	second, err := f.svc.Checkout(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Empty(t, first.Order.TransactionID)
	assert.Equal(t, 4, f.stock(t))
}

func TestPaidOrderOutOfStockLeavesPendingMarker(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	intent, err := f.gateway.CreateIntent(ctx, decimal.NewFromInt(1100), "pkr", nil)
	require.NoError(t, err)

	req := f.request(2, "credit-card")
	req.PaymentIntentID = intent.ID
	_, err = f.svc.Checkout(ctx, req)

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, intent.ID, perr.TransactionID)
	assert.True(t, perr.PaymentCaptured)
	assert.ErrorIs(t, err, store.ErrInsufficientStock)

	pending, err := f.svc.PendingPayments(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.NotEmpty(t, pending[0].LastError)

	// Restock, then finish the order from the marker
	stock := 5
	_, err = f.store.Products().Update(ctx, f.journal.ID, model.ProductPatch{Stock: &stock})
	require.NoError(t, err)

	res, err := f.svc.Reconcile(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, "1100.00", res.Order.Total.StringFixed(2))
	assert.Equal(t, model.PaymentStatusPaid, res.Order.PaymentStatus)
	assert.Equal(t, 3, f.stock(t))

	again, err := f.svc.Reconcile(ctx, intent.ID)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, res.Order.ID, again.Order.ID)
}

func TestReconcileUnknownMarker(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.svc.Reconcile(context.Background(), "pi_nope")
	assert.ErrorIs(t, err, ErrMarkerNotFound)
}

func TestSnapshotSurvivesProductEdits(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	res, err := f.svc.Checkout(ctx, f.request(1, "cash-on-delivery"))
	require.NoError(t, err)

	name := "Renamed"
	price := decimal.NewFromInt(9999)
	_, err = f.store.Products().Update(ctx, f.journal.ID, model.ProductPatch{Name: &name, Price: &price})
	require.NoError(t, err)

	o, err := f.store.Orders().Get(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Journal A", o.Lines[0].Name)
	assert.Equal(t, "500", o.Lines[0].UnitPrice.String())
	assert.Equal(t, "550.00", o.Total.StringFixed(2))
}

func TestConcurrentCheckoutsForLastUnit(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Checkout(ctx, f.request(1, "cash-on-delivery"))
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, store.ErrInsufficientStock), "unexpected error %v", err)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 0, f.stock(t))
}

func TestLinesAreValidatedBeforeMerging(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	lines := []model.CartLine{
		{ProductID: f.journal.ID, Quantity: -5},
		{ProductID: f.journal.ID, Quantity: 6},
	}
	req := f.request(1, "cash-on-delivery")
	req.Lines = lines
	_, err := f.svc.Checkout(ctx, req)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "items")
	assert.Equal(t, 5, f.stock(t))

	_, err = f.svc.Quote(ctx, lines)
	require.ErrorAs(t, err, &verr)
}

func TestUnpaidOutOfStockIsNotCaptured(t *testing.T) {
	f := newFixture(t, 1)
	req := f.request(2, "cash-on-delivery")
	req.IdempotencyKey = "k-1"
	_, err := f.svc.Checkout(context.Background(), req)

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.False(t, perr.PaymentCaptured)
	assert.ErrorIs(t, err, store.ErrInsufficientStock)
}

func TestIdempotencyKeyReusedForDifferentCheckout(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	req := f.request(1, "cash-on-delivery")
	req.IdempotencyKey = "k1"
	first, err := f.svc.Checkout(ctx, req)
	require.NoError(t, err)

	other := f.request(3, "cash-on-delivery")
	other.IdempotencyKey = "k1"
	other.Customer.Name = "Mallory"
	other.Customer.Email = "mallory@example.com"
	_, err = f.svc.Checkout(ctx, other)
	assert.ErrorIs(t, err, ErrIdempotencyMismatch)

	sameBuyerMoreItems := f.request(3, "cash-on-delivery")
	sameBuyerMoreItems.IdempotencyKey = "k1"
	_, err = f.svc.Checkout(ctx, sameBuyerMoreItems)
	assert.ErrorIs(t, err, ErrIdempotencyMismatch)

	retry := f.request(1, "cash-on-delivery")
	retry.IdempotencyKey = "k1"
	retry.Customer.Email = "SARA@example.com"
	again, err := f.svc.Checkout(ctx, retry)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Order.ID, again.Order.ID)
	assert.Equal(t, 9, f.stock(t))
}

func TestSameCheckout(t *testing.T) {
	base := model.CheckoutSnapshot{
		Customer:      model.Customer{Email: "a@example.com"},
		PaymentMethod: model.PaymentCashOnDelivery,
		Lines: []model.OrderLine{
			{ProductID: "p1", Quantity: 1, UnitPrice: decimal.NewFromInt(10)},
			{ProductID: "p2", Quantity: 2},
		},
	}

	reordered := base
	reordered.Lines = []model.OrderLine{
		{ProductID: "p2", Quantity: 2},
		{ProductID: "p1", Quantity: 1, UnitPrice: decimal.NewFromInt(99)},
	}
	assert.True(t, sameCheckout(base, reordered), "order and price do not matter")

	swapped := base
	swapped.Lines = []model.OrderLine{{ProductID: "p1", Quantity: 2}, {ProductID: "p2", Quantity: 1}}
	assert.False(t, sameCheckout(base, swapped))

	otherMethod := base
	otherMethod.PaymentMethod = model.PaymentBankTransfer
	assert.False(t, sameCheckout(base, otherMethod))
}
