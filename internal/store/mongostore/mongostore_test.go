package mongostore

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront-service/internal/model"
	"storefront-service/internal/store"
)

func TestProductQuery(t *testing.T) {
	assert.Equal(t, bson.M{}, productQuery(store.ProductFilter{}))

	q := productQuery(store.ProductFilter{Category: model.CategoryJournals, Search: " a.b "})
	assert.Equal(t, "journals", q["category"])

	or, ok := q["$or"].(bson.A)
	require.True(t, ok)
	require.Len(t, or, 3)
	re := primitive.Regex{Pattern: `a\.b`, Options: "i"}
	assert.Equal(t, bson.M{"name": re}, or[0])
	assert.Equal(t, bson.M{"keywords": re}, or[2])
}

func TestOrderQuery(t *testing.T) {
	q := orderQuery(store.OrderFilter{Status: model.OrderStatusShipped, Email: "a+b@example.com", UserID: "u1"})
	assert.Equal(t, "shipped", q["status"])
	assert.Equal(t, "u1", q["userId"])
	assert.Equal(t, primitive.Regex{Pattern: `^a\+b@example\.com$`, Options: "i"}, q["customerEmail"])
}

func TestObjectID(t *testing.T) {
	_, err := objectID("not-hex")
	assert.ErrorIs(t, err, store.ErrNotFound)

	oid := primitive.NewObjectID()
	got, err := objectID(oid.Hex())
	require.NoError(t, err)
	assert.Equal(t, oid, got)
}

func TestTranslate(t *testing.T) {
	assert.ErrorIs(t, translate(mongo.ErrNoDocuments), store.ErrNotFound)
	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
	assert.ErrorIs(t, translate(dup), store.ErrConflict)
}

func TestDecimalRoundTrip(t *testing.T) {
	d := decimal.RequireFromString("1234.56")
	assert.True(t, d.Equal(fromDecimal128(toDecimal128(d))))
}

func TestOrderDocRoundTrip(t *testing.T) {
	o := model.Order{
		ID: primitive.NewObjectID().Hex(),
		Lines: []model.OrderLine{{
			ProductID:     "p1",
			Name:          "Journal",
			UnitPrice:     decimal.RequireFromString("500"),
			Quantity:      2,
			Customization: &model.Customization{Color: "red", Text: "Ali"},
		}},
		Total:    decimal.RequireFromString("1100"),
		Status:   model.OrderStatusPending,
		Customer: model.Customer{Name: "Sara", Email: "sara@example.com", City: "Lahore"},
	}
	doc := orderToDoc(&o)
	got := doc.toModel()

	assert.Equal(t, o.ID, got.ID)
	assert.Equal(t, o.Customer, got.Customer)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "red", got.Lines[0].Customization.Color)
	assert.True(t, got.Lines[0].UnitPrice.Equal(decimal.NewFromInt(500)))
	assert.True(t, got.Total.Equal(decimal.NewFromInt(1100)))
}

type ctxKey struct{}

func TestCompensationContextOutlivesRequest(t *testing.T) {
	parent, cancel := context.WithTimeout(context.WithValue(context.Background(), ctxKey{}, "req-1"), time.Millisecond)
	cancel()
	require.ErrorIs(t, parent.Err(), context.Canceled)

	ctx, done := compensationContext(parent)
	defer done()

	assert.NoError(t, ctx.Err())
	assert.Equal(t, "req-1", ctx.Value(ctxKey{}))
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(compensationTimeout), deadline, time.Second)
}

func TestRestockPendingIsOmittedWhenClear(t *testing.T) {
	raw, err := bson.Marshal(orderDoc{Status: "cancelled"})
	require.NoError(t, err)
	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))
	_, present := m["restockPending"]
	assert.False(t, present)

	raw, err = bson.Marshal(orderDoc{Status: "cancelled", RestockPending: true})
	require.NoError(t, err)
	m = bson.M{}
	require.NoError(t, bson.Unmarshal(raw, &m))
	assert.Equal(t, true, m["restockPending"])
}
