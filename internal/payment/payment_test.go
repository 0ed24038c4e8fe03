package payment

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(110000), ToMinorUnits(decimal.NewFromInt(1100)))
	assert.Equal(t, int64(6597), ToMinorUnits(decimal.RequireFromString("65.97")))
	assert.Equal(t, "65.97", FromMinorUnits(6597).StringFixed(2))
}

func TestConfirmationCovers(t *testing.T) {
	c := Confirmation{Amount: decimal.NewFromInt(1100), Currency: "pkr", Succeeded: true}
	assert.True(t, c.Covers(decimal.NewFromInt(1100), "pkr"))
	assert.False(t, c.Covers(decimal.NewFromInt(1200), "pkr"))
	assert.False(t, c.Covers(decimal.NewFromInt(1100), "usd"))

	c.Succeeded = false
	assert.False(t, c.Covers(decimal.NewFromInt(1), "pkr"))
}

func TestStripeWithoutKey(t *testing.T) {
	s := NewStripe("", zap.NewNop())
	_, err := s.CreateIntent(context.Background(), decimal.NewFromInt(10), "pkr", nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = s.Confirm(context.Background(), "pi_1")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestFakeGateway(t *testing.T) {
	f := NewFake()
	intent, err := f.CreateIntent(context.Background(), decimal.NewFromInt(10), "pkr", nil)
	require.NoError(t, err)

	c, err := f.Confirm(context.Background(), intent.ID)
	require.NoError(t, err)
	assert.True(t, c.Covers(decimal.NewFromInt(10), "pkr"))

	_, err = f.Confirm(context.Background(), "pi_unknown")
	assert.ErrorIs(t, err, ErrUpstream)
}
