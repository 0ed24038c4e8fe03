package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

// Stripe is the Gateway backed by Stripe payment intents
type Stripe struct {
	api *client.API
	log *zap.Logger
}

// NewStripe returns a Stripe gateway. An empty key yields a gateway whose
// calls fail with ErrNotConfigured.
func NewStripe(secretKey string, log *zap.Logger) *Stripe {
	s := &Stripe{log: log}
	if secretKey != "" {
		s.api = &client.API{}
		s.api.Init(secretKey, nil)
	}
	return s
}

func (s *Stripe) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*Intent, error) {
	if s.api == nil {
		return nil, ErrNotConfigured
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("invalid amount %s", amount)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(ToMinorUnits(amount)),
		Currency: stripe.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		s.log.Error("Failed to create payment intent",
			zap.String("amount", amount.String()),
			zap.String("currency", currency),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	s.log.Info("Payment intent created",
		zap.String("payment_intent_id", pi.ID),
		zap.Int64("amount_minor", pi.Amount))
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (s *Stripe) Confirm(ctx context.Context, intentID string) (*Confirmation, error) {
	if s.api == nil {
		return nil, ErrNotConfigured
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := s.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		s.log.Error("Failed to retrieve payment intent",
			zap.String("payment_intent_id", intentID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	return &Confirmation{
		ID:        pi.ID,
		Amount:    FromMinorUnits(pi.AmountReceived),
		Currency:  string(pi.Currency),
		Succeeded: pi.Status == stripe.PaymentIntentStatusSucceeded,
	}, nil
}
