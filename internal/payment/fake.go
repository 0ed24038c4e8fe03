package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Fake is an in-process Gateway. Intents it creates succeed immediately with
// the requested amount unless marked otherwise.
type Fake struct {
	mu      sync.Mutex
	intents map[string]Confirmation
}

func NewFake() *Fake {
	return &Fake{intents: make(map[string]Confirmation)}
}

func (f *Fake) CreateIntent(_ context.Context, amount decimal.Decimal, currency string, _ map[string]string) (*Intent, error) {
	id := "pi_" + uuid.NewString()
	f.Set(Confirmation{ID: id, Amount: amount, Currency: currency, Succeeded: true})
	return &Intent{ID: id, ClientSecret: id + "_secret"}, nil
}

func (f *Fake) Confirm(_ context.Context, intentID string) (*Confirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.intents[intentID]
	if !ok {
		return nil, fmt.Errorf("%w: no such payment intent %s", ErrUpstream, intentID)
	}
	return &c, nil
}

// Set registers or overwrites the confirmation for c.ID
func (f *Fake) Set(c Confirmation) {
	f.mu.Lock()
	f.intents[c.ID] = c
	f.mu.Unlock()
}
