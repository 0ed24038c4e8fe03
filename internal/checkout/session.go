package checkout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"storefront-service/internal/cart"
	"storefront-service/internal/model"
	"storefront-service/internal/validation"
)

// State is a step of the checkout flow
type State string

const (
	StateEditingCart          State = "editing_cart"
	StateEnteringCustomerInfo State = "entering_customer_info"
	StateAwaitingPayment      State = "awaiting_payment"
	StateCompleted            State = "completed"
	StatePersistenceFailed    State = "persistence_failed"
)

var ErrInvalidState = errors.New("checkout step not allowed in current state")

// Session walks one cart through checkout. The cart is cleared only once an
// order has been persisted.
type Session struct {
	state    State
	cart     *cart.Cart
	validate *validator.Validate
	customer model.Customer
	order    *model.Order
	err      error
}

func NewSession(c *cart.Cart, v *validator.Validate) *Session {
	return &Session{state: StateEditingCart, cart: c, validate: v}
}

func (s *Session) State() State             { return s.state }
func (s *Session) Cart() *cart.Cart         { return s.cart }
func (s *Session) Customer() model.Customer { return s.customer }
func (s *Session) Order() *model.Order      { return s.order }
func (s *Session) Err() error               { return s.err }

func (s *Session) expect(want State) error {
	if s.state != want {
		return fmt.Errorf("%w: in %s, need %s", ErrInvalidState, s.state, want)
	}
	return nil
}

// Begin leaves the cart for the customer form
func (s *Session) Begin() error {
	if err := s.expect(StateEditingCart); err != nil {
		return err
	}
	if s.cart.Len() == 0 {
		return ErrEmptyCart
	}
	s.state = StateEnteringCustomerInfo
	return nil
}

// Back returns from the customer form to the cart
func (s *Session) Back() error {
	if err := s.expect(StateEnteringCustomerInfo); err != nil {
		return err
	}
	s.state = StateEditingCart
	return nil
}

// SubmitCustomer validates the contact details. On failure the session stays
// on the form and the error is a *ValidationError.
func (s *Session) SubmitCustomer(info model.Customer) error {
	if err := s.expect(StateEnteringCustomerInfo); err != nil {
		return err
	}
	info = trimCustomer(info)
	if err := s.validate.Struct(info); err != nil {
		if fields := validation.Fields(err); fields != nil {
			return &ValidationError{Fields: fields}
		}
		return err
	}
	s.customer = info
	s.state = StateAwaitingPayment
	return nil
}

// Complete records the persisted order and empties the cart
func (s *Session) Complete(o *model.Order) error {
	if err := s.expect(StateAwaitingPayment); err != nil {
		return err
	}
	s.order = o
	s.err = nil
	s.state = StateCompleted
	s.cart.Clear()
	return nil
}

// Fail records a persistence failure. The cart is kept for a retry.
func (s *Session) Fail(err error) error {
	if e := s.expect(StateAwaitingPayment); e != nil {
		return e
	}
	s.err = err
	s.state = StatePersistenceFailed
	return nil
}

// Retry goes back to payment after a persistence failure
func (s *Session) Retry() error {
	if err := s.expect(StatePersistenceFailed); err != nil {
		return err
	}
	s.state = StateAwaitingPayment
	return nil
}

func trimCustomer(c model.Customer) model.Customer {
	return model.Customer{
		Name:    strings.TrimSpace(c.Name),
		Email:   strings.ToLower(strings.TrimSpace(c.Email)),
		Phone:   strings.TrimSpace(c.Phone),
		Address: strings.TrimSpace(c.Address),
		City:    strings.TrimSpace(c.City),
		ZipCode: strings.TrimSpace(c.ZipCode),
	}
}
