// Package cart holds the shopping cart aggregate and its pricing rules.
package cart

import (
	"sync"

	"storefront-service/internal/model"
)

// Cart is an ordered list of lines, at most one per product id. It is safe
// for concurrent use.
type Cart struct {
	mu    sync.Mutex
	lines []model.CartLine

	// OnChange, when set, receives a copy of the lines after every mutation.
	OnChange func([]model.CartLine)
}

// New returns a cart holding lines merged by product id
func New(lines ...model.CartLine) *Cart {
	c := &Cart{}
	for _, l := range lines {
		c.add(l)
	}
	return c
}

func (c *Cart) add(line model.CartLine) {
	for i := range c.lines {
		if c.lines[i].ProductID == line.ProductID {
			c.lines[i].Quantity += line.Quantity
			return
		}
	}
	c.lines = append(c.lines, line)
}

// Add merges line into the cart: an existing line for the same product has its
// quantity increased, otherwise the line is appended.
func (c *Cart) Add(line model.CartLine) {
	c.mu.Lock()
	c.add(line)
	c.mu.Unlock()
	c.changed()
}

// Remove deletes the line for productID, if any
func (c *Cart) Remove(productID string) {
	c.mu.Lock()
	kept := c.lines[:0]
	for _, l := range c.lines {
		if l.ProductID != productID {
			kept = append(kept, l)
		}
	}
	c.lines = kept
	c.mu.Unlock()
	c.changed()
}

// SetAll replaces the cart contents. Quantities below one are raised to one.
func (c *Cart) SetAll(lines []model.CartLine) {
	c.mu.Lock()
	c.lines = nil
	for _, l := range lines {
		if l.Quantity < 1 {
			l.Quantity = 1
		}
		c.add(l)
	}
	c.mu.Unlock()
	c.changed()
}

// Clear empties the cart
func (c *Cart) Clear() {
	c.mu.Lock()
	c.lines = nil
	c.mu.Unlock()
	c.changed()
}

// Lines returns a copy of the cart lines in insertion order
func (c *Cart) Lines() []model.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.CartLine(nil), c.lines...)
}

// Len is the number of distinct products in the cart
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

func (c *Cart) changed() {
	if c.OnChange != nil {
		c.OnChange(c.Lines())
	}
}
