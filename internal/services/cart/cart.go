// Package cart is the per-session product quantity ledger.
//
// A Cart is not safe for concurrent use. It is owned by one session and only
// mutated while that session's lock is held, which totally orders every
// mutation of a given cart.
package cart

import (
	"log/slog"

	"github.com/mcoot/smartkiosk/internal/model"
)

// Cart holds one line per product in insertion order
type Cart struct {
	lines  []model.CartLine
	logger *slog.Logger
}

// New creates an empty cart
func New(logger *slog.Logger) *Cart {
	return &Cart{logger: logger}
}

// AddItem increments the line for product, appending a new line with
// quantity 1 if none exists. There is no deduplication window: every call
// increments.
func (c *Cart) AddItem(product model.Product) model.CartSummary {
	for i := range c.lines {
		if c.lines[i].ProductID == product.ID {
			c.lines[i].Quantity++
			return c.Summary()
		}
	}
	c.lines = append(c.lines, model.CartLine{
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: product.Price,
		Quantity:  1,
	})
	return c.Summary()
}

// RemoveItem removes the line at index. An out-of-range index leaves the cart
// untouched and is only logged.
func (c *Cart) RemoveItem(index int) model.CartSummary {
	if index < 0 || index >= len(c.lines) {
		c.logger.Warn("cart remove index out of range",
			slog.Int("index", index),
			slog.Int("lines", len(c.lines)),
		)
		return c.Summary()
	}
	c.lines = append(c.lines[:index], c.lines[index+1:]...)
	return c.Summary()
}

// Clear discards all lines. The cart stays in place, empty.
func (c *Cart) Clear() {
	c.lines = nil
}

// Summary recomputes totals from the current lines
func (c *Cart) Summary() model.CartSummary {
	return model.SummarizeLines(c.lines)
}

// Validate reports whether the cart has at least one line
func (c *Cart) Validate() bool {
	return len(c.lines) > 0
}

// Len returns the number of lines
func (c *Cart) Len() int {
	return len(c.lines)
}
