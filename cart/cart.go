// Package cart implements the shopping cart: one line per product, derived
// totals, and the simulated checkout.
package cart

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/openmarket/marketplace/catalog"
	"github.com/openmarket/marketplace/core"
)

// MaxQuantity is the largest quantity a single cart line may hold.
const MaxQuantity = 9999

func errQuantity(op string, quantity int) error {
	return core.NewValidationError(op, "quantity",
		fmt.Errorf("%w: %d exceeds the limit of %d", core.ErrInvalidQuantity, quantity, MaxQuantity))
}

// Item is a product snapshot plus a quantity. Quantity is always >= 1 while
// the item is in a cart. The product fields are flattened when encoded so a
// stored cart reads as a list of products with a quantity each.
type Item struct {
	catalog.Product
	Quantity int `json:"quantity"`
}

// Subtotal returns price times quantity for the line.
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Totals is the derived cart summary.
type Totals struct {
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// Cart is the ordered list of cart lines, at most one per product id.
// It is not safe for concurrent use.
type Cart struct {
	items []Item
}

// New creates an empty cart.
func New() *Cart {
	return &Cart{}
}

// Add puts one unit of p into the cart. An existing line for the same id is
// incremented in place; a new product appends a line with quantity 1.
// A line already at MaxQuantity is left unchanged and an error is returned.
func (c *Cart) Add(p catalog.Product) (Item, error) {
	if i := c.index(p.ID); i >= 0 {
		if c.items[i].Quantity >= MaxQuantity {
			return c.items[i], errQuantity("cart.Add", c.items[i].Quantity+1)
		}
		c.items[i].Quantity++
		return c.items[i], nil
	}
	item := Item{Product: p, Quantity: 1}
	c.items = append(c.items, item)
	return item, nil
}

// Remove deletes the line for id and reports whether it was present.
func (c *Cart) Remove(id string) bool {
	i := c.index(id)
	if i < 0 {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return true
}

// SetQuantity overwrites the quantity of the line for id. A quantity of
// zero or less removes the line; one above MaxQuantity is rejected and the
// cart is left unchanged. It reports whether a line for id existed.
func (c *Cart) SetQuantity(id string, quantity int) (bool, error) {
	if quantity > MaxQuantity {
		return c.index(id) >= 0, errQuantity("cart.SetQuantity", quantity)
	}
	if quantity <= 0 {
		return c.Remove(id), nil
	}
	i := c.index(id)
	if i < 0 {
		return false, nil
	}
	c.items[i].Quantity = quantity
	return true, nil
}

// Totals sums price times quantity and the unit count over every line.
func (c *Cart) Totals() Totals {
	t := Totals{Total: decimal.Zero}
	for _, item := range c.items {
		t.Total = t.Total.Add(item.Subtotal())
		t.Count += item.Quantity
	}
	return t
}

// Items returns a copy of the cart lines in insertion order.
func (c *Cart) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of distinct lines.
func (c *Cart) Len() int {
	return len(c.items)
}

// Replace swaps in a loaded list of lines. Lines without an id or with a
// non-positive quantity are dropped, duplicate ids are merged, and every
// quantity is capped at MaxQuantity.
func (c *Cart) Replace(items []Item) {
	c.items = c.items[:0]
	for _, item := range items {
		if item.ID == "" || item.Quantity <= 0 {
			continue
		}
		item.Quantity = min(item.Quantity, MaxQuantity)
		if i := c.index(item.ID); i >= 0 {
			c.items[i].Quantity = min(c.items[i].Quantity+item.Quantity, MaxQuantity)
			continue
		}
		c.items = append(c.items, item)
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.items = nil
}

func (c *Cart) index(id string) int {
	for i, item := range c.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}
