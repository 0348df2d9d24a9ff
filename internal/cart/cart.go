// Package cart holds the in-flight shopping cart attached to a checkout
// conversation. The cart is a plain value; persistence and stock checks live
// with the services that commit it.
package cart

import (
	"fmt"
	"strings"
)

// Line is one product entry. Repeated adds of the same product create
// separate lines; lines are only ever merged by the user removing one.
type Line struct {
	ProductID int64
	Name      string
	UnitPrice int64
	Quantity  int
}

// Total returns the line amount in minor units.
func (l Line) Total() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// Cart is an ordered list of lines. The zero value is an empty cart.
type Cart struct {
	Lines []Line
}

// Add appends a line. It never merges with an existing line for the same
// product, so the order history shows exactly what the user tapped.
func (c *Cart) Add(l Line) {
	c.Lines = append(c.Lines, l)
}

// Remove deletes the line at idx and reports whether idx was valid.
func (c *Cart) Remove(idx int) bool {
	if idx < 0 || idx >= len(c.Lines) {
		return false
	}
	c.Lines = append(c.Lines[:idx], c.Lines[idx+1:]...)
	return true
}

// SetQuantity replaces the quantity of the line at idx. Quantities below one
// are rejected; removal is a separate action.
func (c *Cart) SetQuantity(idx, qty int) bool {
	if idx < 0 || idx >= len(c.Lines) || qty < 1 {
		return false
	}
	c.Lines[idx].Quantity = qty
	return true
}

// Clear empties the cart in place.
func (c *Cart) Clear() {
	c.Lines = nil
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	return len(c.Lines) == 0
}

// Units returns the total number of bottles across all lines.
func (c *Cart) Units() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Subtotal returns the goods amount in minor units, before delivery fee.
func (c *Cart) Subtotal() int64 {
	var sum int64
	for _, l := range c.Lines {
		sum += l.Total()
	}
	return sum
}

// QuantityByProduct sums quantities per product across lines. Stock checks
// need the aggregate even though lines stay separate.
func (c *Cart) QuantityByProduct() map[int64]int {
	out := make(map[int64]int, len(c.Lines))
	for _, l := range c.Lines {
		out[l.ProductID] += l.Quantity
	}
	return out
}

// Summary renders a numbered plain-text listing used in confirmation
// messages. Amounts are formatted by the caller's money helper.
func (c *Cart) Summary(money func(int64) string) string {
	var b strings.Builder
	for i, l := range c.Lines {
		fmt.Fprintf(&b, "%d. %s x%d = %s\n", i+1, l.Name, l.Quantity, money(l.Total()))
	}
	return b.String()
}
