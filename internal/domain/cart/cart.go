// Package cart holds the in-memory cart ledger: line items keyed by
// product, quantities clamped to stock, totals derived on read.
package cart

import "errors"

var (
	ErrNotFound        = errors.New("cart: line item not found")
	ErrInvalidQuantity = errors.New("cart: quantity must be greater than zero")
	ErrInvalidProduct  = errors.New("cart: product id and positive unit price are required")
)

// Product is the slice of catalog data the ledger needs. The catalog
// itself is an external collaborator; the ledger never fetches it.
type Product struct {
	ID        string
	Name      string
	UnitPrice int64 // minor currency units
	Stock     int
}

// LineItem is one product entry in the cart. Quantity always satisfies
// 1 <= Quantity <= StockLimit.
type LineItem struct {
	ProductID  string
	Name       string
	UnitPrice  int64
	Quantity   int
	StockLimit int
}

func (li LineItem) Subtotal() int64 {
	return li.UnitPrice * int64(li.Quantity)
}

// Cart is an ordered collection of line items. It is not safe for
// concurrent use; the owning session serializes access.
type Cart struct {
	items []LineItem
}

func New() *Cart {
	return &Cart{}
}

// Add inserts a new line item or increments an existing one. Quantities
// above the stock limit clamp rather than fail.
func (c *Cart) Add(p Product, quantity int) error {
	if p.ID == "" || p.UnitPrice < 0 {
		return ErrInvalidProduct
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if p.Stock < 1 {
		return ErrInvalidProduct
	}

	for i := range c.items {
		if c.items[i].ProductID == p.ID {
			c.items[i].Quantity = clamp(c.items[i].Quantity+quantity, 1, c.items[i].StockLimit)
			return nil
		}
	}

	c.items = append(c.items, LineItem{
		ProductID:  p.ID,
		Name:       p.Name,
		UnitPrice:  p.UnitPrice,
		Quantity:   clamp(quantity, 1, p.Stock),
		StockLimit: p.Stock,
	})
	return nil
}

// Remove deletes the line item for productID.
func (c *Cart) Remove(productID string) error {
	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// SetQuantity clamps quantity into [1, stockLimit]. A quantity of zero
// or below is a removal, never a zero-quantity line.
func (c *Cart) SetQuantity(productID string, quantity int) error {
	if quantity <= 0 {
		return c.Remove(productID)
	}
	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items[i].Quantity = clamp(quantity, 1, c.items[i].StockLimit)
			return nil
		}
	}
	return ErrNotFound
}

// Clear empties the ledger. Called only after a confirmed order.
func (c *Cart) Clear() {
	c.items = nil
}

func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// Items returns a copy of the line items so callers cannot mutate the
// ledger behind its back.
func (c *Cart) Items() []LineItem {
	out := make([]LineItem, len(c.items))
	copy(out, c.items)
	return out
}

// TotalItems is the sum of quantities, derived on every call.
func (c *Cart) TotalItems() int {
	total := 0
	for _, li := range c.items {
		total += li.Quantity
	}
	return total
}

// TotalPrice is the sum of unit price times quantity, derived on every call.
func (c *Cart) TotalPrice() int64 {
	var total int64
	for _, li := range c.items {
		total += li.Subtotal()
	}
	return total
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
