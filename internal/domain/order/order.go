// Package order defines the order draft assembled at submission time
// and the created order the backend returns.
package order

import (
	"time"

	"github.com/nvalera/storefront-checkout/internal/domain/cart"
	"github.com/nvalera/storefront-checkout/internal/domain/delivery"
	"github.com/nvalera/storefront-checkout/internal/domain/shipping"
)

// Item is a frozen line-item snapshot. Later cart mutations never touch
// an already-built draft.
type Item struct {
	ProductID string
	Name      string
	UnitPrice int64
	Quantity  int
}

// Draft is everything the backend needs to create an order. Built once
// per submit from the live checkout state.
type Draft struct {
	Items           []Item
	ShippingAddress shipping.Address
	Contact         shipping.Contact
	DeliveryMethod  string
	DeliveryCost    int64
	PaymentIntentID string
	PaymentMethodID string
	TotalAmount     int64
	Currency        string
}

// Order is the terminal artifact of the pipeline; the client only ever
// holds what the server returned.
type Order struct {
	ID        string
	Status    string
	Total     int64
	CreatedAt time.Time
}

// NewDraft snapshots the cart items and combines them with the checkout
// sub-state. TotalAmount covers items plus delivery.
func NewDraft(items []cart.LineItem, addr shipping.Address, contact shipping.Contact, quote *delivery.Quote, intentID, methodID, currency string) Draft {
	d := Draft{
		ShippingAddress: addr,
		Contact:         contact,
		PaymentIntentID: intentID,
		PaymentMethodID: methodID,
		Currency:        currency,
	}
	for _, li := range items {
		d.Items = append(d.Items, Item{
			ProductID: li.ProductID,
			Name:      li.Name,
			UnitPrice: li.UnitPrice,
			Quantity:  li.Quantity,
		})
		d.TotalAmount += li.Subtotal()
	}
	if quote != nil {
		d.DeliveryMethod = quote.MethodID
		d.DeliveryCost = quote.Cost
		d.TotalAmount += quote.Cost
	}
	return d
}
