package checkout

import "time"

// View is the client-observable snapshot the UI layer renders. It is a
// copy; mutating it changes nothing.
type View struct {
	Step       string `json:"step"`
	FailedStep string `json:"failed_step,omitempty"`
	CanAdvance bool   `json:"can_advance"`
	CanGoBack  bool   `json:"can_go_back"`
	Busy       bool   `json:"busy"`

	Items      []ItemView `json:"items"`
	TotalItems int        `json:"total_items"`
	TotalPrice int64      `json:"total_price"`

	DeliveryMethodID  string     `json:"delivery_method_id,omitempty"`
	DeliveryCost      *int64     `json:"delivery_cost,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`

	PaymentMethodID string `json:"payment_method_id,omitempty"`
	PaymentPhase    string `json:"payment_phase"`
	PaymentIntentID string `json:"payment_intent_id,omitempty"`

	PayableTotal int64  `json:"payable_total"`
	Currency     string `json:"currency"`
}

type ItemView struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

func (o *Orchestrator) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()

	v := View{
		Step:         o.co.CurrentStep().String(),
		CanAdvance:   !o.busy && o.co.CanAdvance(),
		CanGoBack:    !o.busy && o.co.CanGoBack(),
		Busy:         o.busy,
		TotalItems:   o.co.Cart.TotalItems(),
		TotalPrice:   o.co.Cart.TotalPrice(),
		PayableTotal: o.co.PayableTotal(),
		Currency:     o.co.Currency,
		PaymentPhase: o.payments.Phase().String(),
	}
	if step, failed := o.co.FailedStep(); failed {
		v.FailedStep = step.String()
	}
	for _, li := range o.co.Cart.Items() {
		v.Items = append(v.Items, ItemView{
			ProductID: li.ProductID,
			Name:      li.Name,
			UnitPrice: li.UnitPrice,
			Quantity:  li.Quantity,
			Subtotal:  li.Subtotal(),
		})
	}
	v.DeliveryMethodID = o.co.DeliveryMethodID
	if o.co.Quote != nil {
		cost := o.co.Quote.Cost
		eta := o.co.Quote.EstimatedDate
		v.DeliveryCost = &cost
		v.EstimatedDelivery = &eta
	}
	v.PaymentMethodID = o.co.PaymentMethodID
	if o.co.Intent != nil {
		v.PaymentIntentID = o.co.Intent.ID
	}
	return v
}
