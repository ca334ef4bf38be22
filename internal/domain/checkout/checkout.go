// Package checkout holds the per-session checkout aggregate: the cart
// ledger, the captured shipping data, the delivery and payment
// sub-state, and the step state machine that gates progress through
// Cart -> Shipping -> Payment -> Review -> Submitting -> Completed.
package checkout

import (
	"github.com/nvalera/storefront-checkout/internal/domain/cart"
	"github.com/nvalera/storefront-checkout/internal/domain/delivery"
	"github.com/nvalera/storefront-checkout/internal/domain/payment"
	"github.com/nvalera/storefront-checkout/internal/domain/shipping"
)

// Checkout is the aggregate for one shopper's checkout attempt. It is
// not safe for concurrent use; the owning orchestrator serializes
// access.
type Checkout struct {
	Cart     *cart.Cart
	Currency string

	Address *shipping.Address
	Contact *shipping.Contact

	DeliveryMethodID string
	Quote            *delivery.Quote

	PaymentMethodID string
	DeferredPayment bool
	Intent          *payment.Intent

	state      stepState
	failedStep Step
	failed     bool
}

func New(currency string) *Checkout {
	return &Checkout{
		Cart:     cart.New(),
		Currency: currency,
		state:    cartState{},
	}
}

func (c *Checkout) CurrentStep() Step { return c.state.Step() }

// FailedStep reports the step the last failure belongs to. The second
// return is false when no failure is pending.
func (c *Checkout) FailedStep() (Step, bool) { return c.failedStep, c.failed }

// Advance moves to the next step when the current step's guard holds.
// The step never changes on a guard violation.
func (c *Checkout) Advance() error {
	next, err := c.state.Advance(c)
	if err != nil {
		return err
	}
	c.state = next
	c.failed = false
	return nil
}

// Back returns to the previous step. Data entered in later steps is
// kept, so going back and forward does not force re-entry.
func (c *Checkout) Back() error {
	prev, err := c.state.Back(c)
	if err != nil {
		return err
	}
	c.state = prev
	return nil
}

// CanAdvance reports whether the current step's guard is satisfied,
// without moving.
func (c *Checkout) CanAdvance() bool {
	_, err := c.state.Advance(c)
	return err == nil
}

func (c *Checkout) CanGoBack() bool {
	_, err := c.state.Back(c)
	return err == nil
}

// BeginSubmit enters Submitting from a confirmed Review. Confirmation
// is the call itself; no further validation happens here.
func (c *Checkout) BeginSubmit() error {
	if c.state.Step() != StepReview {
		return ErrInvalidStateTransition
	}
	c.state = submittingState{}
	return nil
}

// CompleteSubmit records a server-acknowledged order: the cart is
// cleared exactly once, atomically with the transition to Completed,
// and the payment/delivery sub-state is discarded.
func (c *Checkout) CompleteSubmit() error {
	if c.state.Step() != StepSubmitting {
		return ErrInvalidStateTransition
	}
	c.Cart.Clear()
	c.Quote = nil
	c.Intent = nil
	c.DeliveryMethodID = ""
	c.PaymentMethodID = ""
	c.DeferredPayment = false
	c.failed = false
	c.state = completedState{}
	return nil
}

// FailSubmit returns to Review with the cart and the authorized intent
// intact, so a retried submission reuses the existing intent instead of
// re-authorizing.
func (c *Checkout) FailSubmit() error {
	if c.state.Step() != StepSubmitting {
		return ErrInvalidStateTransition
	}
	c.failedStep = StepSubmitting
	c.failed = true
	c.state = reviewState{}
	return nil
}

// Fail records a step-local failure without moving the step.
func (c *Checkout) Fail(step Step) {
	c.failedStep = step
	c.failed = true
}

// Abort rewinds to the cart step after the session ends. The cart and
// the captured shipping data survive re-authentication; the payment and
// delivery sub-state must be re-derived and is dropped.
func (c *Checkout) Abort() {
	c.Quote = nil
	c.Intent = nil
	c.DeliveryMethodID = ""
	c.PaymentMethodID = ""
	c.DeferredPayment = false
	c.state = cartState{}
}

// SetAddress captures the shipping address and invalidates any quote
// derived from the previous one.
func (c *Checkout) SetAddress(a shipping.Address) {
	c.Address = &a
	c.Quote = nil
}

func (c *Checkout) SetContact(ct shipping.Contact) {
	c.Contact = &ct
}

// SelectDeliveryMethod invalidates the quote when the method changes.
func (c *Checkout) SelectDeliveryMethod(methodID string) {
	if c.DeliveryMethodID != methodID {
		c.Quote = nil
	}
	c.DeliveryMethodID = methodID
}

func (c *Checkout) ApplyQuote(q delivery.Quote) {
	c.Quote = &q
}

// SelectPaymentMethod records the chosen method. Changing methods drops
// any intent authorized for the old one.
func (c *Checkout) SelectPaymentMethod(m payment.Method) {
	if c.PaymentMethodID != m.ID {
		c.Intent = nil
	}
	c.PaymentMethodID = m.ID
	c.DeferredPayment = m.Deferred
}

func (c *Checkout) AttachIntent(it payment.Intent) {
	c.Intent = &it
}

// PayableTotal is the amount a payment intent must cover: cart total
// plus the quoted delivery cost.
func (c *Checkout) PayableTotal() int64 {
	total := c.Cart.TotalPrice()
	if c.Quote != nil {
		total += c.Quote.Cost
	}
	return total
}

// SyncIntent enforces the recomputation rule: an intent authorized for
// an amount other than the current payable total is invalidated, and a
// checkout already past the payment step is forced back to it. Returns
// true when the intent was invalidated.
func (c *Checkout) SyncIntent() bool {
	if c.Intent == nil || c.Intent.Status != payment.IntentSucceeded {
		return false
	}
	if c.Intent.Amount == c.PayableTotal() {
		return false
	}
	c.Intent = nil
	if c.state.Step() == StepReview {
		c.state = paymentState{}
	}
	return true
}

func (c *Checkout) shippingComplete() bool {
	if c.Address == nil || c.Contact == nil {
		return false
	}
	return c.Address.Validate() == nil && c.Contact.Validate() == nil
}

func (c *Checkout) paymentReady() bool {
	if c.DeferredPayment && c.PaymentMethodID != "" {
		return true
	}
	return c.Intent != nil &&
		c.Intent.Status == payment.IntentSucceeded &&
		c.Intent.Amount == c.PayableTotal()
}
