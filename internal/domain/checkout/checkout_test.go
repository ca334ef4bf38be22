package checkout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nvalera/storefront-checkout/internal/domain/cart"
	"github.com/nvalera/storefront-checkout/internal/domain/delivery"
	"github.com/nvalera/storefront-checkout/internal/domain/payment"
	"github.com/nvalera/storefront-checkout/internal/domain/shipping"
)

func testProduct() cart.Product {
	return cart.Product{ID: "prod-1", Name: "Widget", UnitPrice: 1000, Stock: 10}
}

func testAddress() shipping.Address {
	return shipping.Address{
		Street:     "12 Harbor Lane",
		City:       "Rotterdam",
		PostalCode: "3011 AB",
		Country:    "NL",
	}
}

func testContact() shipping.Contact {
	return shipping.Contact{Name: "Ada Vos", Email: "ada@example.com", Phone: "+31612345678"}
}

// atReview builds a checkout advanced to the review step with an
// authorized intent matching the payable total.
func atReview(t *testing.T) *Checkout {
	t.Helper()
	c := New("USD")
	require.NoError(t, c.Cart.Add(testProduct(), 2))
	require.NoError(t, c.Advance())

	c.SetAddress(testAddress())
	c.SetContact(testContact())
	require.NoError(t, c.Advance())

	c.SelectDeliveryMethod("standard")
	c.ApplyQuote(delivery.Quote{MethodID: "standard", Cost: 500, EstimatedDate: time.Now().AddDate(0, 0, 3)})
	c.SelectPaymentMethod(payment.Method{ID: "card", Name: "Card"})
	c.AttachIntent(payment.Intent{ID: "pi_1", Amount: c.PayableTotal(), Currency: "USD", Status: payment.IntentSucceeded})
	require.NoError(t, c.Advance())
	require.Equal(t, StepReview, c.CurrentStep())
	return c
}

func TestAdvanceBlockedOnEmptyCart(t *testing.T) {
	c := New("USD")
	require.ErrorIs(t, c.Advance(), ErrCartEmpty)
	require.Equal(t, StepCart, c.CurrentStep())
	require.False(t, c.CanAdvance())
}

func TestAdvanceBlockedOnIncompleteShipping(t *testing.T) {
	c := New("USD")
	require.NoError(t, c.Cart.Add(testProduct(), 1))
	require.NoError(t, c.Advance())

	require.ErrorIs(t, c.Advance(), ErrShippingIncomplete)

	c.SetAddress(shipping.Address{Street: "x"}) // structurally invalid
	c.SetContact(testContact())
	require.ErrorIs(t, c.Advance(), ErrShippingIncomplete)
	require.Equal(t, StepShipping, c.CurrentStep())
}

func TestAdvanceBlockedWithoutAuthorizedPayment(t *testing.T) {
	c := New("USD")
	require.NoError(t, c.Cart.Add(testProduct(), 1))
	require.NoError(t, c.Advance())
	c.SetAddress(testAddress())
	c.SetContact(testContact())
	require.NoError(t, c.Advance())

	require.ErrorIs(t, c.Advance(), ErrPaymentNotReady)

	// An intent for the wrong amount does not satisfy the guard.
	c.AttachIntent(payment.Intent{ID: "pi_1", Amount: 1, Status: payment.IntentSucceeded})
	require.ErrorIs(t, c.Advance(), ErrPaymentNotReady)
}

func TestDeferredMethodSkipsAuthorization(t *testing.T) {
	c := New("USD")
	require.NoError(t, c.Cart.Add(testProduct(), 1))
	require.NoError(t, c.Advance())
	c.SetAddress(testAddress())
	c.SetContact(testContact())
	require.NoError(t, c.Advance())

	c.SelectPaymentMethod(payment.Method{ID: "cod", Name: "Cash on delivery", Deferred: true})
	require.NoError(t, c.Advance())
	require.Equal(t, StepReview, c.CurrentStep())
}

func TestBackPreservesLaterStepData(t *testing.T) {
	c := atReview(t)

	require.NoError(t, c.Back())
	require.NoError(t, c.Back())
	require.Equal(t, StepShipping, c.CurrentStep())

	require.NotNil(t, c.Address)
	require.NotNil(t, c.Quote)
	require.NotNil(t, c.Intent)
	require.Equal(t, "card", c.PaymentMethodID)

	// Forward again without re-entering anything.
	require.NoError(t, c.Advance())
	require.NoError(t, c.Advance())
	require.Equal(t, StepReview, c.CurrentStep())
}

func TestBackFromCartRejected(t *testing.T) {
	c := New("USD")
	require.ErrorIs(t, c.Back(), ErrInvalidStateTransition)
	require.False(t, c.CanGoBack())
}

func TestReviewAdvanceRequiresSubmit(t *testing.T) {
	c := atReview(t)
	require.ErrorIs(t, c.Advance(), ErrConfirmationRequired)
	require.Equal(t, StepReview, c.CurrentStep())
}

func TestSubmittingBlocksNavigation(t *testing.T) {
	c := atReview(t)
	require.NoError(t, c.BeginSubmit())
	require.Equal(t, StepSubmitting, c.CurrentStep())

	require.ErrorIs(t, c.Advance(), ErrInvalidStateTransition)
	require.ErrorIs(t, c.Back(), ErrInvalidStateTransition)
}

func TestBeginSubmitOnlyFromReview(t *testing.T) {
	c := New("USD")
	require.ErrorIs(t, c.BeginSubmit(), ErrInvalidStateTransition)
}

func TestCompleteSubmitClearsCartOnce(t *testing.T) {
	c := atReview(t)
	require.NoError(t, c.BeginSubmit())
	require.NoError(t, c.CompleteSubmit())

	require.Equal(t, StepCompleted, c.CurrentStep())
	require.True(t, c.Cart.IsEmpty())
	require.Nil(t, c.Intent)
	require.Nil(t, c.Quote)

	require.ErrorIs(t, c.CompleteSubmit(), ErrInvalidStateTransition)
}

func TestFailSubmitKeepsCartAndIntent(t *testing.T) {
	c := atReview(t)
	require.NoError(t, c.BeginSubmit())
	require.NoError(t, c.FailSubmit())

	require.Equal(t, StepReview, c.CurrentStep())
	require.False(t, c.Cart.IsEmpty())
	require.NotNil(t, c.Intent)

	step, failed := c.FailedStep()
	require.True(t, failed)
	require.Equal(t, StepSubmitting, step)

	// The retry path goes straight back through BeginSubmit.
	require.NoError(t, c.BeginSubmit())
}

func TestFailedFlagClearsOnAdvance(t *testing.T) {
	c := New("USD")
	c.Fail(StepCart)
	_, failed := c.FailedStep()
	require.True(t, failed)

	require.NoError(t, c.Cart.Add(testProduct(), 1))
	require.NoError(t, c.Advance())
	_, failed = c.FailedStep()
	require.False(t, failed)
}

func TestAddressChangeInvalidatesQuote(t *testing.T) {
	c := atReview(t)
	require.NoError(t, c.Back())
	require.NoError(t, c.Back())

	a := testAddress()
	a.City = "Utrecht"
	c.SetAddress(a)
	require.Nil(t, c.Quote)
}

func TestDeliveryMethodChangeInvalidatesQuote(t *testing.T) {
	c := atReview(t)
	c.SelectDeliveryMethod("express")
	require.Nil(t, c.Quote)

	c.ApplyQuote(delivery.Quote{MethodID: "express", Cost: 900})
	c.SelectDeliveryMethod("express")
	require.NotNil(t, c.Quote, "reselecting the same method keeps the quote")
}

func TestPaymentMethodChangeDropsIntent(t *testing.T) {
	c := atReview(t)
	c.SelectPaymentMethod(payment.Method{ID: "bank", Name: "Bank transfer"})
	require.Nil(t, c.Intent)
}

func TestSyncIntentInvalidatesOnAmountChange(t *testing.T) {
	c := atReview(t)

	// Cart mutation changes the payable total out from under the
	// authorized intent.
	require.NoError(t, c.Cart.Add(testProduct(), 1))
	require.True(t, c.SyncIntent())

	require.Nil(t, c.Intent)
	require.Equal(t, StepPayment, c.CurrentStep())

	// Idempotent once the intent is gone.
	require.False(t, c.SyncIntent())
}

func TestSyncIntentNoopWhenAmountMatches(t *testing.T) {
	c := atReview(t)
	require.False(t, c.SyncIntent())
	require.NotNil(t, c.Intent)
	require.Equal(t, StepReview, c.CurrentStep())
}

func TestPayableTotalIncludesDeliveryCost(t *testing.T) {
	c := New("USD")
	require.NoError(t, c.Cart.Add(testProduct(), 2))
	require.Equal(t, int64(2000), c.PayableTotal())

	c.ApplyQuote(delivery.Quote{MethodID: "standard", Cost: 500})
	require.Equal(t, int64(2500), c.PayableTotal())
}

func TestAbortKeepsCartDropsSubState(t *testing.T) {
	c := atReview(t)
	c.Abort()

	require.Equal(t, StepCart, c.CurrentStep())
	require.False(t, c.Cart.IsEmpty())
	require.NotNil(t, c.Address)
	require.Nil(t, c.Quote)
	require.Nil(t, c.Intent)
	require.Empty(t, c.DeliveryMethodID)
	require.Empty(t, c.PaymentMethodID)
}
