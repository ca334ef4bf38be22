package checkout

import "errors"

var (
	ErrInvalidStateTransition = errors.New("checkout: invalid state transition")
	ErrCartEmpty              = errors.New("checkout: cart is empty")
	ErrShippingIncomplete     = errors.New("checkout: shipping address or contact incomplete")
	ErrPaymentNotReady        = errors.New("checkout: payment not authorized")
	ErrConfirmationRequired   = errors.New("checkout: review must be confirmed via submit")
)

type Step int

const (
	StepCart Step = iota
	StepShipping
	StepPayment
	StepReview
	StepSubmitting
	StepCompleted
)

func (s Step) String() string {
	switch s {
	case StepCart:
		return "cart"
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	case StepReview:
		return "review"
	case StepSubmitting:
		return "submitting"
	case StepCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// stepState implements the state pattern for checkout step transitions.
// The set of states is closed; there is no reachable "unknown step".
type stepState interface {
	Step() Step
	Advance(c *Checkout) (stepState, error)
	Back(c *Checkout) (stepState, error)
}

type cartState struct{}

func (cartState) Step() Step { return StepCart }

func (cartState) Advance(c *Checkout) (stepState, error) {
	if c.Cart.IsEmpty() {
		return nil, ErrCartEmpty
	}
	return shippingState{}, nil
}

func (cartState) Back(*Checkout) (stepState, error) {
	return nil, ErrInvalidStateTransition
}

type shippingState struct{}

func (shippingState) Step() Step { return StepShipping }

func (shippingState) Advance(c *Checkout) (stepState, error) {
	if !c.shippingComplete() {
		return nil, ErrShippingIncomplete
	}
	return paymentState{}, nil
}

func (shippingState) Back(*Checkout) (stepState, error) {
	return cartState{}, nil
}

type paymentState struct{}

func (paymentState) Step() Step { return StepPayment }

func (paymentState) Advance(c *Checkout) (stepState, error) {
	if !c.paymentReady() {
		return nil, ErrPaymentNotReady
	}
	return reviewState{}, nil
}

func (paymentState) Back(*Checkout) (stepState, error) {
	return shippingState{}, nil
}

type reviewState struct{}

func (reviewState) Step() Step { return StepReview }

func (reviewState) Advance(*Checkout) (stepState, error) {
	return nil, ErrConfirmationRequired
}

func (reviewState) Back(*Checkout) (stepState, error) {
	return paymentState{}, nil
}

type submittingState struct{}

func (submittingState) Step() Step { return StepSubmitting }

func (submittingState) Advance(*Checkout) (stepState, error) {
	return nil, ErrInvalidStateTransition
}

// Back is never permitted while a submission is in flight.
func (submittingState) Back(*Checkout) (stepState, error) {
	return nil, ErrInvalidStateTransition
}

type completedState struct{}

func (completedState) Step() Step { return StepCompleted }

func (completedState) Advance(*Checkout) (stepState, error) {
	return nil, ErrInvalidStateTransition
}

func (completedState) Back(*Checkout) (stepState, error) {
	return nil, ErrInvalidStateTransition
}
