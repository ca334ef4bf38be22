// Package payment models the payment sub-flow of a single checkout:
// available methods, the server-side intent, and the phase transitions
// the authorization flow is allowed to make.
package payment

import "errors"

var (
	ErrInvalidPhaseTransition = errors.New("payment: invalid phase transition")
	ErrAuthorizationInFlight  = errors.New("payment: authorization already in flight")
	ErrNoMethodSelected       = errors.New("payment: no method selected")
)

type IntentStatus string

const (
	IntentPending   IntentStatus = "pending"
	IntentSucceeded IntentStatus = "succeeded"
	IntentFailed    IntentStatus = "failed"
)

// Method is a payment option offered by the backend. Deferred methods
// (cash on delivery and the like) settle after fulfilment and need no
// intent before order submission.
type Method struct {
	ID       string
	Name     string
	Deferred bool
}

// Intent is a server-tracked handle for an authorized-but-not-finalized
// payment. The flow owns it until the order consumes it or the
// checkout discards it.
type Intent struct {
	ID       string
	Amount   int64
	Currency string
	Status   IntentStatus
}

// Phase is the sub-flow state for one checkout's payment step.
type Phase int

const (
	PhaseNoMethod Phase = iota
	PhaseMethodSelected
	PhaseAuthorizing
	PhaseAuthorized
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseNoMethod:
		return "no_method"
	case PhaseMethodSelected:
		return "method_selected"
	case PhaseAuthorizing:
		return "authorizing"
	case PhaseAuthorized:
		return "authorized"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Select is valid from any settled phase; it discards a prior failure
// or authorization and returns to MethodSelected.
func (p Phase) Select() (Phase, error) {
	if p == PhaseAuthorizing {
		return p, ErrAuthorizationInFlight
	}
	return PhaseMethodSelected, nil
}

// BeginAuthorize gates entry into Authorizing. Re-entry while a call is
// in flight is a phase error, not a queued request.
func (p Phase) BeginAuthorize() (Phase, error) {
	switch p {
	case PhaseAuthorizing:
		return p, ErrAuthorizationInFlight
	case PhaseMethodSelected, PhaseFailed:
		return PhaseAuthorizing, nil
	case PhaseNoMethod:
		return p, ErrNoMethodSelected
	default:
		return p, ErrInvalidPhaseTransition
	}
}

// FinishAuthorize resolves an in-flight authorization.
func (p Phase) FinishAuthorize(ok bool) (Phase, error) {
	if p != PhaseAuthorizing {
		return p, ErrInvalidPhaseTransition
	}
	if ok {
		return PhaseAuthorized, nil
	}
	return PhaseFailed, nil
}
