// Package payment drives the payment sub-flow of one checkout: method
// listing (cached per payment-step entry), method selection, and
// single-flight intent authorization.
package payment

import (
	"context"
	"sync"

	"go.uber.org/zap"

	dompayment "github.com/nvalera/storefront-checkout/internal/domain/payment"
)

// Gateway is the outbound port to the backend payment endpoints.
type Gateway interface {
	Methods(ctx context.Context) ([]dompayment.Method, error)
	CreateIntent(ctx context.Context, methodID string, amount int64, currency string) (dompayment.Intent, error)
}

type Flow struct {
	gw  Gateway
	log *zap.Logger

	mu            sync.Mutex
	phase         dompayment.Phase
	methods       []dompayment.Method
	methodsLoaded bool
	selected      *dompayment.Method
	intent        *dompayment.Intent
}

func NewFlow(gw Gateway, logger *zap.Logger) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{
		gw:  gw,
		log: logger.With(zap.String("component", "payment_flow")),
	}
}

// Methods returns the available payment methods, fetching once per
// payment-step entry. ClearMethodCache drops the cache when the step is
// left.
func (f *Flow) Methods(ctx context.Context) ([]dompayment.Method, error) {
	f.mu.Lock()
	if f.methodsLoaded {
		cached := append([]dompayment.Method(nil), f.methods...)
		f.mu.Unlock()
		return cached, nil
	}
	f.mu.Unlock()

	methods, err := f.gw.Methods(ctx)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.methods = methods
	f.methodsLoaded = true
	f.mu.Unlock()
	return append([]dompayment.Method(nil), methods...), nil
}

// ClearMethodCache forgets the fetched methods; the next entry into the
// payment step refetches.
func (f *Flow) ClearMethodCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.methods = nil
	f.methodsLoaded = false
}

// Select picks a method from the cached listing. Selecting drops any
// prior intent or failure.
func (f *Flow) Select(methodID string) (dompayment.Method, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var found *dompayment.Method
	for i := range f.methods {
		if f.methods[i].ID == methodID {
			found = &f.methods[i]
			break
		}
	}
	if found == nil {
		return dompayment.Method{}, dompayment.ErrNoMethodSelected
	}

	next, err := f.phase.Select()
	if err != nil {
		return dompayment.Method{}, err
	}
	f.phase = next
	f.selected = found
	f.intent = nil
	return *found, nil
}

// Authorize creates a payment intent for amount/currency. A second call
// while one is in flight is rejected before any network traffic. The
// backend call runs detached from the caller's cancellation: an
// in-flight authorization must complete so its result can be reconciled
// rather than orphaning a charge.
func (f *Flow) Authorize(ctx context.Context, amount int64, currency string) (*dompayment.Intent, error) {
	f.mu.Lock()
	next, err := f.phase.BeginAuthorize()
	if err != nil {
		f.mu.Unlock()
		return nil, err
	}
	methodID := f.selected.ID
	f.phase = next
	f.mu.Unlock()

	intent, gwErr := f.gw.CreateIntent(context.WithoutCancel(ctx), methodID, amount, currency)

	f.mu.Lock()
	defer f.mu.Unlock()
	ok := gwErr == nil && intent.Status == dompayment.IntentSucceeded
	if settled, terr := f.phase.FinishAuthorize(ok); terr == nil {
		f.phase = settled
	}
	if gwErr != nil {
		f.log.Warn("authorize_failed", zap.String("method_id", methodID), zap.Error(gwErr))
		return nil, gwErr
	}
	if ok {
		f.intent = &intent
	}
	return &intent, nil
}

func (f *Flow) Phase() dompayment.Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase
}

func (f *Flow) Intent() *dompayment.Intent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.intent == nil {
		return nil
	}
	cp := *f.intent
	return &cp
}

// Invalidate drops an authorized intent whose amount no longer matches
// the payable total; the selected method is kept.
func (f *Flow) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intent = nil
	if f.phase == dompayment.PhaseAuthorized || f.phase == dompayment.PhaseFailed {
		f.phase = dompayment.PhaseMethodSelected
	}
}

// Reset clears the whole sub-flow: phase, method cache, selection and
// intent. Used after order completion and on session end.
func (f *Flow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.phase = dompayment.PhaseNoMethod
	f.methods = nil
	f.methodsLoaded = false
	f.selected = nil
	f.intent = nil
}
