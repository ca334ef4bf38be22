// Package delivery resolves delivery quotes for a checkout session.
// Quote calls race by design: the shopper can switch methods while a
// quote is still in flight, so resolution is last-write-wins — a newer
// call supersedes and cancels any older one, and a stale result is
// discarded, never applied.
package delivery

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	domdelivery "github.com/nvalera/storefront-checkout/internal/domain/delivery"
	"github.com/nvalera/storefront-checkout/internal/domain/shipping"
)

// ErrSuperseded marks a quote that resolved after a newer request was
// issued. Callers drop it silently.
var ErrSuperseded = errors.New("delivery: quote superseded by a newer request")

// Gateway is the outbound port to the backend delivery endpoints.
type Gateway interface {
	Methods(ctx context.Context) ([]domdelivery.Method, error)
	Calculate(ctx context.Context, methodID string, addr shipping.Address) (domdelivery.Quote, error)
}

type Resolver struct {
	gw  Gateway
	log *zap.Logger

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

func NewResolver(gw Gateway, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		gw:  gw,
		log: logger.With(zap.String("component", "delivery_resolver")),
	}
}

func (r *Resolver) Methods(ctx context.Context) ([]domdelivery.Method, error) {
	return r.gw.Methods(ctx)
}

// Quote computes cost and ETA for methodID to addr. The address must be
// structurally valid; callers validate before invoking.
func (r *Resolver) Quote(ctx context.Context, methodID string, addr shipping.Address) (*domdelivery.Quote, error) {
	r.mu.Lock()
	r.gen++
	mine := r.gen
	if r.cancel != nil {
		r.cancel()
	}
	qctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()

	quote, err := r.gw.Calculate(qctx, methodID, addr)

	r.mu.Lock()
	defer r.mu.Unlock()
	if mine != r.gen {
		cancel()
		r.log.Debug("quote_superseded", zap.String("method_id", methodID))
		return nil, ErrSuperseded
	}
	r.cancel = nil
	cancel()
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

// Cancel discards any in-flight quote. Used on checkout abandonment;
// the eventual result resolves as superseded.
func (r *Resolver) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}
