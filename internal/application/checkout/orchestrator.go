// Package checkout drives a shopper through the order-placement
// pipeline: it owns the per-session checkout aggregate, coordinates the
// delivery and payment sub-flows, and performs the final order
// submission through the authenticated backend client.
package checkout

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	appdelivery "github.com/nvalera/storefront-checkout/internal/application/delivery"
	apppayment "github.com/nvalera/storefront-checkout/internal/application/payment"
	"github.com/nvalera/storefront-checkout/internal/domain/cart"
	domcheckout "github.com/nvalera/storefront-checkout/internal/domain/checkout"
	domdelivery "github.com/nvalera/storefront-checkout/internal/domain/delivery"
	dompayment "github.com/nvalera/storefront-checkout/internal/domain/payment"
	"github.com/nvalera/storefront-checkout/internal/domain/order"
	"github.com/nvalera/storefront-checkout/internal/domain/shipping"
	"github.com/nvalera/storefront-checkout/internal/infrastructure/observability"
	"github.com/nvalera/storefront-checkout/internal/pkg/apierror"
)

// ErrTransitionInFlight is returned while a previous asynchronous step
// transition (authorization or submission) is still unresolved.
var ErrTransitionInFlight = errors.New("checkout: a transition is already in flight")

type IDGenerator interface {
	NewID() string
}

// CatalogGateway supplies product price and stock data.
type CatalogGateway interface {
	Product(ctx context.Context, productID string) (cart.Product, error)
}

// OrderGateway creates the order server-side.
type OrderGateway interface {
	Create(ctx context.Context, draft order.Draft, idempotencyKey string) (order.Order, error)
}

// Orchestrator serializes all access to one shopper's checkout. Step
// transitions that suspend on the network set the busy gate; further
// transition requests are rejected until resolution.
type Orchestrator struct {
	mu   sync.Mutex
	busy bool

	co       *domcheckout.Checkout
	catalog  CatalogGateway
	orders   OrderGateway
	delivery *appdelivery.Resolver
	payments *apppayment.Flow
	ids      IDGenerator

	// idemKey is fixed for the lifetime of one checkout attempt so a
	// retried submission reuses the same key and the backend cannot
	// double-create the order.
	idemKey string

	log     *zap.Logger
	tracer  trace.Tracer
	metrics *observability.Metrics
}

func NewOrchestrator(
	catalog CatalogGateway,
	orders OrderGateway,
	resolver *appdelivery.Resolver,
	flow *apppayment.Flow,
	ids IDGenerator,
	metrics *observability.Metrics,
	logger *zap.Logger,
	currency string,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NopMetrics()
	}
	return &Orchestrator{
		co:       domcheckout.New(currency),
		catalog:  catalog,
		orders:   orders,
		delivery: resolver,
		payments: flow,
		ids:      ids,
		log:      logger.With(zap.String("component", "checkout_orchestrator")),
		tracer:   otel.Tracer("storefront-checkout/checkout"),
		metrics:  metrics,
	}
}

// --- cart ledger operations -------------------------------------------------

// AddItem resolves the product through the catalog and adds it to the
// cart. The ledger itself never touches the network. Cart mutations are
// rejected while a submission or authorization is unresolved: the
// snapshot sent to the backend must be the cart that gets cleared.
func (o *Orchestrator) AddItem(ctx context.Context, productID string, quantity int) error {
	product, err := o.catalog.Product(ctx, productID)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy {
		return ErrTransitionInFlight
	}
	if err := o.co.Cart.Add(product, quantity); err != nil {
		return err
	}
	o.afterCartChange()
	return nil
}

func (o *Orchestrator) RemoveItem(productID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy {
		return ErrTransitionInFlight
	}
	if err := o.co.Cart.Remove(productID); err != nil {
		return err
	}
	o.afterCartChange()
	return nil
}

func (o *Orchestrator) SetQuantity(productID string, quantity int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy {
		return ErrTransitionInFlight
	}
	if err := o.co.Cart.SetQuantity(productID, quantity); err != nil {
		return err
	}
	o.afterCartChange()
	return nil
}

// afterCartChange enforces the recomputation rule: a cart total change
// after authorization invalidates the intent and forces the checkout
// back to the payment step. Caller holds o.mu.
func (o *Orchestrator) afterCartChange() {
	if o.co.SyncIntent() {
		o.payments.Invalidate()
		o.log.Info("payment_intent_invalidated",
			zap.Int64("payable_total", o.co.PayableTotal()),
		)
	}
}

// --- shipping step ----------------------------------------------------------

// SetShippingAddress captures the address and returns structural field
// errors synchronously. The address is stored either way; the step
// guard blocks advancing until it validates.
func (o *Orchestrator) SetShippingAddress(addr shipping.Address) map[string]string {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.co.SetAddress(addr)
	return addr.Validate()
}

func (o *Orchestrator) SetContact(c shipping.Contact) map[string]string {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.co.SetContact(c)
	return c.Validate()
}

func (o *Orchestrator) DeliveryMethods(ctx context.Context) ([]domdelivery.Method, error) {
	return o.delivery.Methods(ctx)
}

// SelectDeliveryMethod records the method and resolves a fresh quote.
// A stale quote superseded by a newer selection is discarded: the
// caller sees ErrSuperseded and applies nothing.
func (o *Orchestrator) SelectDeliveryMethod(ctx context.Context, methodID string) (*domdelivery.Quote, error) {
	o.mu.Lock()
	if o.co.Address == nil || o.co.Address.Validate() != nil {
		o.mu.Unlock()
		return nil, apierror.Validation("a valid shipping address is required before quoting", nil)
	}
	o.co.SelectDeliveryMethod(methodID)
	addr := *o.co.Address
	o.mu.Unlock()

	quote, err := o.delivery.Quote(ctx, methodID, addr)
	if err != nil {
		if !errors.Is(err, appdelivery.ErrSuperseded) {
			o.mu.Lock()
			o.co.Fail(domcheckout.StepShipping)
			o.mu.Unlock()
		}
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	// Apply only if the shopper has not moved on to yet another method.
	if o.co.DeliveryMethodID != methodID {
		return nil, appdelivery.ErrSuperseded
	}
	o.co.ApplyQuote(*quote)
	o.afterCartChange()
	return quote, nil
}

// --- payment step -----------------------------------------------------------

func (o *Orchestrator) PaymentMethods(ctx context.Context) ([]dompayment.Method, error) {
	return o.payments.Methods(ctx)
}

func (o *Orchestrator) SelectPaymentMethod(methodID string) error {
	method, err := o.payments.Select(methodID)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.co.SelectPaymentMethod(method)
	return nil
}

// Authorize creates a payment intent for the current payable total. The
// busy gate and the flow's own phase guard together ensure at most one
// authorization is ever in flight.
func (o *Orchestrator) Authorize(ctx context.Context) (err error) {
	ctx, span := o.tracer.Start(ctx, "checkout.authorize")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return ErrTransitionInFlight
	}
	amount := o.co.PayableTotal()
	currency := o.co.Currency
	o.busy = true
	o.mu.Unlock()

	intent, authErr := o.payments.Authorize(ctx, amount, currency)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.busy = false

	if authErr != nil {
		if !errors.Is(authErr, dompayment.ErrAuthorizationInFlight) &&
			!errors.Is(authErr, dompayment.ErrNoMethodSelected) {
			o.co.Fail(domcheckout.StepPayment)
		}
		return authErr
	}
	if intent.Status != dompayment.IntentSucceeded {
		o.co.Fail(domcheckout.StepPayment)
		return apierror.New(apierror.KindPaymentDeclined, "payment authorization failed")
	}
	o.co.AttachIntent(*intent)
	span.SetAttributes(attribute.String("payment.intent_id", intent.ID))
	return nil
}

// --- step transitions -------------------------------------------------------

func (o *Orchestrator) Advance() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy {
		return ErrTransitionInFlight
	}

	from := o.co.CurrentStep()
	if err := o.co.Advance(); err != nil {
		return err
	}
	o.recordTransition(from, o.co.CurrentStep())
	return nil
}

func (o *Orchestrator) Back() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy {
		return ErrTransitionInFlight
	}

	from := o.co.CurrentStep()
	if err := o.co.Back(); err != nil {
		return err
	}
	o.recordTransition(from, o.co.CurrentStep())
	return nil
}

// recordTransition updates metrics and drops the payment method cache
// when the payment step is left. Caller holds o.mu.
func (o *Orchestrator) recordTransition(from, to domcheckout.Step) {
	if from == domcheckout.StepPayment && to != domcheckout.StepPayment {
		o.payments.ClearMethodCache()
	}
	o.metrics.CheckoutTransitions.WithLabelValues(from.String(), to.String()).Inc()
	o.log.Info("checkout_step",
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}

// Submit performs the confirmed order creation. On success the cart is
// cleared and the sub-flows reset; on failure the cart and the
// authorized intent survive so a retry reuses them instead of
// re-authorizing.
func (o *Orchestrator) Submit(ctx context.Context) (created order.Order, err error) {
	ctx, span := o.tracer.Start(ctx, "checkout.submit")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return order.Order{}, ErrTransitionInFlight
	}
	if err := o.co.BeginSubmit(); err != nil {
		o.mu.Unlock()
		return order.Order{}, err
	}
	if o.idemKey == "" {
		o.idemKey = o.ids.NewID()
	}
	key := o.idemKey

	var intentID string
	if o.co.Intent != nil {
		intentID = o.co.Intent.ID
	}
	var addr shipping.Address
	if o.co.Address != nil {
		addr = *o.co.Address
	}
	var contact shipping.Contact
	if o.co.Contact != nil {
		contact = *o.co.Contact
	}
	draft := order.NewDraft(o.co.Cart.Items(), addr, contact, o.co.Quote, intentID, o.co.PaymentMethodID, o.co.Currency)
	o.recordTransition(domcheckout.StepReview, domcheckout.StepSubmitting)
	o.busy = true
	o.mu.Unlock()

	span.SetAttributes(
		attribute.Int64("order.total_amount", draft.TotalAmount),
		attribute.String("order.idempotency_key", key),
	)

	// Submission runs to completion even if the shopper navigates
	// away; cancelling here could leave the backend with an order the
	// client never learned about.
	created, submitErr := o.orders.Create(context.WithoutCancel(ctx), draft, key)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.busy = false

	if submitErr != nil {
		if o.co.CurrentStep() == domcheckout.StepSubmitting {
			_ = o.co.FailSubmit()
			o.recordTransition(domcheckout.StepSubmitting, o.co.CurrentStep())
		}
		o.metrics.CheckoutSubmits.WithLabelValues("failure").Inc()
		o.log.Warn("order_submit_failed", zap.Error(submitErr))
		return order.Order{}, submitErr
	}

	if err := o.co.CompleteSubmit(); err != nil {
		// The session ended mid-flight and the aggregate was aborted;
		// the order still exists server-side, so report it.
		o.log.Warn("submit_completed_after_abort", zap.String("order_id", created.ID))
	} else {
		o.recordTransition(domcheckout.StepSubmitting, domcheckout.StepCompleted)
	}
	o.payments.Reset()
	o.idemKey = ""
	o.metrics.CheckoutSubmits.WithLabelValues("success").Inc()
	o.log.Info("order_created",
		zap.String("order_id", created.ID),
		zap.Int64("total", created.Total),
	)
	return created, nil
}

// Abandon discards the in-flight delivery quote, if any. Payment
// authorization and order submission are deliberately left to finish.
func (o *Orchestrator) Abandon() {
	o.delivery.Cancel()
}

// OnSessionEnd aborts the checkout after a failed credential refresh.
// The cart survives re-authentication; payment and delivery sub-state
// must be re-derived and is discarded.
func (o *Orchestrator) OnSessionEnd() {
	o.mu.Lock()
	o.co.Abort()
	o.mu.Unlock()
	o.payments.Reset()
	o.delivery.Cancel()
	o.log.Info("checkout_aborted_session_ended")
}
