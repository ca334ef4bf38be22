package payment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	dompayment "github.com/nvalera/storefront-checkout/internal/domain/payment"
)

type stubGateway struct {
	mu          sync.Mutex
	methodCalls int
	intentCalls int

	methods      []dompayment.Method
	createIntent func(ctx context.Context, methodID string, amount int64, currency string) (dompayment.Intent, error)
}

func (s *stubGateway) Methods(context.Context) ([]dompayment.Method, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methodCalls++
	return s.methods, nil
}

func (s *stubGateway) CreateIntent(ctx context.Context, methodID string, amount int64, currency string) (dompayment.Intent, error) {
	s.mu.Lock()
	s.intentCalls++
	s.mu.Unlock()
	return s.createIntent(ctx, methodID, amount, currency)
}

func newStub() *stubGateway {
	return &stubGateway{
		methods: []dompayment.Method{
			{ID: "card", Name: "Card"},
			{ID: "cod", Name: "Cash on delivery", Deferred: true},
		},
		createIntent: func(_ context.Context, _ string, amount int64, currency string) (dompayment.Intent, error) {
			return dompayment.Intent{ID: "pi_1", Amount: amount, Currency: currency, Status: dompayment.IntentSucceeded}, nil
		},
	}
}

func selectedFlow(t *testing.T, gw *stubGateway) *Flow {
	t.Helper()
	f := NewFlow(gw, zap.NewNop())
	_, err := f.Methods(context.Background())
	require.NoError(t, err)
	_, err = f.Select("card")
	require.NoError(t, err)
	return f
}

func TestMethodsFetchedOncePerEntry(t *testing.T) {
	gw := newStub()
	f := NewFlow(gw, zap.NewNop())

	_, err := f.Methods(context.Background())
	require.NoError(t, err)
	_, err = f.Methods(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, gw.methodCalls)

	f.ClearMethodCache()
	_, err = f.Methods(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, gw.methodCalls)
}

func TestSelectUnknownMethod(t *testing.T) {
	gw := newStub()
	f := NewFlow(gw, zap.NewNop())
	_, err := f.Methods(context.Background())
	require.NoError(t, err)

	_, err = f.Select("wire-transfer")
	require.ErrorIs(t, err, dompayment.ErrNoMethodSelected)
	require.Equal(t, dompayment.PhaseNoMethod, f.Phase())
}

func TestAuthorizeSucceeds(t *testing.T) {
	gw := newStub()
	f := selectedFlow(t, gw)

	it, err := f.Authorize(context.Background(), 2500, "USD")
	require.NoError(t, err)
	require.Equal(t, dompayment.IntentSucceeded, it.Status)
	require.Equal(t, int64(2500), it.Amount)
	require.Equal(t, dompayment.PhaseAuthorized, f.Phase())
	require.NotNil(t, f.Intent())
}

func TestAuthorizeDeclined(t *testing.T) {
	gw := newStub()
	gw.createIntent = func(_ context.Context, _ string, amount int64, currency string) (dompayment.Intent, error) {
		return dompayment.Intent{ID: "pi_1", Amount: amount, Currency: currency, Status: dompayment.IntentFailed}, nil
	}
	f := selectedFlow(t, gw)

	it, err := f.Authorize(context.Background(), 2500, "USD")
	require.NoError(t, err)
	require.Equal(t, dompayment.IntentFailed, it.Status)
	require.Equal(t, dompayment.PhaseFailed, f.Phase())
	require.Nil(t, f.Intent(), "declined intents are not retained")

	// A declined attempt may be retried without reselecting.
	gw.createIntent = newStub().createIntent
	_, err = f.Authorize(context.Background(), 2500, "USD")
	require.NoError(t, err)
	require.Equal(t, dompayment.PhaseAuthorized, f.Phase())
}

func TestAuthorizeSingleFlight(t *testing.T) {
	gw := newStub()
	started := make(chan struct{})
	release := make(chan struct{})
	gw.createIntent = func(_ context.Context, _ string, amount int64, currency string) (dompayment.Intent, error) {
		close(started)
		<-release
		return dompayment.Intent{ID: "pi_1", Amount: amount, Currency: currency, Status: dompayment.IntentSucceeded}, nil
	}
	f := selectedFlow(t, gw)

	firstResult := make(chan error, 1)
	go func() {
		_, err := f.Authorize(context.Background(), 2500, "USD")
		firstResult <- err
	}()
	<-started

	// Re-entry is rejected before any network traffic.
	_, err := f.Authorize(context.Background(), 2500, "USD")
	require.ErrorIs(t, err, dompayment.ErrAuthorizationInFlight)

	close(release)
	require.NoError(t, <-firstResult)
	require.Equal(t, 1, gw.intentCalls)
	require.Equal(t, dompayment.PhaseAuthorized, f.Phase())
}

func TestAuthorizeSurvivesCallerCancellation(t *testing.T) {
	gw := newStub()
	gw.createIntent = func(ctx context.Context, _ string, amount int64, currency string) (dompayment.Intent, error) {
		// The flow detaches the backend call from the caller's
		// cancellation so a charge is never orphaned mid-flight.
		require.NoError(t, ctx.Err())
		return dompayment.Intent{ID: "pi_1", Amount: amount, Currency: currency, Status: dompayment.IntentSucceeded}, nil
	}
	f := selectedFlow(t, gw)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	it, err := f.Authorize(ctx, 2500, "USD")
	require.NoError(t, err)
	require.Equal(t, dompayment.IntentSucceeded, it.Status)
}

func TestAuthorizeGatewayError(t *testing.T) {
	gw := newStub()
	boom := errors.New("gateway timeout")
	gw.createIntent = func(context.Context, string, int64, string) (dompayment.Intent, error) {
		return dompayment.Intent{}, boom
	}
	f := selectedFlow(t, gw)

	_, err := f.Authorize(context.Background(), 2500, "USD")
	require.ErrorIs(t, err, boom)
	require.Equal(t, dompayment.PhaseFailed, f.Phase())
}

func TestAuthorizeWithoutSelection(t *testing.T) {
	f := NewFlow(newStub(), zap.NewNop())
	_, err := f.Authorize(context.Background(), 100, "USD")
	require.ErrorIs(t, err, dompayment.ErrNoMethodSelected)
}

func TestInvalidateKeepsSelection(t *testing.T) {
	gw := newStub()
	f := selectedFlow(t, gw)
	_, err := f.Authorize(context.Background(), 2500, "USD")
	require.NoError(t, err)

	f.Invalidate()
	require.Nil(t, f.Intent())
	require.Equal(t, dompayment.PhaseMethodSelected, f.Phase())

	// Re-authorization works without reselecting the method.
	_, err = f.Authorize(context.Background(), 3000, "USD")
	require.NoError(t, err)
}

func TestResetClearsEverything(t *testing.T) {
	gw := newStub()
	f := selectedFlow(t, gw)
	_, err := f.Authorize(context.Background(), 2500, "USD")
	require.NoError(t, err)

	f.Reset()
	require.Equal(t, dompayment.PhaseNoMethod, f.Phase())
	require.Nil(t, f.Intent())

	_, err = f.Methods(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, gw.methodCalls, "reset drops the method cache")
}
