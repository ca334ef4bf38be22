// Package api implements the authenticated REST client for the
// storefront backend and the gateways built on top of it. Every
// outbound call in the pipeline funnels through Client.Do: bearer
// attach, one-shot refresh-and-retry on authorization failure, and
// normalization of every failure into apierror.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/nvalera/storefront-checkout/internal/infrastructure/credentials"
	"github.com/nvalera/storefront-checkout/internal/infrastructure/observability"
	"github.com/nvalera/storefront-checkout/internal/pkg/apierror"
)

const refreshPath = "/auth/refresh-token"

// Header is an extra request header for a single call, e.g. the
// Idempotency-Key on order creation.
type Header struct {
	Key   string
	Value string
}

type Client struct {
	baseURL string
	hc      *http.Client
	store   credentials.Store
	log     *zap.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer

	// refreshMu makes credential refresh single-flight across
	// concurrent requests.
	refreshMu sync.Mutex

	onSessionEnd func()
}

func NewClient(baseURL string, hc *http.Client, store credentials.Store, metrics *observability.Metrics, logger *zap.Logger) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	if metrics == nil {
		metrics = observability.NopMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      hc,
		store:   store,
		log:     logger.With(zap.String("component", "api_client")),
		metrics: metrics,
		tracer:  otel.Tracer("storefront-checkout/api"),
	}
}

// OnSessionEnd registers the callback fired when a credential refresh
// fails and the session is over. The orchestrator uses it to abort an
// in-flight checkout.
func (c *Client) OnSessionEnd(fn func()) {
	c.onSessionEnd = fn
}

// Do issues one logical request. body is JSON-encoded when non-nil; a
// 2xx response is decoded into out when out is non-nil. Errors are
// always *apierror.Error. Parameterized endpoints go through DoRoute;
// here the path doubles as the telemetry label.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, headers ...Header) error {
	return c.DoRoute(ctx, method, path, path, body, out, headers...)
}

// DoRoute is Do with an explicit route template. The template labels
// the span and the endpoint metrics, keeping their cardinality bounded
// when the path carries identifiers.
func (c *Client) DoRoute(ctx context.Context, method, route, path string, body, out any, headers ...Header) error {
	ctx, span := c.tracer.Start(ctx, "backend "+method+" "+route,
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", route),
		),
	)
	start := time.Now()

	err := c.do(ctx, method, path, body, out, headers, false)

	outcome := "success"
	if err != nil {
		outcome = string(apierror.KindOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	c.metrics.BackendRequests.WithLabelValues(route, outcome).Inc()
	c.metrics.BackendDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, headers []Header, retried bool) error {
	status, payload, err := c.roundTrip(ctx, method, path, body, headers, true)
	if err != nil {
		return err
	}

	if status >= 200 && status < 300 {
		if out == nil || len(payload) == 0 {
			return nil
		}
		if err := json.Unmarshal(payload, out); err != nil {
			return apierror.New(apierror.KindNetworkOrServer, "malformed response body")
		}
		return nil
	}

	if status == http.StatusUnauthorized {
		if retried {
			// Second authorization failure after a successful
			// refresh: treat as unauthenticated, never loop.
			return apierror.New(apierror.KindUnauthenticated, "session expired")
		}
		if err := c.refresh(ctx); err != nil {
			return err
		}
		return c.do(ctx, method, path, body, out, headers, true)
	}

	return normalize(status, payload)
}

// refresh exchanges the refresh credential for a new access credential,
// exactly once per failing request. On failure the credentials are
// cleared and the session-end callback fires.
func (c *Client) refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	creds, err := c.store.Get(ctx)
	if err != nil || creds.RefreshToken == "" {
		return c.endSession(ctx, "missing refresh credential")
	}

	reqBody := map[string]string{"refresh_token": creds.RefreshToken}
	status, payload, rtErr := c.roundTrip(ctx, http.MethodPost, refreshPath, reqBody, nil, false)
	if rtErr != nil || status != http.StatusOK {
		c.metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		return c.endSession(ctx, "credential refresh rejected")
	}

	var rotated struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(payload, &rotated); err != nil || rotated.AccessToken == "" {
		c.metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		return c.endSession(ctx, "malformed refresh response")
	}

	next := credentials.Credentials{
		AccessToken:  rotated.AccessToken,
		RefreshToken: rotated.RefreshToken,
		Remember:     creds.Remember,
	}
	if next.RefreshToken == "" {
		next.RefreshToken = creds.RefreshToken
	}
	if err := c.store.Set(ctx, next); err != nil {
		c.metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		return c.endSession(ctx, "persisting refreshed credential failed")
	}

	c.metrics.TokenRefreshes.WithLabelValues("success").Inc()
	c.log.Debug("credential_refreshed")
	return nil
}

func (c *Client) endSession(ctx context.Context, reason string) error {
	if err := c.store.Clear(ctx); err != nil {
		c.log.Warn("credential_clear_failed", zap.Error(err))
	}
	c.log.Info("session_ended", zap.String("reason", reason))
	if c.onSessionEnd != nil {
		c.onSessionEnd()
	}
	return apierror.New(apierror.KindUnauthenticated, reason)
}

// roundTrip performs one HTTP exchange. withAuth attaches the current
// access credential when present; the refresh call itself goes out
// bare.
func (c *Client) roundTrip(ctx context.Context, method, path string, body any, headers []Header, withAuth bool) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, apierror.New(apierror.KindNetworkOrServer, fmt.Sprintf("encode request: %v", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, apierror.New(apierror.KindNetworkOrServer, fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range headers {
		req.Header.Set(h.Key, h.Value)
	}

	if withAuth {
		creds, err := c.store.Get(ctx)
		if err != nil {
			c.log.Warn("credential_read_failed", zap.Error(err))
		} else if creds.AccessToken != "" {
			req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
		}
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, apierror.New(apierror.KindNetworkOrServer, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, apierror.New(apierror.KindNetworkOrServer, err.Error())
	}
	return resp.StatusCode, payload, nil
}

// errorBody is the backend's error envelope.
type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

// normalize folds a non-2xx response into the error shape the rest of
// the system understands. No raw transport error escapes this package.
func normalize(status int, payload []byte) *apierror.Error {
	var body errorBody
	_ = json.Unmarshal(payload, &body)
	msg := body.Message
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return apierror.Validation(msg, body.Fields)
	case status == http.StatusPaymentRequired:
		return apierror.New(apierror.KindPaymentDeclined, msg)
	case status == http.StatusNotFound:
		return apierror.New(apierror.KindNotFound, msg)
	case status == http.StatusConflict && body.Error == "out_of_stock":
		return apierror.New(apierror.KindOutOfStock, msg)
	default:
		return apierror.New(apierror.KindNetworkOrServer, msg)
	}
}
