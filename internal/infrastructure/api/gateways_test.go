package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nvalera/storefront-checkout/internal/domain/order"
	"github.com/nvalera/storefront-checkout/internal/domain/payment"
	"github.com/nvalera/storefront-checkout/internal/domain/shipping"
	"github.com/nvalera/storefront-checkout/internal/infrastructure/credentials"
)

func TestAuthGatewayLoginStoresCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "ada@example.com", body["email"])
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "tok-1", "refresh_token": "ref-1",
		})
	})
	store := credentials.NewMemoryStore()
	c := newTestClient(t, mux, store)
	g := NewAuthGateway(c, store)

	require.NoError(t, g.Login(context.Background(), "ada@example.com", "secret", true))

	creds, err := store.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-1", creds.AccessToken)
	require.Equal(t, "ref-1", creds.RefreshToken)
	require.True(t, creds.Remember)
}

func TestAuthGatewayLogoutClearsEvenOnBackendFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	store := seededStore(t, credentials.Credentials{AccessToken: "tok", RefreshToken: "ref"})
	c := newTestClient(t, mux, store)
	g := NewAuthGateway(c, store)

	err := g.Logout(context.Background())
	require.Error(t, err)

	creds, getErr := store.Get(context.Background())
	require.NoError(t, getErr)
	require.True(t, creds.Empty())
}

func TestCatalogGatewayProduct(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/products/prod-1", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "prod-1", "name": "Widget", "unit_price": 1000, "stock": 10,
		})
	})
	c := newTestClient(t, mux, credentials.NewMemoryStore())
	g := NewCatalogGateway(c)

	p, err := g.Product(context.Background(), "prod-1")
	require.NoError(t, err)
	require.Equal(t, "Widget", p.Name)
	require.Equal(t, int64(1000), p.UnitPrice)
	require.Equal(t, 10, p.Stock)
}

func TestDeliveryGatewayCalculate(t *testing.T) {
	eta := time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC)
	mux := http.NewServeMux()
	mux.HandleFunc("/delivery/calculate", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			MethodID string            `json:"method_id"`
			Address  map[string]string `json:"address"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "standard", body.MethodID)
		require.Equal(t, "NL", body.Address["country"])
		_ = json.NewEncoder(w).Encode(map[string]any{
			"cost": 500, "estimated_date": eta,
		})
	})
	c := newTestClient(t, mux, credentials.NewMemoryStore())
	g := NewDeliveryGateway(c)

	q, err := g.Calculate(context.Background(), "standard", shipping.Address{
		Street: "12 Harbor Lane", City: "Rotterdam", PostalCode: "3011AB", Country: "NL",
	})
	require.NoError(t, err)
	require.Equal(t, int64(500), q.Cost)
	require.True(t, q.EstimatedDate.Equal(eta))
}

func TestPaymentGatewayCreateIntent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/payments/create-intent", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			MethodID string `json:"method_id"`
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, int64(2500), body.Amount)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "pi_1", "status": "succeeded"})
	})
	c := newTestClient(t, mux, credentials.NewMemoryStore())
	g := NewPaymentGateway(c)

	it, err := g.CreateIntent(context.Background(), "card", 2500, "USD")
	require.NoError(t, err)
	require.Equal(t, "pi_1", it.ID)
	require.Equal(t, payment.IntentSucceeded, it.Status)
	require.Equal(t, int64(2500), it.Amount)
}

func TestOrderGatewaySendsIdempotencyKey(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.EqualValues(t, 2500, body["total_amount"])
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "ord-1", "status": "created", "total": 2500, "created_at": time.Now(),
		})
	})
	c := newTestClient(t, mux, credentials.NewMemoryStore())
	g := NewOrderGateway(c)

	draft := order.Draft{
		Items:       []order.Item{{ProductID: "prod-1", Name: "Widget", UnitPrice: 1000, Quantity: 2}},
		TotalAmount: 2500,
		Currency:    "USD",
	}
	created, err := g.Create(context.Background(), draft, "key-1")
	require.NoError(t, err)
	require.Equal(t, "ord-1", created.ID)
	require.Equal(t, int64(2500), created.Total)
}
