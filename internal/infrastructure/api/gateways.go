package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/nvalera/storefront-checkout/internal/domain/cart"
	"github.com/nvalera/storefront-checkout/internal/domain/delivery"
	"github.com/nvalera/storefront-checkout/internal/domain/order"
	"github.com/nvalera/storefront-checkout/internal/domain/payment"
	"github.com/nvalera/storefront-checkout/internal/domain/shipping"
	"github.com/nvalera/storefront-checkout/internal/infrastructure/credentials"
)

// AuthGateway handles login and logout. Refresh lives inside the
// client itself; callers never see it.
type AuthGateway struct {
	client *Client
	store  credentials.Store
}

func NewAuthGateway(client *Client, store credentials.Store) *AuthGateway {
	return &AuthGateway{client: client, store: store}
}

func (g *AuthGateway) Login(ctx context.Context, email, password string, remember bool) error {
	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	body := map[string]any{"email": email, "password": password}
	if err := g.client.Do(ctx, http.MethodPost, "/auth/login", body, &resp); err != nil {
		return err
	}
	return g.store.Set(ctx, credentials.Credentials{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		Remember:     remember,
	})
}

// Logout clears local credentials even when the backend call fails;
// the session is over either way.
func (g *AuthGateway) Logout(ctx context.Context) error {
	err := g.client.Do(ctx, http.MethodPost, "/auth/logout", nil, nil)
	if clearErr := g.store.Clear(ctx); clearErr != nil {
		return clearErr
	}
	return err
}

// CatalogGateway resolves product price and stock; the catalog itself
// is an external collaborator.
type CatalogGateway struct {
	client *Client
}

func NewCatalogGateway(client *Client) *CatalogGateway {
	return &CatalogGateway{client: client}
}

func (g *CatalogGateway) Product(ctx context.Context, productID string) (cart.Product, error) {
	var resp struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		UnitPrice int64  `json:"unit_price"`
		Stock     int    `json:"stock"`
	}
	path := "/products/" + url.PathEscape(productID)
	if err := g.client.DoRoute(ctx, http.MethodGet, "/products/{id}", path, nil, &resp); err != nil {
		return cart.Product{}, err
	}
	return cart.Product{ID: resp.ID, Name: resp.Name, UnitPrice: resp.UnitPrice, Stock: resp.Stock}, nil
}

type DeliveryGateway struct {
	client *Client
}

func NewDeliveryGateway(client *Client) *DeliveryGateway {
	return &DeliveryGateway{client: client}
}

func (g *DeliveryGateway) Methods(ctx context.Context) ([]delivery.Method, error) {
	var resp struct {
		Methods []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"methods"`
	}
	if err := g.client.Do(ctx, http.MethodGet, "/delivery/methods", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]delivery.Method, 0, len(resp.Methods))
	for _, m := range resp.Methods {
		out = append(out, delivery.Method{ID: m.ID, Name: m.Name, Description: m.Description})
	}
	return out, nil
}

func (g *DeliveryGateway) Calculate(ctx context.Context, methodID string, addr shipping.Address) (delivery.Quote, error) {
	body := map[string]any{
		"method_id": methodID,
		"address": map[string]string{
			"street":      addr.Street,
			"city":        addr.City,
			"region":      addr.Region,
			"postal_code": addr.PostalCode,
			"country":     addr.Country,
		},
	}
	var resp struct {
		Cost          int64     `json:"cost"`
		EstimatedDate time.Time `json:"estimated_date"`
	}
	if err := g.client.Do(ctx, http.MethodPost, "/delivery/calculate", body, &resp); err != nil {
		return delivery.Quote{}, err
	}
	return delivery.Quote{MethodID: methodID, Cost: resp.Cost, EstimatedDate: resp.EstimatedDate}, nil
}

type PaymentGateway struct {
	client *Client
}

func NewPaymentGateway(client *Client) *PaymentGateway {
	return &PaymentGateway{client: client}
}

func (g *PaymentGateway) Methods(ctx context.Context) ([]payment.Method, error) {
	var resp struct {
		Methods []struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Deferred bool   `json:"deferred"`
		} `json:"methods"`
	}
	if err := g.client.Do(ctx, http.MethodGet, "/payment-methods", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]payment.Method, 0, len(resp.Methods))
	for _, m := range resp.Methods {
		out = append(out, payment.Method{ID: m.ID, Name: m.Name, Deferred: m.Deferred})
	}
	return out, nil
}

func (g *PaymentGateway) CreateIntent(ctx context.Context, methodID string, amount int64, currency string) (payment.Intent, error) {
	body := map[string]any{
		"method_id": methodID,
		"amount":    amount,
		"currency":  currency,
	}
	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := g.client.Do(ctx, http.MethodPost, "/payments/create-intent", body, &resp); err != nil {
		return payment.Intent{}, err
	}
	return payment.Intent{
		ID:       resp.ID,
		Amount:   amount,
		Currency: currency,
		Status:   payment.IntentStatus(resp.Status),
	}, nil
}

type OrderGateway struct {
	client *Client
}

func NewOrderGateway(client *Client) *OrderGateway {
	return &OrderGateway{client: client}
}

// Create posts the order draft. The idempotency key is fixed per
// checkout attempt so a retried submission cannot double-create.
func (g *OrderGateway) Create(ctx context.Context, draft order.Draft, idempotencyKey string) (order.Order, error) {
	items := make([]map[string]any, 0, len(draft.Items))
	for _, it := range draft.Items {
		items = append(items, map[string]any{
			"product_id": it.ProductID,
			"name":       it.Name,
			"unit_price": it.UnitPrice,
			"quantity":   it.Quantity,
		})
	}
	body := map[string]any{
		"items": items,
		"shipping_address": map[string]string{
			"street":      draft.ShippingAddress.Street,
			"city":        draft.ShippingAddress.City,
			"region":      draft.ShippingAddress.Region,
			"postal_code": draft.ShippingAddress.PostalCode,
			"country":     draft.ShippingAddress.Country,
		},
		"contact": map[string]string{
			"name":  draft.Contact.Name,
			"email": draft.Contact.Email,
			"phone": draft.Contact.Phone,
		},
		"delivery_method":   draft.DeliveryMethod,
		"delivery_cost":     draft.DeliveryCost,
		"payment_intent_id": draft.PaymentIntentID,
		"payment_method_id": draft.PaymentMethodID,
		"total_amount":      draft.TotalAmount,
		"currency":          draft.Currency,
	}
	var resp struct {
		ID        string    `json:"id"`
		Status    string    `json:"status"`
		Total     int64     `json:"total"`
		CreatedAt time.Time `json:"created_at"`
	}
	err := g.client.Do(ctx, http.MethodPost, "/orders", body, &resp,
		Header{Key: "Idempotency-Key", Value: idempotencyKey})
	if err != nil {
		return order.Order{}, err
	}
	return order.Order{ID: resp.ID, Status: resp.Status, Total: resp.Total, CreatedAt: resp.CreatedAt}, nil
}
