// Package httptransport exposes the checkout pipeline to the UI layer
// over REST. Handlers resolve the shopper session from the
// X-Session-ID header and translate domain and backend errors into the
// response statuses the UI acts on.
package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	appcheckout "github.com/nvalera/storefront-checkout/internal/application/checkout"
	appdelivery "github.com/nvalera/storefront-checkout/internal/application/delivery"
	"github.com/nvalera/storefront-checkout/internal/domain/cart"
	domcheckout "github.com/nvalera/storefront-checkout/internal/domain/checkout"
	dompayment "github.com/nvalera/storefront-checkout/internal/domain/payment"
	"github.com/nvalera/storefront-checkout/internal/domain/shipping"
	"github.com/nvalera/storefront-checkout/internal/infrastructure/session"
	"github.com/nvalera/storefront-checkout/internal/pkg/apierror"
	"github.com/nvalera/storefront-checkout/internal/pkg/logging"
)

const sessionHeader = "X-Session-ID"

type Handler struct {
	sessions *session.Manager
}

func NewHandler(sessions *session.Manager) *Handler {
	return &Handler{sessions: sessions}
}

// resolve pins the shopper session and echoes its id so the UI can
// carry it forward.
func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) *session.Session {
	s := h.sessions.Resolve(r.Header.Get(sessionHeader))
	w.Header().Set(sessionHeader, s.ID)
	return s
}

// --- session ----------------------------------------------------------------

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	s := h.resolve(w, r)
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), nil)
		return
	}
	if err := s.Auth.Login(r.Context(), req.Email, req.Password, req.Remember); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	s := h.resolve(w, r)
	if err := s.Auth.Logout(r.Context()); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// --- cart -------------------------------------------------------------------

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	s := h.resolve(w, r)
	writeJSON(w, http.StatusOK, s.Checkout.View())
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	s := h.resolve(w, r)
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), nil)
		return
	}
	if err := s.Checkout.AddItem(r.Context(), req.ProductID, req.Quantity); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Checkout.View())
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	s := h.resolve(w, r)
	var req setQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), nil)
		return
	}
	if err := s.Checkout.SetQuantity(chi.URLParam(r, "productID"), req.Quantity); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Checkout.View())
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s := h.resolve(w, r)
	if err := s.Checkout.RemoveItem(chi.URLParam(r, "productID")); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Checkout.View())
}

// --- checkout ---------------------------------------------------------------

func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	s := h.resolve(w, r)
	writeJSON(w, http.StatusOK, s.Checkout.View())
}

func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
	s := h.resolve(w, r)
	if err := s.Checkout.Advance(); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Checkout.View())
}

func (h *Handler) Back(w http.ResponseWriter, r *http.Request) {
	s := h.resolve(w, r)
	if err := s.Checkout.Back(); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Checkout.View())
}

func (h *Handler) Abandon(w http.ResponseWriter, r *http.Request) {
	s := h.resolve(w, r)
	s.Checkout.Abandon()
	writeJSON(w, http.StatusNoContent, nil)
}

type addressRequest struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func (h *Handler) SetShippingAddress(w http.ResponseWriter, r *http.Request) {
	s := h.resolve(w, r)
	var req addressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), nil)
		return
	}
	fields := s.Checkout.SetShippingAddress(shipping.Address{
		Street:     req.Street,
		City:       req.City,
		Region:     req.Region,
		PostalCode: req.PostalCode,
		Country:    req.Country,
	})
	if fields != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation", "address is incomplete", fields)
		return
	}
	writeJSON(w, http.StatusOK, s.Checkout.View())
}

type contactRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (h *Handler) SetContact(w http.ResponseWriter, r *http.Request) {
	s := h.resolve(w, r)
	var req contactRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), nil)
		return
	}
	fields := s.Checkout.SetContact(shipping.Contact{Name: req.Name, Email: req.Email, Phone: req.Phone})
	if fields != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation", "contact is incomplete", fields)
		return
	}
	writeJSON(w, http.StatusOK, s.Checkout.View())
}

func (h *Handler) DeliveryMethods(w http.ResponseWriter, r *http.Request) {
	s := h.resolve(w, r)
	methods, err := s.Checkout.DeliveryMethods(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"methods": methods})
}

type selectMethodRequest struct {
	MethodID string `json:"method_id"`
}

func (h *Handler) SelectDeliveryMethod(w http.ResponseWriter, r *http.Request) {
	s := h.resolve(w, r)
	var req selectMethodRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), nil)
		return
	}
	if _, err := s.Checkout.SelectDeliveryMethod(r.Context(), req.MethodID); err != nil {
		if errors.Is(err, appdelivery.ErrSuperseded) {
			// A newer selection won the race; nothing to apply.
			writeJSON(w, http.StatusNoContent, nil)
			return
		}
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Checkout.View())
}

func (h *Handler) PaymentMethods(w http.ResponseWriter, r *http.Request) {
	s := h.resolve(w, r)
	methods, err := s.Checkout.PaymentMethods(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"methods": methods})
}

func (h *Handler) SelectPaymentMethod(w http.ResponseWriter, r *http.Request) {
	s := h.resolve(w, r)
	var req selectMethodRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), nil)
		return
	}
	if err := s.Checkout.SelectPaymentMethod(req.MethodID); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Checkout.View())
}

func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	s := h.resolve(w, r)
	if err := s.Checkout.Authorize(r.Context()); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Checkout.View())
}

type submitResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Total   int64  `json:"total"`
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	s := h.resolve(w, r)
	created, err := s.Checkout.Submit(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Warn("submit_rejected", zap.Error(err))
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{
		OrderID: created.ID,
		Status:  created.Status,
		Total:   created.Total,
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// --- plumbing ---------------------------------------------------------------

type errorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	if body == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, msg string, fields map[string]string) {
	writeJSON(w, status, errorResponse{Error: code, Message: msg, Fields: fields})
}

// writeFailure maps backend and domain errors onto response statuses.
func writeFailure(w http.ResponseWriter, err error) {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		writeError(w, statusForKind(apiErr.Kind), string(apiErr.Kind), apiErr.Message, apiErr.Fields)
		return
	}

	switch {
	case errors.Is(err, cart.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrInvalidProduct):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
	case errors.Is(err, domcheckout.ErrCartEmpty),
		errors.Is(err, domcheckout.ErrShippingIncomplete),
		errors.Is(err, domcheckout.ErrPaymentNotReady),
		errors.Is(err, domcheckout.ErrConfirmationRequired),
		errors.Is(err, domcheckout.ErrInvalidStateTransition):
		writeError(w, http.StatusConflict, "step_guard", err.Error(), nil)
	case errors.Is(err, appcheckout.ErrTransitionInFlight),
		errors.Is(err, dompayment.ErrAuthorizationInFlight):
		writeError(w, http.StatusConflict, "in_flight", err.Error(), nil)
	case errors.Is(err, dompayment.ErrNoMethodSelected):
		writeError(w, http.StatusBadRequest, "no_method", err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
	}
}

func statusForKind(kind apierror.Kind) int {
	switch kind {
	case apierror.KindUnauthenticated:
		return http.StatusUnauthorized
	case apierror.KindValidation:
		return http.StatusUnprocessableEntity
	case apierror.KindNotFound:
		return http.StatusNotFound
	case apierror.KindOutOfStock:
		return http.StatusConflict
	case apierror.KindPaymentDeclined:
		return http.StatusPaymentRequired
	default:
		return http.StatusBadGateway
	}
}
