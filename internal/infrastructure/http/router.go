package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/nvalera/storefront-checkout/internal/pkg/logging"
)

func NewRouter(handler *Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handler.Health)

	r.Route("/session", func(r chi.Router) {
		r.Post("/login", handler.Login)
		r.Post("/logout", handler.Logout)
	})

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", handler.GetCart)
		r.Post("/items", handler.AddItem)
		r.Put("/items/{productID}", handler.SetQuantity)
		r.Delete("/items/{productID}", handler.RemoveItem)
	})

	r.Route("/checkout", func(r chi.Router) {
		r.Get("/", handler.GetCheckout)
		r.Post("/advance", handler.Advance)
		r.Post("/back", handler.Back)
		r.Post("/submit", handler.Submit)
		r.Post("/abandon", handler.Abandon)
		r.Put("/shipping-address", handler.SetShippingAddress)
		r.Put("/contact", handler.SetContact)
		r.Get("/delivery-methods", handler.DeliveryMethods)
		r.Put("/delivery-method", handler.SelectDeliveryMethod)
		r.Get("/payment-methods", handler.PaymentMethods)
		r.Put("/payment-method", handler.SelectPaymentMethod)
		r.Post("/authorize", handler.Authorize)
	})

	return r
}

// requestLogger logs one line per request with status and latency.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			reqLogger := logger.With(zap.String("request_id", middleware.GetReqID(r.Context())))
			r = r.WithContext(logging.ContextWithLogger(r.Context(), reqLogger))
			start := time.Now()
			next.ServeHTTP(ww, r)
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
