package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appcheckout "github.com/nvalera/storefront-checkout/internal/application/checkout"
	appdelivery "github.com/nvalera/storefront-checkout/internal/application/delivery"
	apppayment "github.com/nvalera/storefront-checkout/internal/application/payment"
	"github.com/nvalera/storefront-checkout/internal/infrastructure/api"
	"github.com/nvalera/storefront-checkout/internal/infrastructure/credentials"
	httptransport "github.com/nvalera/storefront-checkout/internal/infrastructure/http"
	"github.com/nvalera/storefront-checkout/internal/infrastructure/id"
	"github.com/nvalera/storefront-checkout/internal/infrastructure/observability"
	"github.com/nvalera/storefront-checkout/internal/infrastructure/session"
	"github.com/nvalera/storefront-checkout/internal/pkg/logging"
)

const credentialTTL = 30 * 24 * time.Hour

func main() {
	serviceName := getenvDefault("SERVICE_NAME", "storefront-checkout")
	env := getenvDefault("ENV", "dev")
	addr := getenvDefault("ADDR", ":8080")
	backendURL := getenvDefault("BACKEND_BASE_URL", "http://localhost:9000")
	redisAddr := os.Getenv("REDIS_ADDR")
	currency := getenvDefault("CURRENCY", "USD")
	httpTimeout := getenvDuration("HTTP_TIMEOUT", 15*time.Second)
	sessionTTL := getenvDuration("SESSION_IDLE_TTL", 30*time.Minute)

	baseLogger := logging.MustNewLogger(serviceName, env)
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	var redisClient *redis.Client
	if redisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: redisAddr})
		baseLogger.Info("durable_credential_store_enabled", zap.String("redis_addr", redisAddr))
	}

	backendHTTP := &http.Client{Timeout: httpTimeout}
	idGenerator := id.NewUUIDGenerator()

	factory := func(sessionID string) *session.Session {
		memStore := credentials.NewMemoryStore()
		var store credentials.Store = memStore
		if redisClient != nil {
			store = credentials.NewPreferenceStore(memStore,
				credentials.NewRedisStore(redisClient, sessionID, credentialTTL))
		}

		client := api.NewClient(backendURL, backendHTTP, store, metrics, baseLogger)
		resolver := appdelivery.NewResolver(api.NewDeliveryGateway(client), baseLogger)
		flow := apppayment.NewFlow(api.NewPaymentGateway(client), baseLogger)
		orchestrator := appcheckout.NewOrchestrator(
			api.NewCatalogGateway(client),
			api.NewOrderGateway(client),
			resolver,
			flow,
			idGenerator,
			metrics,
			baseLogger.With(zap.String("session_id", sessionID)),
			currency,
		)
		client.OnSessionEnd(orchestrator.OnSessionEnd)

		return &session.Session{
			Checkout: orchestrator,
			Auth:     api.NewAuthGateway(client, store),
		}
	}

	sessions := session.NewManager(factory, idGenerator, sessionTTL, baseLogger)
	sessions.Start(context.Background())
	defer sessions.Stop()

	handler := httptransport.NewHandler(sessions)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", httptransport.NewRouter(handler, baseLogger))

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("http_server_start", zap.String("addr", server.Addr))
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Error("http_server_error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("http_server_shutdown_error", zap.Error(err))
	} else {
		baseLogger.Info("http_server_stopped")
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
