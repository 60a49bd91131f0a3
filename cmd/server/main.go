package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sapliy/baas-integration/internal/account"
	"github.com/sapliy/baas-integration/internal/apiuser"
	"github.com/sapliy/baas-integration/internal/billing"
	"github.com/sapliy/baas-integration/internal/kyc"
	"github.com/sapliy/baas-integration/internal/notification"
	"github.com/sapliy/baas-integration/internal/onboarding"
	"github.com/sapliy/baas-integration/internal/pix"
	"github.com/sapliy/baas-integration/internal/qitech"
	"github.com/sapliy/baas-integration/internal/webhook"
	"github.com/sapliy/baas-integration/pkg/database"
	"github.com/sapliy/baas-integration/pkg/jsonutil"
	"github.com/sapliy/baas-integration/pkg/messaging"
	"github.com/sapliy/baas-integration/pkg/monitoring"
	"github.com/sapliy/baas-integration/pkg/observability"
	"github.com/sapliy/baas-integration/pkg/secrets"
)

// queueSource adapts the RabbitMQ client to the processor's receive
// contract.
type queueSource struct {
	client *messaging.RabbitMQClient
}

func (q queueSource) GetOne(ctx context.Context, queueName string, wait time.Duration) (webhook.Delivery, bool, error) {
	d, ok, err := q.client.GetOne(ctx, queueName, wait)
	if !ok || err != nil {
		return nil, false, err
	}
	return d, true, nil
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := observability.NewLogger("baas-integration")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis connection failed, webhook dedupe disabled: %v", err)
		rdb = nil
	}

	rabbitClient, err := messaging.NewRabbitMQClient(messaging.Config{URL: cfg.RabbitURL})
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer rabbitClient.Close()
	if _, err := rabbitClient.DeclareQueueWithDLQ(webhook.QueueName); err != nil {
		log.Fatalf("Failed to declare webhook queue: %v", err)
	}

	kafkaProducer := messaging.NewKafkaProducer(cfg.brokers(), cfg.KafkaTopic)
	defer kafkaProducer.Close()

	privateKeyPEM := cfg.Provider.PrivateKeyPEM
	if cfg.Provider.PrivateKeySecret != "" {
		loader, err := secrets.NewLoader(ctx)
		if err != nil {
			log.Fatalf("Failed to init secrets loader: %v", err)
		}
		privateKeyPEM, err = loader.GetString(ctx, cfg.Provider.PrivateKeySecret)
		if err != nil {
			log.Fatalf("Failed to load signing key from secrets manager: %v", err)
		}
	}

	signer, err := qitech.NewSigner(cfg.Provider.APIKey, []byte(privateKeyPEM),
		cfg.Provider.KeyPassphrase, []byte(cfg.Provider.PublicKeyPEM))
	if err != nil {
		log.Fatalf("Failed to load signing key: %v", err)
	}
	provider := qitech.NewClient(cfg.Provider.BaseURL, signer)

	kycClient := kyc.NewClient(cfg.Onboarding.BaseURL, cfg.Onboarding.Secret)
	kycVerifier := kyc.NewWebhookVerifier(cfg.Onboarding.WebhookSecret)

	shutdownTracer, err := observability.InitTracer(ctx, observability.Config{
		ServiceName: "baas-integration",
		Endpoint:    cfg.OTELEndpoint,
		Environment: cfg.Environment,
	})
	if err != nil {
		log.Printf("Failed to init tracer: %v", err)
	} else {
		defer shutdownTracer(context.Background())
	}

	monitoring.StartMetricsServer(cfg.MetricsAddr)

	dispatcher := notification.NewDispatcher(
		notification.NewRepository(db), cfg.NotificationSecret, logger)
	publisher := notification.NewBridge(kafkaProducer, dispatcher, cfg.NotificationCallbackURL, logger)

	accountRepo := account.NewRepository(db)
	accountSvc := account.NewService(accountRepo, provider, publisher, logger)
	onboardingSvc := onboarding.NewService(onboarding.NewRepository(db), kycClient, publisher, logger)
	pixSvc := pix.NewService(pix.NewRepository(db), accountRepo, provider, publisher, logger)
	billingSvc := billing.NewService(billing.NewRepository(db), provider, logger)

	webhookHandler := webhook.NewHandler(kycVerifier, provider, rabbitClient, cfg.PublicURL, logger)
	processor := webhook.NewProcessor(queueSource{rabbitClient},
		onboardingSvc, accountSvc, pixSvc, rdb, logger)

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		jsonutil.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "active",
			"service": "baas-integration",
		})
	})
	RegisterWebhooks(router, webhookHandler)

	api := router.NewRoute().Subrouter()
	api.Use(apiuser.Middleware(apiuser.NewRepository(db), logger))
	server := NewServer(accountSvc, onboardingSvc, pixSvc, billingSvc, provider, logger)
	server.Routes(api)

	// Three independent periodic triggers: the notification sweep, the
	// daily billing reconcile, and the queue poll. The poll waits an extra
	// fixed delay after each tick before invoking the processor.
	go runEvery(ctx, time.Minute, func() { dispatcher.Sweep(ctx) })
	go runEvery(ctx, 24*time.Hour, func() { billingSvc.Reconcile(ctx) })
	go runEvery(ctx, cfg.QueuePollInterval, func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(cfg.QueuePollDelay):
		}
		processor.Poll(ctx)
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: otelhttp.NewHandler(router, "baas-request"),
	}

	go func() {
		logger.Info("server starting", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}

func runEvery(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
