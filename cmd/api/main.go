package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/hinoki-market/api/internal/handlers"
	"github.com/hinoki-market/api/internal/payments"
	"github.com/hinoki-market/api/internal/platform/config"
	pfirestore "github.com/hinoki-market/api/internal/platform/firestore"
	"github.com/hinoki-market/api/internal/platform/jobs"
	"github.com/hinoki-market/api/internal/platform/observability"
	"github.com/hinoki-market/api/internal/platform/secrets"
	firestoreRepo "github.com/hinoki-market/api/internal/repositories/firestore"
	"github.com/hinoki-market/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := secrets.NewFetcher(ctx,
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithDefaultProject(os.Getenv("API_FIRESTORE_PROJECT_ID")),
	)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
	)
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("invalid configuration", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	if _, err := firestoreProvider.Client(ctx); err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	orderRepo, err := firestoreRepo.NewOrderRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}()

	paidTopic := pubsubClient.Topic(cfg.Events.TopicID)
	defer paidTopic.Stop()

	paidPublisher, err := jobs.NewPubSubPaidEventPublisher(paidTopic)
	if err != nil {
		logger.Fatal("failed to initialise paid event publisher", zap.Error(err))
	}

	gateway, err := payments.NewClient(payments.ClientConfig{
		BaseURL:    cfg.Gateway.BaseURL,
		APIKey:     cfg.Gateway.APIKey,
		APISecret:  cfg.Gateway.APISecret,
		MerchantID: cfg.Gateway.MerchantID,
		Timeout:    cfg.Gateway.Timeout,
	})
	if err != nil {
		logger.Fatal("failed to initialise payment gateway client", zap.Error(err))
	}

	serviceLogger := logger.Named("services")
	confirmationService, err := services.NewPaymentConfirmationService(services.PaymentConfirmationServiceDeps{
		Orders:    orderRepo,
		Gateway:   gateway,
		Publisher: paidPublisher,
		Logger: func(ctx context.Context, event string, fields map[string]any) {
			zapFields := make([]zap.Field, 0, len(fields))
			for key, value := range fields {
				zapFields = append(zapFields, zap.Any(key, value))
			}
			serviceLogger.Info(event, zapFields...)
		},
		GatewayTimeout: cfg.Gateway.Timeout,
	})
	if err != nil {
		logger.Fatal("failed to initialise confirmation service", zap.Error(err))
	}

	paymentHandlers := handlers.NewPaymentHandlers(confirmationService)
	healthHandlers := handlers.NewHealthHandlers().WithReadinessCheck(func() bool {
		probeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err := firestoreProvider.Client(probeCtx)
		return err == nil
	})

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(cfg.Firestore.ProjectID),
		observability.RecoverMiddleware(),
		observability.RequestLoggerMiddleware(),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithPaymentRoutes(paymentHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("hinoki-market api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
