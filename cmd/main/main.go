package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/opsdeck/automation-engine/internal/config"
	"github.com/opsdeck/automation-engine/internal/healthcheck"
	"github.com/opsdeck/automation-engine/internal/httpapi"
	"github.com/opsdeck/automation-engine/internal/ingestion"
	"github.com/opsdeck/automation-engine/internal/notifier"
	"github.com/opsdeck/automation-engine/internal/observer"
	"github.com/opsdeck/automation-engine/internal/storage"
	"github.com/opsdeck/automation-engine/internal/usecase"
	"github.com/opsdeck/automation-engine/pkg/logger"
	"github.com/opsdeck/automation-engine/pkg/utils"
)

func main() {
	// Set timezone to UTC
	time.Local = time.UTC

	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	metricsEnabled := cfg.Metrics.Enabled
	observer.InitMetrics(metricsEnabled)

	logger.Log.Info("Starting OpsDeck Automation Engine",
		zap.String("environment", cfg.Environment),
		zap.String("workspace_id", cfg.Workspace.ID),
		zap.Bool("nats_enabled", cfg.NATS.Enabled),
	)

	if cfg.Workspace.ID == "" {
		logger.Log.Fatal("Workspace ID is required (WORKSPACE_ID)")
	}

	postgresRepo, err := initPostgresRepo(cfg.Database.PostgresDSN, cfg.Database.PostgresAutoMigrate, cfg.Workspace.ID)
	if err != nil {
		logger.Log.Fatal("Failed to initialize Postgres repository", zap.Error(err))
	}

	// Repository adapters for the service
	contactRepo := storage.NewContactRepoAdapter(postgresRepo)
	bookingRepo := storage.NewBookingRepoAdapter(postgresRepo)
	conversationRepo := storage.NewConversationRepoAdapter(postgresRepo)
	messageRepo := storage.NewMessageRepoAdapter(postgresRepo)
	inventoryRepo := storage.NewInventoryRepoAdapter(postgresRepo)
	formRepo := storage.NewFormRepoAdapter(postgresRepo)
	alertRepo := storage.NewAlertRepoAdapter(postgresRepo)

	// Notification dispatch pool. SMS goes through Twilio when credentials are
	// configured; the log sender stands in otherwise, and for email.
	senders := map[string]notifier.Sender{
		notifier.ChannelSMS:   notifier.NewLogSender(notifier.ChannelSMS),
		notifier.ChannelEmail: notifier.NewLogSender(notifier.ChannelEmail),
	}
	if cfg.Notifier.Twilio.AccountSID != "" && cfg.Notifier.Twilio.AuthToken != "" {
		senders[notifier.ChannelSMS] = notifier.NewTwilioSMSSender(cfg.Notifier)
	}
	notifierWorker, err := notifier.NewWorker(cfg.Notifier, senders, logger.Log)
	if err != nil {
		logger.Log.Fatal("Failed to initialize notifier worker pool", zap.Error(err))
	}

	service := usecase.NewAutomationService(
		contactRepo, bookingRepo, conversationRepo, messageRepo,
		inventoryRepo, formRepo, alertRepo,
		notifierWorker, logger.Log,
	)

	// HTTP API server
	apiServer := httpapi.NewServer(cfg, service, logger.Log)
	apiServer.Start()

	// Health check server, readiness gated on database connectivity
	readyCheck := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return postgresRepo.Ping(ctx)
	}
	healthServer := healthcheck.NewServer(strconv.Itoa(cfg.Server.HealthPort), readyCheck, logger.Log)

	if metricsEnabled {
		healthServer.RegisterMetricsHandler(promhttp.Handler())
		logger.Log.Info("Metrics endpoint enabled", zap.String("path", "/metrics"), zap.Int("port", cfg.Server.HealthPort))
	} else {
		logger.Log.Info("Metrics endpoint disabled", zap.String("environment", cfg.Environment))
	}
	healthServer.Start()

	logger.Log.Info("Health check endpoints available",
		zap.String("health", fmt.Sprintf("http://localhost:%d/health", cfg.Server.HealthPort)),
		zap.String("readiness", fmt.Sprintf("http://localhost:%d/ready", cfg.Server.HealthPort)),
	)

	// Event ingestion is optional; the HTTP API covers every operation on its
	// own and some deployments run without a broker.
	var consumer *ingestion.Consumer
	if cfg.NATS.Enabled {
		router := ingestion.NewRouter()
		ingestion.NewEventHandlers(service).RegisterAll(router)

		consumer, err = ingestion.NewConsumer(cfg, router)
		if err != nil {
			logger.Log.Fatal("Failed to initialize JetStream consumer", zap.Error(err))
		}
		if err := consumer.Setup(); err != nil {
			logger.Log.Fatal("Failed to set up JetStream stream and consumer", zap.Error(err))
		}
		if err := consumer.Start(); err != nil {
			logger.Log.Fatal("Failed to start JetStream consumer", zap.Error(err))
		}
	}

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Log.Info("Received termination signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Log.Info("Starting graceful shutdown", zap.Duration("timeout", 30*time.Second))

	var wg sync.WaitGroup

	if consumer != nil {
		wg.Add(1)
		utils.SafeGo(func() {
			defer wg.Done()
			logger.Log.Info("[shutdown] Stopping JetStream consumer")
			start := time.Now()
			consumer.Stop()
			logger.Log.Info("[shutdown] JetStream consumer stopped",
				zap.Duration("duration", time.Since(start)))
		}, func(r interface{}, stack []byte) {
			logger.Log.Error("[shutdown] Panic while stopping JetStream consumer",
				zap.Any("panic", r),
				zap.ByteString("stack", stack),
			)
			wg.Done()
		})
	}

	wg.Add(1)
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping HTTP API server")
		start := time.Now()
		if err := apiServer.Stop(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Error stopping HTTP API server", zap.Error(err))
		} else {
			logger.Log.Info("[shutdown] HTTP API server stopped",
				zap.Duration("duration", time.Since(start)))
		}
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping HTTP API server",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	wg.Add(1)
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping notifier worker pool")
		start := time.Now()
		notifierWorker.Stop()
		logger.Log.Info("[shutdown] Notifier worker pool stopped",
			zap.Duration("duration", time.Since(start)))
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping notifier worker pool",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	wg.Add(1)
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping health check server")
		start := time.Now()
		if err := healthServer.Stop(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Error stopping health check server", zap.Error(err))
		} else {
			logger.Log.Info("[shutdown] Health check server stopped",
				zap.Duration("duration", time.Since(start)))
		}
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping health check server",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	wg.Add(1)
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Closing PostgreSQL connection")
		start := time.Now()
		if err := postgresRepo.Close(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Failed to close PostgreSQL connection", zap.Error(err))
		} else {
			logger.Log.Info("[shutdown] PostgreSQL connection closed",
				zap.Duration("duration", time.Since(start)))
		}
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while closing PostgreSQL connection",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Wait with a timeout for all components to shut down
	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Log.Info("[shutdown] All components stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Log.Warn("[shutdown] Graceful shutdown timed out, forcing exit")
	}

	logger.Log.Info("OpsDeck Automation Engine shutdown complete")
}

func initPostgresRepo(dsn string, autoMigrate bool, workspaceID string) (*storage.PostgresRepo, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	repo, err := storage.NewPostgresRepo(dsn, autoMigrate, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres repository: %w", err)
	}

	logger.Log.Info("Initialized PostgreSQL repository")
	return repo, nil
}
