package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vatosalfa/agenda-messaging/cmd/mainconfig"
	"github.com/vatosalfa/agenda-messaging/internal/api/router"
	"github.com/vatosalfa/agenda-messaging/internal/app/bootstrap"
	appconfig "github.com/vatosalfa/agenda-messaging/internal/config"
	"github.com/vatosalfa/agenda-messaging/internal/observability/metrics"
	"github.com/vatosalfa/agenda-messaging/pkg/logging"
)

func main() {
	mainconfig.LoadDotEnv()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting vatosalfa inbound messaging API",
		"env", cfg.Env,
		"port", cfg.Port,
		"store", cfg.StoreBackend,
		"dispatch", cfg.DispatchMode,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clients, err := awsClients(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	stores, err := bootstrap.BuildStores(ctx, cfg, clients, logger)
	if err != nil {
		logger.Error("failed to build stores", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	metricsHandler, messagingMetrics, inboundMetrics := setupMetrics()

	pipeline, err := bootstrap.BuildPipeline(cfg, stores, clients, inboundMetrics, logger)
	if err != nil {
		logger.Error("failed to build inbound pipeline", "error", err)
		os.Exit(1)
	}
	dispatch, err := bootstrap.BuildDispatch(cfg, pipeline.Processor, clients, logger)
	if err != nil {
		logger.Error("failed to build dispatcher", "error", err)
		os.Exit(1)
	}
	if dispatch.Worker != nil {
		dispatch.Worker.Start(ctx)
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}

	adminInbox, err := bootstrap.BuildAdminInbox(pipeline.Recorder, bootstrap.BuildOutboundSender(cfg, messagingMetrics, logger), logger)
	if err != nil {
		logger.Error("failed to build admin inbox", "error", err)
		os.Exit(1)
	}

	r := router.New(&router.Config{
		Logger:             logger,
		MessagingHandler:   bootstrap.BuildMessagingHandler(cfg, dispatch.Dispatcher, redisClient, messagingMetrics, logger),
		AdminInbox:         adminInbox,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		WebhookRateLimit:   cfg.RateLimitRPS,
		WebhookBurst:       cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	cancel()
	if dispatch.Worker != nil {
		waitForWorker(shutdownCtx, dispatch.Worker.Wait, logger)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func awsClients(ctx context.Context, cfg *appconfig.Config) (bootstrap.AWSClients, error) {
	if !mainconfig.NeedsAWS(cfg) {
		return bootstrap.AWSClients{}, nil
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return bootstrap.AWSClients{}, err
	}
	return mainconfig.NewAWSClients(awsCfg, cfg), nil
}

func setupMetrics() (http.Handler, *metrics.MessagingMetrics, *metrics.InboundMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewMessagingMetrics(reg), metrics.NewInboundMetrics(reg)
}

func waitForWorker(ctx context.Context, wait func(), logger *logging.Logger) {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("inbound worker stopped")
	case <-ctx.Done():
		logger.Error("inbound worker shutdown timed out", "error", ctx.Err())
	}
}
