package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vatosalfa/agenda-messaging/cmd/mainconfig"
	"github.com/vatosalfa/agenda-messaging/internal/app/bootstrap"
	appconfig "github.com/vatosalfa/agenda-messaging/internal/config"
	"github.com/vatosalfa/agenda-messaging/internal/observability/metrics"
	"github.com/vatosalfa/agenda-messaging/pkg/logging"
)

func main() {
	mainconfig.LoadDotEnv()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.InboundQueueURL == "" {
		logger.Error("inbound worker requires INBOUND_QUEUE_URL")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsConfig, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	// The worker always reads SQS, regardless of how the API dispatches.
	workerCfg := *cfg
	workerCfg.DispatchMode = appconfig.DispatchQueue
	workerCfg.UseMemoryQueue = false
	clients := mainconfig.NewAWSClients(awsConfig, &workerCfg)

	stores, err := bootstrap.BuildStores(ctx, cfg, clients, logger)
	if err != nil {
		logger.Error("failed to build stores", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	reg := prometheus.NewRegistry()
	pipeline, err := bootstrap.BuildPipeline(cfg, stores, clients, metrics.NewInboundMetrics(reg), logger)
	if err != nil {
		logger.Error("failed to build inbound pipeline", "error", err)
		os.Exit(1)
	}

	worker, err := bootstrap.BuildSQSWorker(cfg, pipeline.Processor, clients, logger)
	if err != nil {
		logger.Error("failed to build worker", "error", err)
		os.Exit(1)
	}
	worker.Start(ctx)

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()
	logger.Info("inbound worker started", "workers", cfg.WorkerCount, "queue_url", cfg.InboundQueueURL)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down inbound worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()
	_ = metricsSrv.Shutdown(doneCtx)

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("inbound worker stopped")
	case <-doneCtx.Done():
		logger.Error("inbound worker shutdown timed out", "error", doneCtx.Err())
	}
}
