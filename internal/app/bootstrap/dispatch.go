package bootstrap

import (
	"fmt"

	appconfig "github.com/vatosalfa/agenda-messaging/internal/config"
	"github.com/vatosalfa/agenda-messaging/internal/inbound"
	"github.com/vatosalfa/agenda-messaging/pkg/logging"
)

// Dispatch is how the webhook hands off work. Worker is set when jobs must be
// drained in this process.
type Dispatch struct {
	Mode       string
	Dispatcher inbound.Dispatcher
	Worker     *inbound.Worker
}

// BuildDispatch selects sync or queue dispatch. The API process runs the
// worker itself for the in-memory queue; SQS jobs are drained by
// cmd/inbound-worker.
func BuildDispatch(cfg *appconfig.Config, processor inbound.MessageProcessor, clients AWSClients, logger *logging.Logger) (*Dispatch, error) {
	if cfg == nil || processor == nil {
		return nil, fmt.Errorf("bootstrap: config and processor are required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.DispatchMode {
	case appconfig.DispatchSync:
		logger.Info("inbound dispatch: sync")
		return &Dispatch{Mode: cfg.DispatchMode, Dispatcher: inbound.NewSyncDispatcher(processor, logger)}, nil

	case appconfig.DispatchQueue:
		if cfg.UseMemoryQueue {
			queue := inbound.NewMemoryQueue(256)
			logger.Info("inbound dispatch: memory queue", "workers", cfg.WorkerCount)
			return &Dispatch{
				Mode:       cfg.DispatchMode,
				Dispatcher: inbound.NewQueueDispatcher(inbound.NewPublisher(queue, logger), logger),
				Worker:     inbound.NewWorker(processor, queue, logger, inbound.WithWorkerCount(cfg.WorkerCount)),
			}, nil
		}
		queue, err := buildSQSQueue(cfg, clients)
		if err != nil {
			return nil, err
		}
		logger.Info("inbound dispatch: sqs", "queue_url", cfg.InboundQueueURL)
		return &Dispatch{
			Mode:       cfg.DispatchMode,
			Dispatcher: inbound.NewQueueDispatcher(inbound.NewPublisher(queue, logger), logger),
		}, nil

	default:
		return nil, fmt.Errorf("bootstrap: unknown DISPATCH_MODE %q", cfg.DispatchMode)
	}
}

// BuildSQSWorker drains the SQS inbound queue.
func BuildSQSWorker(cfg *appconfig.Config, processor inbound.MessageProcessor, clients AWSClients, logger *logging.Logger) (*inbound.Worker, error) {
	queue, err := buildSQSQueue(cfg, clients)
	if err != nil {
		return nil, err
	}
	return inbound.NewWorker(processor, queue, logger,
		inbound.WithWorkerCount(cfg.WorkerCount),
		inbound.WithReceiveWaitSeconds(20),
		inbound.WithReceiveBatchSize(10),
	), nil
}

func buildSQSQueue(cfg *appconfig.Config, clients AWSClients) (*inbound.SQSQueue, error) {
	if cfg.InboundQueueURL == "" {
		return nil, fmt.Errorf("bootstrap: INBOUND_QUEUE_URL is required for sqs dispatch")
	}
	if clients.SQS == nil {
		return nil, fmt.Errorf("bootstrap: sqs dispatch needs an sqs client")
	}
	return inbound.NewSQSQueue(clients.SQS, cfg.InboundQueueURL), nil
}
