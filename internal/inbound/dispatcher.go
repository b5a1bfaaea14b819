package inbound

import (
	"context"
	"fmt"
	"time"

	"github.com/vatosalfa/agenda-messaging/pkg/logging"
)

// Dispatcher hands an accepted inbound message off for processing. A nil
// error means the webhook may acknowledge.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// SyncDispatcher processes inline before the acknowledgement. Processing
// errors are logged and never returned.
type SyncDispatcher struct {
	processor MessageProcessor
	logger    *logging.Logger
}

func NewSyncDispatcher(processor MessageProcessor, logger *logging.Logger) *SyncDispatcher {
	if processor == nil {
		panic("inbound: processor cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SyncDispatcher{processor: processor, logger: logger}
}

func (d *SyncDispatcher) Dispatch(ctx context.Context, msg Message) error {
	if _, err := d.processor.Process(ctx, msg); err != nil {
		d.logger.Error("inbound processing failed", "error", err, "message_sid", msg.MessageSID)
	}
	return nil
}

const defaultPublishTimeout = 3 * time.Second

// QueueDispatcher publishes a job and returns once the queue accepts it.
type QueueDispatcher struct {
	publisher *Publisher
	timeout   time.Duration
	logger    *logging.Logger
}

func NewQueueDispatcher(publisher *Publisher, logger *logging.Logger) *QueueDispatcher {
	if publisher == nil {
		panic("inbound: publisher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &QueueDispatcher{publisher: publisher, timeout: defaultPublishTimeout, logger: logger}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	jobID, err := d.publisher.EnqueueMessage(ctx, msg)
	if err != nil {
		return fmt.Errorf("inbound: dispatch: %w", err)
	}
	d.logger.Info("inbound message queued", "job_id", jobID, "message_sid", msg.MessageSID)
	return nil
}

var (
	_ Dispatcher = (*SyncDispatcher)(nil)
	_ Dispatcher = (*QueueDispatcher)(nil)
)
