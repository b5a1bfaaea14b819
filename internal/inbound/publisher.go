package inbound

import (
	"context"
	"fmt"

	"github.com/vatosalfa/agenda-messaging/pkg/logging"
)

// Publisher enqueues inbound message jobs for asynchronous processing.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("inbound: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// EnqueueMessage publishes one inbound message job and returns its id.
func (p *Publisher) EnqueueMessage(ctx context.Context, msg Message) (string, error) {
	payload, body, err := encodePayload(queuePayload{Kind: jobTypeInboundMessage, Message: msg})
	if err != nil {
		return "", err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return "", fmt.Errorf("inbound: failed to enqueue job: %w", err)
	}
	p.logger.Debug("inbound job enqueued", "job_id", payload.ID, "message_sid", msg.MessageSID)
	return payload.ID, nil
}
