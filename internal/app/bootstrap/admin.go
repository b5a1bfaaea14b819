package bootstrap

import (
	"fmt"

	"github.com/vatosalfa/agenda-messaging/internal/conversations"
	"github.com/vatosalfa/agenda-messaging/internal/http/handlers"
	"github.com/vatosalfa/agenda-messaging/internal/messaging"
	"github.com/vatosalfa/agenda-messaging/internal/messaging/templates"
	"github.com/vatosalfa/agenda-messaging/pkg/logging"
)

// BuildAdminInbox wires the staff inbox API. Without an outbound sender the
// inbox is read-only.
func BuildAdminInbox(recorder *conversations.Recorder, sender *messaging.TwilioSender, logger *logging.Logger) (*handlers.AdminInboxHandler, error) {
	if logger == nil {
		logger = logging.Default()
	}
	renderer, err := templates.NewRenderer(templates.Defaults)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: reply templates: %w", err)
	}
	cfg := handlers.AdminInboxConfig{
		Inbox:    recorder,
		Renderer: renderer,
		Logger:   logger,
	}
	if sender != nil {
		cfg.Sender = sender
	} else {
		logger.Warn("twilio sender not configured; admin inbox is read-only")
	}
	return handlers.NewAdminInboxHandler(cfg), nil
}
