package bootstrap

import (
	"fmt"

	"github.com/vatosalfa/agenda-messaging/internal/archive"
	appconfig "github.com/vatosalfa/agenda-messaging/internal/config"
	"github.com/vatosalfa/agenda-messaging/internal/conversations"
	"github.com/vatosalfa/agenda-messaging/internal/inbound"
	"github.com/vatosalfa/agenda-messaging/internal/notify"
	"github.com/vatosalfa/agenda-messaging/internal/observability/metrics"
	"github.com/vatosalfa/agenda-messaging/internal/reservations"
	"github.com/vatosalfa/agenda-messaging/pkg/logging"
)

// Pipeline is the inbound processor plus the recorder the admin inbox shares.
type Pipeline struct {
	Processor *inbound.Processor
	Recorder  *conversations.Recorder
}

// BuildPipeline wires classifier, locator, applier and recorder, plus media
// archival and staff alerts when configured.
func BuildPipeline(cfg *appconfig.Config, stores *Stores, clients AWSClients, m *metrics.InboundMetrics, logger *logging.Logger) (*Pipeline, error) {
	if cfg == nil || stores == nil {
		return nil, fmt.Errorf("bootstrap: config and stores are required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	loc := cfg.Location()
	locator := reservations.NewLocator(stores.Reservations, logger, reservations.WithLocation(loc))
	applier := reservations.NewApplier(stores.Reservations, logger)
	recorder := conversations.NewRecorder(stores.Conversations, logger)

	opts := []inbound.ProcessorOption{inbound.WithMetrics(m)}
	if archiver := BuildMediaArchiver(cfg, clients, logger); archiver != nil {
		opts = append(opts, inbound.WithMediaArchiver(archiver))
	}
	if notifier := BuildCancellationNotifier(cfg, clients, logger); notifier != nil {
		opts = append(opts, inbound.WithCancellationNotifier(notifier))
	}

	logger.Info("inbound pipeline ready", "timezone", loc.String(), "store", stores.Backend)
	return &Pipeline{
		Processor: inbound.NewProcessor(locator, applier, recorder, logger, opts...),
		Recorder:  recorder,
	}, nil
}

// BuildMediaArchiver returns nil unless a bucket and an S3 client are available.
func BuildMediaArchiver(cfg *appconfig.Config, clients AWSClients, logger *logging.Logger) *archive.MediaArchiver {
	if cfg.MediaArchiveBucket == "" || clients.S3 == nil {
		logger.Info("media archival disabled")
		return nil
	}
	archiver := archive.NewMediaArchiver(clients.S3, cfg.MediaArchiveBucket, cfg.TwilioAccountSID, cfg.TwilioAuthToken, logger)
	if !archiver.Enabled() {
		return nil
	}
	logger.Info("media archival enabled", "bucket", cfg.MediaArchiveBucket)
	return archiver
}

// BuildCancellationNotifier picks the email transport from EMAIL_PROVIDER.
// Without STAFF_ALERT_EMAIL no alerts are sent.
func BuildCancellationNotifier(cfg *appconfig.Config, clients AWSClients, logger *logging.Logger) *notify.CancellationNotifier {
	if cfg.StaffAlertEmail == "" {
		logger.Info("staff cancellation alerts disabled")
		return nil
	}
	email := BuildEmailSender(cfg, clients, logger)
	return notify.NewCancellationNotifier(email, cfg.StaffAlertEmail, logger)
}

// BuildEmailSender falls back to a logging stub when the chosen provider is
// not configured.
func BuildEmailSender(cfg *appconfig.Config, clients AWSClients, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "ses":
		// Check before the pointer is boxed into the sesAPI interface.
		if clients.SES == nil {
			break
		}
		if sender := notify.NewSESSender(clients.SES, notify.SESConfig{
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			logger.Info("staff alerts via ses")
			return sender
		}
	default:
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			logger.Info("staff alerts via sendgrid")
			return sender
		}
	}
	logger.Warn("email provider not configured; staff alerts will only be logged", "provider", cfg.EmailProvider)
	return notify.NewStubEmailSender(logger)
}
