package bootstrap

import (
	"github.com/redis/go-redis/v9"

	appconfig "github.com/vatosalfa/agenda-messaging/internal/config"
	"github.com/vatosalfa/agenda-messaging/internal/inbound"
	"github.com/vatosalfa/agenda-messaging/internal/messaging"
	"github.com/vatosalfa/agenda-messaging/internal/observability/metrics"
	"github.com/vatosalfa/agenda-messaging/pkg/logging"
)

// BuildMessagingHandler wires the Twilio webhook. A missing auth token is
// logged and leaves the handler answering 500, so misconfiguration is loud.
func BuildMessagingHandler(cfg *appconfig.Config, dispatcher inbound.Dispatcher, redisClient *redis.Client, m *metrics.MessagingMetrics, logger *logging.Logger) *messaging.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	validator, err := messaging.NewSignatureValidator(cfg.TwilioAuthToken)
	if err != nil {
		logger.Error("twilio webhook unconfigured", "error", err)
	}

	opts := []messaging.HandlerOption{
		messaging.WithMessagingMetrics(m),
		messaging.WithPublicBaseURL(cfg.PublicBaseURL),
	}
	if redisClient != nil {
		opts = append(opts, messaging.WithDeduper(messaging.NewRedisDeduper(redisClient, cfg.DedupeTTL)))
		logger.Info("webhook dedupe via redis", "ttl", cfg.DedupeTTL.String())
	} else {
		opts = append(opts, messaging.WithDeduper(messaging.NewMemoryDeduper(cfg.DedupeTTL)))
		logger.Info("webhook dedupe in memory", "ttl", cfg.DedupeTTL.String())
	}
	return messaging.NewHandler(validator, dispatcher, logger, opts...)
}

// BuildOutboundSender returns nil without Twilio credentials.
func BuildOutboundSender(cfg *appconfig.Config, m *metrics.MessagingMetrics, logger *logging.Logger) *messaging.TwilioSender {
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioFromNumber == "" {
		return nil
	}
	return messaging.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger,
		messaging.WithSenderMetrics(m))
}
