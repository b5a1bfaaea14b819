package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vatosalfa/agenda-messaging/internal/http/handlers"
	httpmiddleware "github.com/vatosalfa/agenda-messaging/internal/http/middleware"
	"github.com/vatosalfa/agenda-messaging/internal/messaging"
	"github.com/vatosalfa/agenda-messaging/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	MessagingHandler   *messaging.Handler
	AdminInbox         *handlers.AdminInboxHandler
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// WebhookRateLimit is requests per second per IP on the webhook; zero disables it.
	WebhookRateLimit float64
	WebhookBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	if cfg == nil || cfg.MessagingHandler == nil {
		panic("router: messaging handler is required")
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", cfg.MessagingHandler.HealthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		public.Route("/messaging", func(r chi.Router) {
			if cfg.WebhookRateLimit > 0 {
				r.Use(httpmiddleware.RateLimit(cfg.WebhookRateLimit, cfg.WebhookBurst))
			}
			r.Post("/twilio/webhook", cfg.MessagingHandler.TwilioWebhook)
		})
	})

	// Staff inbox, protected by HMAC JWT.
	if cfg.AdminInbox != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Use(middleware.Compress(5))

			admin.Get("/conversations", cfg.AdminInbox.ListConversations)
			admin.Get("/conversations/{conversationID}/messages", cfg.AdminInbox.ListMessages)
			admin.Post("/conversations/{conversationID}/read", cfg.AdminInbox.MarkRead)
			admin.Post("/messages:send", cfg.AdminInbox.SendMessage)
			admin.Get("/templates", cfg.AdminInbox.ListTemplates)
		})
	}

	return r
}
