package router

import (
	"net/http"

	"github.com/glowhaven/whatsapp-booking/internal/http/handlers"
	httpmiddleware "github.com/glowhaven/whatsapp-booking/internal/http/middleware"
	"github.com/glowhaven/whatsapp-booking/pkg/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	WhatsAppWebhook *handlers.WhatsAppWebhookHandler
	DarajaCallback  *handlers.DarajaCallbackHandler
	Health          *handlers.HealthHandler
	MetricsHandler  http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	if cfg.Health != nil {
		r.Get("/health", cfg.Health.Check)
	}
	if cfg.WhatsAppWebhook != nil {
		r.Route("/webhooks/whatsapp", func(r chi.Router) {
			r.Get("/", cfg.WhatsAppWebhook.Verify)
			r.Post("/", cfg.WhatsAppWebhook.Receive)
		})
	}
	if cfg.DarajaCallback != nil {
		r.Post("/webhooks/daraja", cfg.DarajaCallback.Receive)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}
