package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/wolfdaybr/validapass/internal/webhook"
)

// SetupRoutes configures the HTTP surface: the public webhook and validation
// endpoints plus the operator API used by the admin panel. allowedOrigins
// feeds the CORS policy for the admin panel's browser requests.
func SetupRoutes(h *Handlers, webhookHandler *webhook.Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Hubla-Token", "X-Hubla-Webhook-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)

	// Provider callbacks authenticate with their own tokens, not the
	// operator auth.
	r.Post("/webhooks/sales", webhookHandler.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Post("/validate", h.ValidateTicket)

		r.Route("/email-queue", func(r chi.Router) {
			r.Get("/", h.ListEmailQueue)
			r.Post("/process", h.ProcessEmailQueue)
			r.Post("/reset-failed", h.ResetFailedEmails)
		})

		r.Get("/webhook-logs", h.ListWebhookLogs)

		r.Post("/tickets/send-email", h.SendTicketEmail)
	})

	return r
}
