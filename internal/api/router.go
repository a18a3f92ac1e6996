package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-lightnode/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	// Prometheus scrape endpoint
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	// Status page (embedded)
	if s.panel != nil {
		r.Handle("/panel/*", http.StripPrefix("/panel", s.panel))
		r.Handle("/panel", http.RedirectHandler("/panel/", http.StatusMovedPermanently))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// The provisioning client is a phone joining for the first time
		// and holds no operator token.
		r.Route("/provisioning", func(r chi.Router) {
			r.Get("/", s.handleProvisioningStatus)
			r.Post("/credentials", s.handleProvisioningCredentials)
		})

		r.With(s.requirePermission(auth.PermStatusRead)).Get("/status", s.handleStatus)
		r.With(s.requirePermission(auth.PermStatusRead)).Get("/events", s.handleEvents)
		r.With(s.requirePermission(auth.PermStatusRead)).Get("/ws", s.handleWebSocket)

		r.Route("/link", func(r chi.Router) {
			r.With(s.requirePermission(auth.PermLinkOperate)).Post("/reconnect", s.handleReconnect)
			r.With(s.requirePermission(auth.PermProvision)).Post("/provisioning", s.handleStartProvisioning)
		})

		r.With(s.requirePermission(auth.PermLinkOperate)).Post("/session/reset", s.handleSessionReset)
		r.With(s.requirePermission(auth.PermLightOperate)).Post("/light", s.handleLightCommand)
		r.With(s.requirePermission(auth.PermFactoryReset)).Post("/system/factory-reset", s.handleFactoryReset)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   s.version,
		"device_id": s.deviceID,
	})
}
