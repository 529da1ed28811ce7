package api

import (
	"context"
	"net/http"
	"time"
)

var endpoints = map[string]string{
	"opportunities": "/api/v1/opportunities",
	"venues":        "/api/v1/venues",
	"markets":       "/api/v1/markets",
	"backtests":     "/api/v1/backtests",
	"stats":         "/api/v1/stats",
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":             serviceName + " is running",
		"version":             s.cfg.App.Version,
		"docs":                "/docs",
		"health":              "/health",
		"endpoints":           endpoints,
		"database_configured": s.db != nil,
		"environment":         s.cfg.App.Environment,
		"cors_enabled":        len(s.cfg.Server.CORSOrigins) > 0,
	})
}

// handleHealth reports service health for deployment monitoring
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := "not_configured"
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.db.Ping(ctx); err != nil {
			s.logger.WithError(err).Warn("Health check failed")
			respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": timestamp(),
			})
			return
		}
		dbStatus = "connected"
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": timestamp(),
		"database":  dbStatus,
		"version":   s.cfg.App.Version,
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusNotFound, map[string]interface{}{
		"detail":              "Endpoint not found",
		"path":                r.URL.String(),
		"method":              r.Method,
		"timestamp":           timestamp(),
		"available_endpoints": endpoints,
	})
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.respondError(w, r, http.StatusMethodNotAllowed, "Method Not Allowed", nil)
}
