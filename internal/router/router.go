package router

import (
	"net/http"

	"planwise/tracking-engine/internal/handler"

	"go.uber.org/zap"
)

func New(sessionHandler *handler.SessionHandler, eventHandler *handler.EventHandler, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Session intents
	mux.HandleFunc("/api/v1/session/start", sessionHandler.Start)
	mux.HandleFunc("/api/v1/session/stop", sessionHandler.Stop)
	mux.HandleFunc("/api/v1/session/resolve-conflict", sessionHandler.ResolveConflict)
	mux.HandleFunc("/api/v1/session/status", sessionHandler.Status)

	// Event endpoints
	mux.HandleFunc("/api/v1/events", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			eventHandler.CreateEvent(w, r)
		case http.MethodGet:
			eventHandler.QueryEvents(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/v1/events/series", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			eventHandler.EditSeries(w, r)
		case http.MethodDelete:
			eventHandler.DeleteSeries(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Logging middleware
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
		)
		mux.ServeHTTP(w, r)
	})
}
