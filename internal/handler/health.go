package handler

import (
	"log/slog"
	"net/http"
)

// Pinger reports whether a dependency is reachable. sqlite.DB implements it.
type Pinger interface {
	Ping() error
}

// Health returns the /healthz handler. It answers "ok" while the database
// responds and 503 otherwise.
func Health(db Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := db.Ping(); err != nil {
			logger.Error("health check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("unavailable"))
			return
		}
		w.Write([]byte("ok"))
	}
}
