package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yegors/sectional/internal/config"
	"github.com/yegors/sectional/internal/websocket"
	"github.com/yegors/sectional/pkg/logger"
)

// NewRouter builds the HTTP router: the ratings API, the metrics endpoint,
// the websocket upgrade path, and optional static dashboard serving.
func NewRouter(handler *Handler, cfg *config.Config, log *logger.Logger, wsServer *websocket.Server) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(cfg.Server.CORSAllowedOrigins))

	r.Route("/api", func(r chi.Router) {
		r.Get("/ratings", handler.GetRatings)
		r.Get("/ratings/{id}", handler.GetRating)
		r.Get("/colors", handler.GetColors)
		r.Get("/status", handler.GetStatus)
		r.Post("/refresh", handler.PostRefresh)
	})

	r.Get("/ws", wsServer.HandleConnection)
	r.Handle("/metrics", promhttp.Handler())

	if cfg.Server.StaticFilesDir != "" {
		dashboard := NewDashboardHandler(cfg.Server.StaticFilesDir, log)
		r.NotFound(dashboard.ServeHTTP)
	}

	return r
}

// corsMiddleware applies the configured CORS policy. An empty origin list
// means same-origin only; "*" allows everything.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || allowed[origin]) {
				if allowAll {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Vary", "Origin")
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
