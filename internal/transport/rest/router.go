package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/frahmantamala/user-management/api"
	"github.com/frahmantamala/user-management/internal"
	"github.com/frahmantamala/user-management/internal/transport/middleware"
	"github.com/frahmantamala/user-management/internal/transport/swagger"
	"github.com/frahmantamala/user-management/internal/user"
)

type RouterOptions struct {
	AllowedOrigins []string
	Metrics        internal.MetricsConfig
}

// NewRouter builds the HTTP handler tree. db may be nil, in which case the
// health endpoint only reports liveness.
func NewRouter(db *sqlx.DB, userHandler *user.Handler, opts RouterOptions, logger *slog.Logger) *chi.Mux {
	router := chi.NewRouter()
	RegisterAllRoutes(router, db, userHandler, opts, logger)
	return router
}

func RegisterAllRoutes(router *chi.Mux, db *sqlx.DB, userHandler *user.Handler, opts RouterOptions, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	router.Use(middleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.CORS(opts.AllowedOrigins))
	if opts.Metrics.Enabled {
		router.Use(middleware.Metrics)
		router.Handle(opts.Metrics.Path, promhttp.Handler())
	}

	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(api.OpenAPISpec)
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if userHandler != nil {
			r.Route("/users", func(ur chi.Router) {
				ur.Get("/", userHandler.ListUsers)
				ur.Post("/", userHandler.CreateUser)
				ur.Get("/{id}", userHandler.GetUser)
				ur.Put("/{id}", userHandler.UpdateUser)
				ur.Delete("/{id}", userHandler.DeleteUser)
				ur.Put("/{id}/favorites", userHandler.ReplaceFavorites)
				ur.Put("/{id}/permissions", userHandler.UpdatePermissions)
			})
		}
	})
}
