package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/user-management/api"
	"github.com/frahmantamala/user-management/internal"
	"github.com/frahmantamala/user-management/internal/auth"
	"github.com/frahmantamala/user-management/internal/metrics"
	"github.com/frahmantamala/user-management/internal/transport/rest"
	"github.com/frahmantamala/user-management/internal/user"
	userPostgres "github.com/frahmantamala/user-management/internal/user/postgres"
	"github.com/frahmantamala/user-management/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config      *internal.Config
	DB          *Database
	Router      *chi.Mux
	UserService *user.Service
	Logger      *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	lg := deps.Logger

	if deps.Config.Seed.Enabled {
		if _, err := user.SeedDefaults(context.Background(), deps.UserService); err != nil {
			lg.Error("Seeding failed", "error", err)
			os.Exit(1)
		}
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	lg.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	stopPool := make(chan struct{})
	if deps.Config.Observability.Metrics.Enabled {
		go recordPoolStats(deps.DB, stopPool)
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		lg.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), deps.Config.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			lg.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("Server failed to start", "error", err)
			close(stopPool)
			_ = deps.DB.Close()
			os.Exit(1)
		}
	}

	close(stopPool)
	if err := deps.DB.Close(); err != nil {
		lg.Error("Database close error", "error", err)
	}
	lg.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	setupLogger(config)
	lg := logger.L()

	if err := validateOpenAPI(); err != nil {
		lg.Warn("OpenAPI document failed validation", "error", err)
	}

	db, err := initDB(config.Database, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	userService := newUserService(config, db, lg)
	userHandler := user.NewHandler(userService, lg)

	router := rest.NewRouter(db.SQLX, userHandler, rest.RouterOptions{
		AllowedOrigins: config.Server.Origins(),
		Metrics:        config.Observability.Metrics,
	}, lg)

	return &Dependencies{
		Config:      config,
		DB:          db,
		Router:      router,
		UserService: userService,
		Logger:      lg,
	}, nil
}

func newUserService(cfg *internal.Config, db *Database, lg *slog.Logger) *user.Service {
	store := userPostgres.NewUserRepository(db.Gorm)
	hasher := auth.NewBcryptHasher(cfg.Security.BCryptCost)
	return user.NewService(store, hasher, cfg.Database.QueryTimeout, lg)
}

func validateOpenAPI() error {
	doc, err := openapi3.NewLoader().LoadFromData(api.OpenAPISpec)
	if err != nil {
		return err
	}
	return doc.Validate(context.Background())
}

func recordPoolStats(db *Database, stop <-chan struct{}) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		metrics.RecordDBPoolMetrics(db.SQLX.DB)
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}
