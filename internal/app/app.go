package app

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

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/storefront/adapters/events"
	"github.com/layer-3/storefront/adapters/store"
	"github.com/layer-3/storefront/adapters/store/sqlite"
	"github.com/layer-3/storefront/adapters/tokenizer"
	"github.com/layer-3/storefront/internal/eth"
	"github.com/layer-3/storefront/pkg/slogx"
	"github.com/layer-3/storefront/ports"
	"github.com/layer-3/storefront/service"
	httpapi "github.com/layer-3/storefront/transport/http"
	"github.com/redis/go-redis/v9"
)

// BuildVersion is overridden at build time:
//
//	go build -ldflags "-X github.com/layer-3/storefront/internal/app.BuildVersion=v1.2.3"
var BuildVersion = "v0.1.0"

// Application wires the storefront auth service and owns its resources
type Application struct {
	cfg    Config
	logger *slog.Logger

	identities ports.IdentityStore
	nonces     ports.NonceStore
	publisher  ports.EventPublisher

	// closers run in reverse order on shutdown
	closers []func() error

	authService *service.AuthService
	server      *http.Server
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "storefront-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initIdentityStore(); err != nil {
		return nil, err
	}

	if err := app.initRedis(); err != nil {
		app.close()
		return nil, err
	}

	if err := app.initService(); err != nil {
		app.close()
		return nil, err
	}

	if err := app.initHTTP(); err != nil {
		app.close()
		return nil, err
	}

	return app, nil
}

// Handler exposes the HTTP handler, mainly for tests
func (app *Application) Handler() http.Handler {
	return app.server.Handler
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.logger.Info("storefront auth starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.close()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down storefront auth...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	err := app.close()

	app.logger.Info("storefront auth stopped")
	return err
}

func (app *Application) close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Error("error releasing resource", "error", err)
			errs = append(errs, err)
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}

// initIdentityStore opens SQLite when a database file is configured and falls
// back to an in-memory store otherwise
func (app *Application) initIdentityStore() error {
	if app.cfg.DatabaseFile == "" {
		app.logger.Warn("no database configured, identities are kept in memory")
		app.identities = store.NewMemoryIdentityStore()
		return nil
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "file", app.cfg.DatabaseFile)
	app.identities = db
	app.closers = append(app.closers, db.Close)
	return nil
}

// initRedis connects the nonce store and the login event stream to Redis when
// a URL is configured. Without Redis nonces are tracked in memory and login
// events are dropped.
func (app *Application) initRedis() error {
	if app.cfg.RedisURL == "" {
		app.nonces = store.NewMemoryNonceStore()
		app.publisher = events.NopPublisher{}
		return nil
	}

	opts, err := redis.ParseURL(app.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	app.closers = append(app.closers, client.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: client,
		},
		watermill.NewSlogLogger(app.logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create Redis publisher: %w", err)
	}
	app.closers = append(app.closers, publisher.Close)

	app.nonces = store.NewRedisNonceStore(client)
	app.publisher = events.NewWatermillPublisher(publisher)

	app.logger.Info("redis connected", "addr", opts.Addr, "db", opts.DB)
	return nil
}

func (app *Application) initService() error {
	key, err := LoadSigningKey(app.cfg, app.logger)
	if err != nil {
		return err
	}

	opts := []service.Option{
		service.WithDefaultDomain(app.cfg.DefaultDomain),
		service.WithStatement(app.cfg.Statement),
		service.WithChainID(app.cfg.ChainID),
	}
	if app.cfg.ReplayProtection {
		app.logger.Info("replay protection enabled")
		opts = append(opts, service.WithReplayProtection(app.nonces))
	}

	app.authService = service.NewAuthService(
		app.identities,
		tokenizer.NewJWTTokenizer(key, app.cfg.Issuer, app.cfg.AccessTTL),
		eth.Recoverer{},
		app.publisher,
		opts...,
	)
	return nil
}

func (app *Application) initHTTP() error {
	if app.cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	router, err := httpapi.SetupRouter(app.authService, app.logger, httpapi.RouterConfig{
		RateLimit: httpapi.RateLimitConfig{
			RequestsPerWindow: app.cfg.RateLimitRequests,
			Window:            app.cfg.RateLimitWindow,
			Burst:             app.cfg.RateLimitBurst,
		},
		TrustedProxies: app.cfg.TrustedProxies,
	})
	if err != nil {
		return err
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}
