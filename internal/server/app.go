// Package server wires the gateway together: storage, session manager,
// cache, the auth gateway in front of the wrapped application, and the
// background sweeper. It also handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/authgate/internal/dbx"
	"github.com/dmitrijs2005/authgate/internal/logging"
	"github.com/dmitrijs2005/authgate/internal/server/cache"
	"github.com/dmitrijs2005/authgate/internal/server/config"
	"github.com/dmitrijs2005/authgate/internal/server/gateway"
	"github.com/dmitrijs2005/authgate/internal/server/httpapi"
	"github.com/dmitrijs2005/authgate/internal/server/metrics"
	"github.com/dmitrijs2005/authgate/internal/server/password"
	"github.com/dmitrijs2005/authgate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authgate/internal/server/services"
	"github.com/redis/go-redis/v9"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	sessions *services.SessionManager
	server   *httpapi.HTTPServer
	closers  []func() error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	return newApp(ctx, c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	app := &App{config: c, logger: logger}

	dialect, err := dbx.ParseDialect(c.DatabaseDriver)
	if err != nil {
		return nil, err
	}

	db, err := dbx.Open(dialect, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.db = db
	app.closers = append(app.closers, db.Close)

	rm, err := repomanager.NewSQLRepositoryManager(dialect)
	if err != nil {
		app.Close()
		return nil, err
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		app.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	argon, err := password.NewArgon2(password.DefaultParams)
	if err != nil {
		app.Close()
		return nil, err
	}

	store := services.NewCredentialStore(db, rm, password.NewVerifier(argon, c.AcceptLegacyHashes),
		services.WithStoreTimeout(c.StoreTimeout),
		services.WithStoreLogger(logger.With("module", "credential_store")),
	)

	created, err := store.EnsureUser(ctx, services.SeedAdmin{
		Account:  c.AdminAccount,
		Password: c.AdminPassword,
		UserName: c.AdminUserName,
		Email:    c.AdminEmail,
		Points:   c.AdminPoints,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("seed admin: %w", err)
	}
	if created {
		logger.Info(ctx, "seed administrator created", "account", c.AdminAccount)
	}

	sessionCache, err := app.newCache(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	mx := metrics.New()

	app.sessions = services.NewSessionManager(store, c.SessionTTL,
		services.WithCache(sessionCache),
		services.WithMetrics(mx),
		services.WithManagerLogger(logger.With("module", "session_manager")),
	)

	gw := gateway.New(app.sessions,
		gateway.WithTimeout(c.StoreTimeout),
		gateway.WithMetrics(mx),
		gateway.WithLogger(logger.With("module", "gateway")),
	)

	upstream, err := httpapi.NewUpstreamProxy(c.UpstreamURL, logger.With("module", "proxy"))
	if err != nil {
		app.Close()
		return nil, err
	}

	app.server = httpapi.NewHTTPServer(c.ListenAddr, logger, app.sessions, gw, upstream, mx)
	return app, nil
}

// newCache builds the session view cache selected by the configuration.
func (app *App) newCache(ctx context.Context) (cache.Cache, error) {
	c := app.config
	switch c.CacheBackend {
	case config.CacheNone:
		return cache.None{}, nil
	case config.CacheRedis:
		rdb := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping %s: %w", c.RedisAddr, err)
		}
		app.closers = append(app.closers, rdb.Close)
		return cache.NewRedis(rdb, c.RedisPrefix, c.CacheMaxAge), nil
	default:
		return cache.NewMemory(c.CacheMaxAge), nil
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a shutdown signal arrives, then
// releases the database and cache connections.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.sessions.RunSweeper(ctx, app.config.SweepInterval)
	}()

	wg.Wait()

	app.Close()
	app.logger.Info(context.Background(), "App stopped")
}

// Close releases everything NewApp opened, in reverse order.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
	app.closers = nil
}
