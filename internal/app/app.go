package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/florianilch/smartrade/internal/broker"
	"github.com/florianilch/smartrade/internal/guard"
	"github.com/florianilch/smartrade/internal/loginflow"
	"github.com/florianilch/smartrade/internal/server"
	"github.com/florianilch/smartrade/internal/session"
	"github.com/florianilch/smartrade/internal/tokenstore"
)

// App owns the process-wide session and the components built around it.
type App struct {
	cfg *Config

	store      tokenstore.Store
	closeStore func() error
	session    *session.Session
	broker     *broker.Client
	login      *loginflow.Flow
	router     *guard.Router
	server     *server.Server
}

// New creates a new App instance. Selecting the storage medium may probe the
// host (keyring, directory, redis); the session itself is not restored until
// Start or an explicit Session().Initialize.
func New(ctx context.Context, cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, closeStore, err := cfg.NewTokenStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}
	slog.DebugContext(ctx, "token storage ready", "medium", fmt.Sprint(store))

	a, err := newApp(cfg, store)
	if err != nil {
		_ = closeStore()
		return nil, err
	}
	a.closeStore = closeStore
	return a, nil
}

func newApp(cfg *Config, store tokenstore.Store) (*App, error) {
	sess, err := session.New(store)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	brokerClient, err := broker.New(cfg.BrokerClientConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create broker client: %w", err)
	}

	login, err := loginflow.New(brokerClient, sess, loginflow.WithAttemptLimit(cfg.Login.MaxAttempts, cfg.Login.Window))
	if err != nil {
		return nil, fmt.Errorf("failed to create login flow: %w", err)
	}

	tokenSource, err := NewSessionTokenSource(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to create token source: %w", err)
	}

	router := guard.NewRouter(guard.Routes(sess))

	srv, err := server.New(server.Dependencies{
		Session:         sess,
		Router:          router,
		Login:           login,
		BrokerURL:       brokerClient.BaseURL(),
		BrokerTransport: brokerClient.Transport(),
		TokenSource:     tokenSource,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return &App{
		cfg:        cfg,
		store:      store,
		closeStore: func() error { return nil },
		session:    sess,
		broker:     brokerClient,
		login:      login,
		router:     router,
		server:     srv,
	}, nil
}

// Session returns the process-wide session.
func (a *App) Session() *session.Session {
	return a.session
}

// LoginFlow returns the login flow bound to the session.
func (a *App) LoginFlow() *loginflow.Flow {
	return a.login
}

// StorageMedium names the selected storage medium.
func (a *App) StorageMedium() string {
	return fmt.Sprint(a.store)
}

// Close releases resources held by a non-serving App.
func (a *App) Close() error {
	a.router.Close()
	return a.closeStore()
}

// Start restores the session in the background, serves the front end and
// blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	var shutdownFuncs []func(context.Context) error

	shutdownFuncs = append(shutdownFuncs, func(context.Context) error {
		return a.Close()
	})

	// Views render the loading state until the restore completes
	g.Go(func() error {
		a.session.Initialize(gCtx)
		return nil
	})

	slog.InfoContext(gCtx, "starting server", "address", address)
	serverErrCh, err := a.server.Start(gCtx, address)
	if err != nil {
		_ = a.Close()
		return fmt.Errorf("server startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.server.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-serverErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "server runtime error", "error", err)
				return fmt.Errorf("server: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", address, "storage", a.StorageMedium())

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}
