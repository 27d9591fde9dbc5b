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

	httpapi "github.com/tabservice/journeyd/internal/journey/http"
	"github.com/tabservice/journeyd/internal/journey/service"
	"github.com/tabservice/journeyd/internal/journey/store"
	"github.com/tabservice/journeyd/internal/journey/store/drivers/sqlite"
	"github.com/tabservice/journeyd/pkg/cryptox"
	"github.com/tabservice/journeyd/pkg/jwtx"
	"github.com/tabservice/journeyd/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application wires the journey service together: storage, signing keys,
// business services and the HTTP server.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db         store.Store
	keyManager *jwtx.KeyManager

	clientService       *service.ClientService
	journeyService      *service.JourneyService
	tokenService        *service.TokenService
	exchangeService     *service.ExchangeService
	keyService          *service.KeyService
	webAuthService      *service.WebAuthService
	registryService     *service.RegistryService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "journeyd",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if cfg.MasterKeyPath != "" {
		cryptox.SetMasterKeyPath(cfg.MasterKeyPath)
		app.logger.Info("master key path configured", "path", cfg.MasterKeyPath)
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := app.initKeys(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()

	if err := app.seedAdminUser(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("journey service starting",
		"port", app.cfg.Port,
		"issuer", app.cfg.Issuer,
		"version", BuildVersion,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
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

// Shutdown gracefully stops the HTTP server, the housekeeping worker and
// the database, in that order.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down journey service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("journey service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	db, err := sqlite.New(context.Background(), app.cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initKeys restores every non-expired signing key from the database and
// installs the newest active one as the signer, generating a fresh key
// when none survives. Tokens issued before a restart stay verifiable.
func (app *Application) initKeys(ctx context.Context) error {
	keyManager, err := jwtx.NewPersistentKeyManager(ctx, jwtx.PersistentKeyManagerOptions{
		Store:   store.NewKeyStoreAdapter(app.db.SigningKeys()),
		RSABits: app.cfg.RSABits,
		KeyTTL:  app.cfg.KeyTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize signing keys: %w", err)
	}
	app.keyManager = keyManager

	app.logger.Info("signing keys loaded",
		"active_kid", keyManager.ActiveKID(),
		"key_ttl", app.cfg.KeyTTL,
	)
	return nil
}

func (app *Application) initServices() {
	downstream := service.NewHTTPDownstreamClient()

	app.clientService = &service.ClientService{Store: app.db}

	app.journeyService = &service.JourneyService{
		Store:       app.db,
		Downstream:  downstream,
		CallbackURL: app.cfg.CallbackURL,
	}

	app.tokenService = &service.TokenService{
		KeyManager: app.keyManager,
		Store:      app.db,
		Issuer:     app.cfg.Issuer,
	}

	app.exchangeService = &service.ExchangeService{
		Store:      app.db,
		KeyManager: app.keyManager,
		Downstream: downstream,
		Issuer:     app.cfg.Issuer,
	}

	app.keyService = &service.KeyService{
		Store:       app.db,
		KeyManager:  app.keyManager,
		RSABits:     app.cfg.RSABits,
		KeyTTL:      app.cfg.KeyTTL,
		GracePeriod: app.cfg.KeyGracePeriod,
	}

	app.webAuthService = &service.WebAuthService{
		KeyManager: app.keyManager,
		Store:      app.db,
		Issuer:     app.cfg.Issuer,
	}

	app.registryService = &service.RegistryService{Store: app.db}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.keyService,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// seedAdminUser creates the configured operator account for the registry
// surface. A username collision means the account already exists and is
// not an error.
func (app *Application) seedAdminUser(ctx context.Context) error {
	if app.cfg.AdminUsername == "" || app.cfg.AdminPassword == "" {
		return nil
	}

	_, err := app.webAuthService.CreateUser(ctx, app.cfg.AdminUsername, app.cfg.AdminPassword)
	switch {
	case err == nil:
		app.logger.Info("admin user seeded", "username", app.cfg.AdminUsername)
	case errors.Is(err, service.ErrUsernameTaken):
		app.logger.Debug("admin user already exists", "username", app.cfg.AdminUsername)
	default:
		return fmt.Errorf("failed to seed admin user: %w", err)
	}
	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keyManager.KeySet,
		app.cfg.Issuer,
		app.cfg.ConsentURL,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.ClientService = app.clientService
	router.JourneyService = app.journeyService
	router.TokenService = app.tokenService
	router.ExchangeService = app.exchangeService
	router.KeyService = app.keyService
	router.WebAuthService = app.webAuthService
	router.RegistryService = app.registryService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
