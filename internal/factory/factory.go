package factory

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/mcoot/estimategame/internal/dependencies/clock"
	"github.com/mcoot/estimategame/internal/dependencies/random"
	"github.com/mcoot/estimategame/internal/realtime"
	"github.com/mcoot/estimategame/internal/realtime/natsrelay"
	"github.com/mcoot/estimategame/internal/services/auth"
	"github.com/mcoot/estimategame/internal/services/bot"
	"github.com/mcoot/estimategame/internal/services/catalog"
	"github.com/mcoot/estimategame/internal/services/game"
	"github.com/mcoot/estimategame/internal/services/registry"
	"github.com/mcoot/estimategame/internal/services/scoring"
	"github.com/mcoot/estimategame/internal/storage"
	"github.com/mcoot/estimategame/internal/storage/memory"
	redisstorage "github.com/mcoot/estimategame/internal/storage/redis"
	"github.com/mcoot/estimategame/internal/storage/sqlite"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
	StorageTypeSQLite = "sqlite"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	CatalogService  *catalog.Service
	RegistryService *registry.Service
	ScoringService  *scoring.Service
	GameController  *game.Controller
	BotService      *bot.Service
	AuthService     *auth.Service

	// Realtime
	HubManager *realtime.HubManager
	Feed       *realtime.Feed
	Relay      *natsrelay.Relay

	natsConn *nats.Conn
}

// Config holds configuration for the application factory
type Config struct {
	// CatalogPath is a YAML item catalog to use instead of the built-in one (optional)
	CatalogPath string
	// AuthConfig holds configuration for the auth service (optional)
	// If zero value, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "sqlite")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SQLitePath is the database file (required if StorageType is "sqlite")
	SQLitePath string
	// NATSConfig enables cross-instance fan-out (optional)
	NATSConfig *natsrelay.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := newStorage(cfg)
	if err != nil {
		return nil, err
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()

	catalogService := catalog.New(rnd)
	if cfg.CatalogPath != "" {
		err = catalogService.LoadFromFile(cfg.CatalogPath)
	} else {
		err = catalogService.LoadDefault()
	}
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	// Use default auth config if not provided
	authCfg := cfg.AuthConfig
	if authCfg.BcryptCost == 0 {
		authCfg = auth.DefaultConfig()
	}

	var nc *nats.Conn
	var relayConn natsrelay.Conn
	if cfg.NATSConfig != nil {
		nc, err = natsrelay.Connect(*cfg.NATSConfig, logger)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		relayConn = nc
	}

	app := newWithDependencies(store, clk, rnd, catalogService, authCfg, relayConn, logger)
	app.natsConn = nc
	if app.Relay != nil {
		if err := app.Relay.Start(); err != nil {
			_ = app.Close()
			return nil, err
		}
	}
	return app, nil
}

func newStorage(cfg Config) (storage.Storage, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig)
	case StorageTypeSQLite:
		if cfg.SQLitePath == "" {
			return nil, errors.New("SQLitePath required when StorageType is sqlite")
		}
		return sqlite.Open(cfg.SQLitePath)
	default:
		return nil, errors.New("invalid StorageType: must be 'memory', 'redis' or 'sqlite'")
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing).
// A non-nil conn puts a NATS relay in front of the local hubs.
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	catalogService *catalog.Service,
	authCfg auth.Config,
	conn natsrelay.Conn,
	logger *slog.Logger,
) *App {
	hubManager := realtime.NewHubManager(logger)

	var publisher game.Publisher = hubManager
	var relay *natsrelay.Relay
	if conn != nil {
		relay = natsrelay.New(conn, hubManager, logger)
		publisher = relay
	}

	registryService := registry.New(clk)
	scoringService := scoring.New()
	gameController := game.NewController(
		store,
		registryService,
		scoringService,
		catalogService,
		publisher,
		clk,
		rnd,
		logger.With(slog.String("component", "game-controller")),
	)
	botService := bot.NewService(gameController, catalogService, bot.DefaultStrategies(rnd), logger)
	authService := auth.New(store, clk, authCfg)
	feed := realtime.NewFeed(hubManager, gameController, logger)

	return &App{
		Storage:         store,
		Clock:           clk,
		Random:          rnd,
		CatalogService:  catalogService,
		RegistryService: registryService,
		ScoringService:  scoringService,
		GameController:  gameController,
		BotService:      botService,
		AuthService:     authService,
		HubManager:      hubManager,
		Feed:            feed,
		Relay:           relay,
	}
}

// Close releases the app's connections. Observers are disconnected first.
func (a *App) Close() error {
	a.HubManager.Close()

	var errs []error
	if a.Relay != nil {
		errs = append(errs, a.Relay.Close())
	}
	if a.natsConn != nil {
		a.natsConn.Close()
	}
	errs = append(errs, a.Storage.Close())
	return errors.Join(errs...)
}
