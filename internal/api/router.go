package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/mcoot/estimategame/internal/api/handler"
	"github.com/mcoot/estimategame/internal/api/middleware"
	"github.com/mcoot/estimategame/internal/api/response"
	rootmiddleware "github.com/mcoot/estimategame/internal/middleware"
	"github.com/mcoot/estimategame/internal/realtime"
	"github.com/mcoot/estimategame/internal/services/auth"
	"github.com/mcoot/estimategame/internal/services/bot"
	"github.com/mcoot/estimategame/internal/services/catalog"
	"github.com/mcoot/estimategame/internal/services/game"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger         *slog.Logger
	AuthService    *auth.Service
	GameController game.ControllerInterface
	BotService     *bot.Service
	CatalogService *catalog.Service
	HubManager     *realtime.HubManager
	Feed           *realtime.Feed

	// StorageType is reported by the health check
	StorageType string
	// AllowedOrigins for CORS and WebSocket upgrades; empty allows any
	AllowedOrigins []string
	// KeepAlive is the interval between SSE comments and WebSocket pings
	KeepAlive time.Duration
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	keepAlive := cfg.KeepAlive
	if keepAlive == 0 {
		keepAlive = 30 * time.Second
	}

	// Create handlers
	sessionHandler := handler.NewSessionHandler(cfg.GameController, cfg.AuthService, cfg.HubManager, cfg.Logger)
	roundHandler := handler.NewRoundHandler(cfg.GameController, cfg.BotService, cfg.HubManager, cfg.Logger)
	botHandler := handler.NewBotHandler(cfg.BotService)
	itemHandler := handler.NewItemHandler(cfg.CatalogService)
	eventsHandler := handler.NewEventsHandler(cfg.Feed, cfg.AllowedOrigins, keepAlive, cfg.Logger)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.AuthService)
	optionalAuthMiddleware := middleware.OptionalAuth(cfg.AuthService)
	loggingMiddleware := rootmiddleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Public routes
	api.HandleFunc("/health", healthHandler(cfg.StorageType)).Methods(http.MethodGet)
	api.HandleFunc("/sessions", sessionHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/sessions/join", sessionHandler.Join).Methods(http.MethodPost)
	api.HandleFunc("/sessions/code/{code}", sessionHandler.GetByCode).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", sessionHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/items/{id}", itemHandler.Get).Methods(http.MethodGet)

	// Streams: members show as online, anyone else may watch
	streams := api.PathPrefix("/sessions/{id}").Subrouter()
	streams.Use(optionalAuthMiddleware)
	streams.HandleFunc("/events", eventsHandler.SSE).Methods(http.MethodGet)
	streams.HandleFunc("/ws", eventsHandler.WebSocket).Methods(http.MethodGet)

	// Player actions (all require a token for the session in the path)
	actions := api.PathPrefix("/sessions/{id}").Subrouter()
	actions.Use(authMiddleware)
	actions.HandleFunc("/round/start", roundHandler.Start).Methods(http.MethodPost)
	actions.HandleFunc("/round/estimate", roundHandler.Estimate).Methods(http.MethodPost)
	actions.HandleFunc("/round/close", roundHandler.Close).Methods(http.MethodPost)
	actions.HandleFunc("/finish", sessionHandler.Finish).Methods(http.MethodPost)
	actions.HandleFunc("/bots", botHandler.Add).Methods(http.MethodPost)

	me := api.PathPrefix("/me").Subrouter()
	me.Use(authMiddleware)
	me.HandleFunc("", sessionHandler.Me).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept-Language"},
		AllowCredentials: false,
	})
	return c.Handler(r)
}

func healthHandler(storageType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, response.Health{Status: "ok", Storage: storageType})
	}
}
