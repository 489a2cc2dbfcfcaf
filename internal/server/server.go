// Package server wires the messaging core together and exposes it over HTTP.
package server

import (
	"context"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/surrealdb/surrealdb.go"

	"github.com/nfrund/relay/internal/auth"
	"github.com/nfrund/relay/internal/chat"
	"github.com/nfrund/relay/internal/config"
	"github.com/nfrund/relay/internal/database"
	"github.com/nfrund/relay/internal/events"
	"github.com/nfrund/relay/internal/logging"
	"github.com/nfrund/relay/internal/membership"
	"github.com/nfrund/relay/internal/presence"
	"github.com/nfrund/relay/internal/pubsub"
	"github.com/nfrund/relay/internal/typing"
	"github.com/nfrund/relay/internal/websocket"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	E   *echo.Echo
	DB  *surrealdb.DB
	Cfg *config.Config

	bus           *pubsub.WatermillBridge
	bridge        *websocket.Bridge
	authenticator *auth.Authenticator
	chat          *chat.Service
	presence      *presence.Registry
	typing        *typing.Registry

	tracingCleanup func()
}

// New creates a new Server instance with every component wired up.
func New() *Server {
	logging.New()
	cfg := config.New()

	events.MustRegisterTopics()

	tracer, tracingCleanup, err := pubsub.SetupOTel(context.Background(), pubsub.TracingConfig{
		Enabled:     cfg.TracingEnabled,
		ServiceName: "relay",
		ZipkinURL:   cfg.ZipkinURL,
	})
	if err != nil {
		slog.Error("Failed to set up tracing", "error", err)
		os.Exit(1)
	}

	bus := pubsub.NewWatermillBridge(pubsub.WithTracer(tracer))

	db, err := database.NewDB(context.Background(), cfg)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	userStore := database.NewUserStore(db)
	channelStore := database.NewChannelStore(db)
	messageStore := database.NewMessageStore(db)

	resolver := membership.NewResolver(channelStore)
	presenceRegistry := presence.NewRegistry(bus)
	typingRegistry := typing.NewRegistry(bus)
	chatService := chat.NewService(messageStore, channelStore, userStore, resolver, bus, typingRegistry)

	bridge := websocket.NewBridge(chatService, presenceRegistry, typingRegistry, resolver, bus)
	authenticator := auth.NewAuthenticator(userStore)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	return &Server{
		E:              e,
		DB:             db,
		Cfg:            cfg,
		bus:            bus,
		bridge:         bridge,
		authenticator:  authenticator,
		chat:           chatService,
		presence:       presenceRegistry,
		typing:         typingRegistry,
		tracingCleanup: tracingCleanup,
	}
}
