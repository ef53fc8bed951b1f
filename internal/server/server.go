package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HarshPratapSingh1/ChatVerse/internal/handlers"
	"github.com/HarshPratapSingh1/ChatVerse/internal/metrics"
	"github.com/HarshPratapSingh1/ChatVerse/internal/presence"
	"github.com/HarshPratapSingh1/ChatVerse/internal/router"
	"github.com/HarshPratapSingh1/ChatVerse/internal/server/middleware"
	"github.com/HarshPratapSingh1/ChatVerse/internal/stager"
	"github.com/HarshPratapSingh1/ChatVerse/internal/store"
	"github.com/HarshPratapSingh1/ChatVerse/pkg/config"
	"github.com/HarshPratapSingh1/ChatVerse/pkg/identity"
	"github.com/HarshPratapSingh1/ChatVerse/pkg/state"
	"github.com/HarshPratapSingh1/ChatVerse/pkg/state/registry"
	"github.com/HarshPratapSingh1/ChatVerse/pkg/transport"
)

type App struct {
	logger      *slog.Logger
	registry    state.Manager
	broadcaster *presence.Broadcaster
	msgRouter   *router.MessageRouter
	wg          sync.WaitGroup
	http        *http.Server
	config      *config.Config

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config, dataStore store.DataStore, attachmentStager *stager.Stager) *App {
	reg := registry.NewInMemoryRegistry(logger)
	broadcaster := presence.NewBroadcaster(logger, reg)
	// Every effective add/remove republishes the roster.
	reg.SetOnChange(broadcaster.Publish)

	verifier := identity.NewVerifier(cfg.Server.Auth.JWTSecret, cfg.Server.Auth.TokenTTL)
	msgRouter := router.NewMessageRouter(logger, reg, dataStore, attachmentStager)
	h := handlers.NewHandler(dataStore, verifier, logger)

	app := &App{
		logger:      logger,
		registry:    reg,
		broadcaster: broadcaster,
		msgRouter:   msgRouter,
		config:      cfg,
		ctx:         rootCtx,
	}

	// Create a cycler function that closes over the registry and logger.
	connCycler := func(userID string) {
		oldest, found := reg.FindOldestUserConnection(userID)
		if found {
			logger.Info("Cycling connection: closing oldest", "userID", userID, "connID", oldest.ID)
			oldest.Transport.Close(errors.New("connection cycled by new connection"))
		}
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(middleware.RequestMetadataMiddleware())
	r.Use(middleware.NewRequestLogger(logger))

	requireAuth := middleware.NewAuthMiddleware(logger, verifier)
	tolerateAnon := middleware.NewOptionalAuthMiddleware(logger, verifier)
	limiter := middleware.NewConnectionLimiter(
		logger,
		reg.CountByUser,
		connCycler,
		cfg.Server.ConnectionLimit,
	)

	r.Get("/test", func(w http.ResponseWriter, _ *http.Request) {
		h.JSON(w, http.StatusOK, map[string]string{"message": "tested"})
	})
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.Get("/profile", h.Profile)
	r.Get("/people", h.People)
	r.With(requireAuth).Get("/messages/{userId}", h.Messages)

	// Staged attachments are retrieved by reference.
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(attachmentStager.Dir()))))
	r.Handle("/metrics", promhttp.Handler())

	// Anonymous sockets are tolerated: verification failure leaves the
	// connection identityless instead of rejecting the upgrade.
	r.With(tolerateAnon, limiter).Get("/ws", app.upgradeHandler)

	app.http = &http.Server{Addr: cfg.Server.Address, Handler: r, BaseContext: func(l net.Listener) context.Context {
		return app.ctx
	}}

	return app
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	connLogger := a.logger.With(
		slog.String("remoteAddr", reqMeta.IP),
		slog.String("userID", reqMeta.Identity.UserID),
	)

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig{
			SendQueueSize: a.config.Transport.SendQueueSize,
			ProbeInterval: a.config.Heartbeat.ProbeInterval,
			PongTimeout:   a.config.Heartbeat.PongTimeout,
		},
		a.logger,
	)
	conn.SetOnMessageHandler(a.msgRouter.HandleInbound)
	conn.SetOnCloseHandler(func(id uuid.UUID, err error) {
		connLogger.Info("Deregistering connection due to closure", slog.String("connID", id.String()))
		metrics.ActiveConnections.Dec()
		if conn.HeartbeatEvicted() {
			metrics.LivenessEvictions.Inc()
		}
		if dErr := a.registry.Deregister(id); dErr != nil {
			connLogger.Error("Failed to deregister connection from state", slog.Any("error", dErr))
		}
	})

	// Register before the pumps start: the roster push triggered by the
	// registration is queued on the send channel and is the first thing
	// the new client receives.
	if _, err := a.registry.Register(conn, reqMeta.IP, reqMeta.Identity); err != nil {
		connLogger.Error("Failed to register connection state", slog.Any("error", err))
		conn.SetOnCloseHandler(nil)
		conn.Close(err)
		return
	}
	metrics.ActiveConnections.Inc()

	connLogger.Info("Connection fully established", slog.Bool("anonymous", reqMeta.Identity.IsAnonymous()))
	conn.Run()
	<-conn.Done()
}

// Shutdown runs the graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// close all active WebSocket connections.
	a.logger.Info("Closing all active connections...")
	for _, conn := range a.registry.Snapshot() {
		conn.Transport.Close(errors.New("graceful shutdown"))
	}

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()
	a.logger.Info("Server shut down gracefully.")
	return nil
}
