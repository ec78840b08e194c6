package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cardroomhq/blackjack/internal/config"
	"github.com/cardroomhq/blackjack/internal/database"
	"github.com/cardroomhq/blackjack/internal/engine"
	"github.com/cardroomhq/blackjack/internal/engine/repositories"
	"github.com/cardroomhq/blackjack/internal/handlers"
	hub "github.com/cardroomhq/blackjack/server"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
)

// GameServer wires the table engine to its store, live fan-out and HTTP
// surface.
type GameServer struct {
	config *config.Config
	db     *database.DB
	rdb    *redis.Client
	engine engine.Engine
	hub    *hub.Hub
	server *http.Server

	hubCancel context.CancelFunc
}

func NewGameServer() (*GameServer, error) {
	cfg := config.Load()

	db, err := database.NewConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	rdb, err := newRedisClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	store := repositories.NewPostgresTableStore(db)
	notifier := repositories.NewRedisNotifier(rdb)
	eng := engine.New(store, notifier, engine.WithStaleAge(cfg.StaleTableAge))

	return &GameServer{
		config: cfg,
		db:     db,
		rdb:    rdb,
		engine: eng,
		hub:    hub.NewHub(rdb),
	}, nil
}

func newRedisClient(cfg *config.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (s *GameServer) Start() error {
	router := s.setupRouter()

	s.server = &http.Server{
		Addr:    ":" + s.config.Port,
		Handler: router,
	}

	hubCtx, cancel := context.WithCancel(context.Background())
	s.hubCancel = cancel
	go s.hub.Run(hubCtx)

	go func() {
		slog.Info("Starting blackjack server", "port", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	return s.Shutdown()
}

func (s *GameServer) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	s.hubCancel()

	if err := s.rdb.Close(); err != nil {
		slog.Error("Failed to close redis connection", "error", err)
	}

	if err := s.db.Close(); err != nil {
		slog.Error("Failed to close database connection", "error", err)
	}

	slog.Info("Server shutdown complete")
	return nil
}

func (s *GameServer) setupRouter() chi.Router {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"}, // Configure properly for production
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// WebSocket endpoint for live table subscriptions
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWs(s.hub, w, r)
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		tableHandler := handlers.NewTableHandler(s.engine)
		r.Mount("/tables", tableHandler.Routes())
	})

	return r
}
