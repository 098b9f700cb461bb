package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mmuslimabdulj/goat-messenger/internal/auth"
	"github.com/mmuslimabdulj/goat-messenger/internal/config"
	httpHandler "github.com/mmuslimabdulj/goat-messenger/internal/delivery/http"
	"github.com/mmuslimabdulj/goat-messenger/internal/delivery/ws"
	"github.com/mmuslimabdulj/goat-messenger/internal/logger"
	"github.com/mmuslimabdulj/goat-messenger/internal/middleware"
	"github.com/mmuslimabdulj/goat-messenger/internal/relay"
	"github.com/mmuslimabdulj/goat-messenger/internal/repository"
	"github.com/mmuslimabdulj/goat-messenger/internal/usecase"
)

func main() {
	// Load .env file (ignore error if not exists, e.g. in production)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		l := logger.L()
		l.Fatal().Err(err).Msg("invalid configuration")
	}

	logger.Init(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	l := logger.L()

	db, err := repository.Open(repository.Config{
		Driver:          cfg.DatabaseDriver,
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    10,
		MaxOpenConns:    50,
		ConnMaxLifetime: time.Hour,
		LogLevel:        gormLevel(cfg.LogLevel),
	})
	if err != nil {
		l.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("failed to open database")
	}
	store := repository.NewGormStore(db)
	defer store.Close()

	resolver, err := auth.NewJWTResolver(cfg.AuthSecret, cfg.AuthIssuer)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to create credential resolver")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies
	hub := ws.NewHub()
	if cfg.RedisAddress != "" {
		r, err := relay.NewRedisRelay(ctx, relay.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Channel:  cfg.RedisChannel,
		})
		if err != nil {
			l.Fatal().Err(err).Str("address", cfg.RedisAddress).Msg("failed to connect relay")
		}
		defer r.Close()
		hub.SetRelay(r)
		go r.Run(ctx, hub)
		l.Info().Str(logger.FieldChannel, cfg.RedisChannel).Msg("cross-instance relay enabled")
	}
	go hub.Run(ctx)

	registry := usecase.NewConversationRegistry(store)
	presence := usecase.NewPresenceTracker(store, hub)
	broker := ws.NewBroker(hub, registry, store, cfg.HistoryLimit)
	manager := ws.NewManager(hub, resolver, store, presence, registry, broker, ws.ManagerConfig{
		AuthTimeout:      cfg.AuthTimeout,
		OperationTimeout: cfg.OperationTimeout,
		Client: ws.Settings{
			WriteWait:      cfg.WriteWait,
			PongWait:       cfg.PongWait,
			PingInterval:   cfg.PingInterval,
			MaxMessageSize: cfg.MaxMessageSize,
			SendBufferSize: cfg.SendBufferSize,
			EventRate:      cfg.RateLimitEvents,
			EventBurst:     int(cfg.RateLimitEvents) * 2,
		},
	})

	apiLimiter := middleware.NewIPRateLimiter(cfg.RateLimitAPI, int(cfg.RateLimitAPI)*2)
	defer apiLimiter.Stop()
	wsLimiter := middleware.NewIPRateLimiter(cfg.RateLimitWS, int(cfg.RateLimitWS)*2)
	defer wsLimiter.Stop()

	handler := httpHandler.NewHandler(manager, store, registry, store, httpHandler.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		HistoryLimit:   cfg.HistoryLimit,
		Hub:            hub,
		Presence:       presence,
	})
	router := httpHandler.NewRouter(handler, httpHandler.RouterConfig{
		Authenticator: manager,
		APILimiter:    apiLimiter,
		WSLimiter:     wsLimiter,
	})

	// Create server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		l.Info().Str("addr", server.Addr).Msg("goat-messenger listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()
	l.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	l.Info().Msg("server exited gracefully")
}

func gormLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "debug", "trace":
		return gormlogger.Info
	case "silent", "off", "disabled":
		return gormlogger.Silent
	default:
		return gormlogger.Warn
	}
}
