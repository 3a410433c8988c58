//go:generate go tool swag init -g main.go -o api_specs

// @title			Chat relay
// @version		1.0
// @description	Real-time chat rooms over WebSocket at /chat/{room}, plus read-only room inspection.
// @BasePath		/
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatrelay/internal/chat"
	"chatrelay/internal/config"
	"chatrelay/internal/database/db_client"
	"chatrelay/internal/http/http_server"
	"chatrelay/internal/identity"
	"chatrelay/internal/redis/presence"
	"chatrelay/internal/redis/redis_client"
	"chatrelay/internal/syncstats"
	"chatrelay/internal/ws"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	opts := chat.Options{
		HistorySize:      cfg.ChatHistorySize,
		MaxMessageLength: cfg.ChatMaxMessageLength,
	}
	if !cfg.ChatGuestsCanPost {
		opts.Moderator = chat.RequireAuthenticated
	}

	// 3. Redis: presence events
	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisClient, err = redis_client.NewRedisClient(ctx, cfg.RedisHost, cfg.RedisPort)
		if err != nil {
			Log.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		Log.Debug("Redis client created successfully")

		publisher := presence.NewPublisher(redisClient, cfg.PresenceBuffer)
		go publisher.Run(ctx)
		opts.Observer = publisher
	}

	rooms := chat.NewRegistry(opts)

	// 4. Background: viewer counts -> Redis
	if redisClient != nil {
		syncstats.Run(ctx, redisClient, rooms, cfg.StatsSyncInterval, cfg.StatsKeyTTL)
	}

	serve(ctx, cfg, rooms)
}

func serve(ctx context.Context, cfg *config.Config, rooms *chat.Registry) {
	// 5. Identity: Postgres session tokens, or everyone is a guest
	identities := identity.AnonymousProvider
	if cfg.AuthEnabled {
		pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser,
			cfg.PostgresPassword, cfg.PostgresDb, cfg.PostgresMaxConns)
		if err != nil {
			Log.Fatal("pg-open", zap.Error(err))
		}
		defer pgDb.Close()
		identities = identity.NewSQLProvider(pgDb)
	}

	// 6. Initialize the WS server
	wsSrv := ws.NewWsServer(rooms, identities, ws.Options{
		SendBuffer:  cfg.ChatSendBuffer,
		Overflow:    ws.OverflowPolicy(cfg.ChatOverflowPolicy),
		ReadLimit:   cfg.ChatReadLimit,
		WriteWait:   cfg.WsWriteWait,
		PongWait:    cfg.WsPongWait,
		GuestPrefix: cfg.ChatGuestPrefix,
	})

	// 7. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, rooms)
	go func() {
		<-ctx.Done()
		Log.Info("shutting down")
		_ = httpServer.Dispose()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rooms.Shutdown(shutdownCtx)
	}()

	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
	<-ctx.Done()
	// give connections a moment to flush their close frames
	time.Sleep(500 * time.Millisecond)
}
