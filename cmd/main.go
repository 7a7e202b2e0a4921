package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shelterlink/backend/internal/api/handler"
	"shelterlink/backend/internal/auth"
	"shelterlink/backend/internal/chathub"
	"shelterlink/backend/internal/config"
	"shelterlink/backend/internal/connection"
	"shelterlink/backend/internal/events"
	"shelterlink/backend/internal/logging"
	"shelterlink/backend/internal/matching"
	"shelterlink/backend/internal/messaging"
	"shelterlink/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// setupBroker connects to Redis when it is configured. Without it the hub
// runs single-instance.
func setupBroker(ctx context.Context, cfg *config.Config, logger *zap.Logger) (chathub.Broker, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Info("REDIS_ADDR not set, realtime fan-out is process-local")
		return nil, func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	logger.Info("redis connected", zap.String("addr", cfg.RedisAddr))
	return chathub.NewRedisBroker(rdb, logger), func() { _ = rdb.Close() }, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Сховище
	st, err := storage.FromConfig(cfg)
	if err != nil {
		logger.Fatal("storage init failed", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}
	logger.Info("storage ready", zap.String("driver", cfg.StorageDriver))

	// 2. Realtime: хаб, брокер і outbox
	broker, closeBroker, err := setupBroker(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("redis connect failed", zap.Error(err))
	}
	defer closeBroker()

	hub := chathub.NewManagerService(broker, logger)
	outbox := chathub.NewOutbox(hub, cfg.OutboxBuffer, logger)
	notifier := events.Tee{Primary: outbox}
	if cfg.AMQPURL != "" {
		sink := events.NewAMQPSink(cfg.AMQPURL, cfg.AMQPQueue, logger)
		defer sink.Close()
		notifier.Export = events.NewExporter(sink, cfg.OutboxBuffer, logger)
		go notifier.Export.Run(ctx)
	}

	// 3. Сервіси ядра
	matchSvc := matching.NewService(st, cfg.Matching, logger)
	connSvc := connection.NewService(st, notifier, logger)
	msgSvc := messaging.NewService(st, notifier, logger)
	hub.Authorize = msgSvc.CanJoin
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)

	go outbox.Run(ctx)
	go func() {
		if err := hub.Run(ctx); err != nil {
			logger.Error("hub relay stopped", zap.Error(err))
		}
	}()

	// 4. HTTP
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), handler.RequestLogger(logger))

	corsPolicy := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	h := handler.NewHandler(hub, matchSvc, connSvc, msgSvc, tokens, logger)
	h.OriginAllowed = corsPolicy.OriginAllowed
	h.Register(r)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           corsPolicy.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if n := outbox.Dropped(); n > 0 {
		logger.Warn("outbox dropped events", zap.Int64("count", n))
	}
	if n := hub.Dropped(); n > 0 {
		logger.Warn("hub dropped frames", zap.Int64("count", n))
	}
}
