package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/adapter/auth"
	"github.com/rl1809/storefront/internal/adapter/events"
	"github.com/rl1809/storefront/internal/adapter/handler"
	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/config"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/platform/logging"
	"github.com/rl1809/storefront/internal/platform/metrics"
	"github.com/rl1809/storefront/internal/platform/tracing"
	"github.com/rl1809/storefront/internal/port"
)

const version = "1.0.0"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Endpoint: cfg.OtelEndpoint,
		Insecure: cfg.OtelInsecure,
		Version:  version,
	})
	if err != nil {
		logger.Fatal("failed to set up tracing", zap.Error(err))
	}

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("failed to connect mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	logger.Info("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("connected to redis")

	// Initialize adapters
	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)

	if cfg.AutoMigrate {
		if err := mysqlAdapter.Migrate(ctx); err != nil {
			logger.Fatal("failed to migrate schema", zap.Error(err))
		}
		logger.Info("schema migrated")
	}

	tokens, err := auth.NewJWTManager(auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.TokenTTL,
	})
	if err != nil {
		logger.Fatal("failed to create token manager", zap.Error(err))
	}

	var publisher port.EventPublisher
	if brokers := events.ParseBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		publisher = events.NewKafkaPublisher(brokers, cfg.OrderEventsTopic)
		logger.Info("publishing order events to kafka",
			zap.Strings("brokers", brokers), zap.String("topic", cfg.OrderEventsTopic))
	} else {
		publisher = events.NewLogPublisher(logger)
		logger.Info("no kafka brokers configured, order events are logged only")
	}

	serverMetrics := metrics.NewServerMetrics()

	// Initialize services
	orderService := service.NewOrderService(mysqlAdapter, mysqlAdapter, redisAdapter, logger, cfg.EventQueueSize,
		service.WithPlacementObserver(serverMetrics))
	catalogService := service.NewCatalogService(mysqlAdapter, mysqlAdapter, logger)
	authService := service.NewAuthService(mysqlAdapter, redisAdapter, auth.NewBcryptHasher(0), tokens,
		service.LoginPolicy{MaxAttempts: cfg.LoginMaxAttempts, Window: cfg.LoginWindow}, logger)

	if cfg.AdminEmail != "" {
		if err := authService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			logger.Fatal("failed to ensure admin account", zap.Error(err))
		}
	}

	// Start worker pool
	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			workerLoop(id, orderService.GetEventQueue(), publisher, logger)
		}(i)
	}
	logger.Info("started event workers", zap.Int("count", cfg.WorkerCount))

	// Initialize gRPC server
	grpcHandler := handler.NewGRPCHandler(orderService, logger)
	grpcServer, healthServer := handler.NewGRPCServer(grpcHandler, authService, logger)

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("port", cfg.GRPCPort), zap.Error(err))
	}

	go func() {
		logger.Info("gRPC server listening", zap.String("port", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	gin.SetMode(gin.ReleaseMode)
	httpHandler := handler.NewHTTPHandler(orderService, catalogService, authService, logger)
	httpHandler.AddHealthCheck("mysql", db.PingContext)
	httpHandler.AddHealthCheck("redis", redisAdapter.Ping)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.NewRouter(httpHandler, serverMetrics),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("port", cfg.Port))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Stop HTTP server
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	// Stop gRPC server
	healthServer.Shutdown()
	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	// Close event queue and wait for workers to drain it
	orderService.Close()
	wg.Wait()
	logger.Info("workers stopped")

	// Close connections
	if err := publisher.Close(); err != nil {
		logger.Warn("failed to close event publisher", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("failed to flush traces", zap.Error(err))
	}
	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}

func workerLoop(id int, queue <-chan domain.OrderEvent, publisher port.EventPublisher, logger *zap.Logger) {
	for event := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		if err := publisher.PublishOrderEvent(ctx, event); err != nil {
			logger.Error("failed to publish order event",
				zap.Int("worker", id),
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.String("order_id", event.OrderID),
				zap.Error(err),
			)
		} else {
			logger.Debug("published order event",
				zap.Int("worker", id),
				zap.String("event_id", event.ID),
				zap.String("order_id", event.OrderID),
			)
		}

		cancel()
	}
}
