package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"oft-bridge.backend/internal/config"
	"oft-bridge.backend/internal/domain/entities"
	"oft-bridge.backend/internal/infrastructure/blockchain"
	"oft-bridge.backend/internal/infrastructure/datasources/postgres"
	"oft-bridge.backend/internal/infrastructure/datasources/sqlite"
	"oft-bridge.backend/internal/infrastructure/models"
	"oft-bridge.backend/internal/infrastructure/repositories"
	"oft-bridge.backend/internal/infrastructure/upstream"
	"oft-bridge.backend/internal/interfaces/http/handlers"
	"oft-bridge.backend/internal/interfaces/http/middleware"
	"oft-bridge.backend/internal/usecases"
	"oft-bridge.backend/pkg/logger"
	"oft-bridge.backend/pkg/metrics"
	"oft-bridge.backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

var (
	loadDotenv   = godotenv.Load
	loadCfg      = config.Load
	loadRegistry = config.LoadRegistry
	initLog      = logger.Init
	initRedis    = redis.Init
	openDB       = openHistoryDB
	runServer    = func(srv *http.Server) error { return srv.ListenAndServe() }
	stopSignal   = func() <-chan os.Signal {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		return quit
	}
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

// openHistoryDB opens postgres when DB_HOST is set, the sqlite file
// otherwise, and migrates the history table.
func openHistoryDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	if cfg.UsePostgres() {
		db, err = postgres.NewConnection(cfg)
	} else {
		db, err = sqlite.NewConnection(cfg.SQLitePath)
	}
	if err != nil {
		return nil, err
	}
	if err := models.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func runMainProcess() error {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	initLog(cfg.Server.Env, cfg.Server.LogLevel)
	ctx := context.Background()
	logger.Info(ctx, "Logger initialized", zap.String("env", cfg.Server.Env))

	registry, skipped := loadRegistry()
	for key, missing := range skipped {
		logger.Warn(ctx, "network skipped, configuration incomplete",
			zap.String("network", key), zap.Strings("missing", missing))
	}
	logger.Info(ctx, "Registry loaded",
		zap.Int("networks", len(registry.Networks())),
		zap.Int("tokens", len(registry.Tokens())),
		zap.Int("pairs", len(registry.Pairs())))

	if err := initRedis(cfg.Redis.URL, cfg.Redis.Password); err != nil {
		logger.Error(ctx, "Failed to initialize Redis", zap.Error(err))
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	defer redis.Close()
	logger.Info(ctx, "Redis initialized")

	db, err := openDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	metrics.Register([]string{"http", "tracking", "send", "upstream"}, logger.GetLogger())

	a, err := buildApp(cfg, registry, db)
	if err != nil {
		return err
	}
	defer a.clients.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "OFT bridge backend starting", zap.String("port", cfg.Server.Port))
		errCh <- runServer(srv)
	}()

	select {
	case err := <-errCh:
		a.tracking.Shutdown(ctx)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-stopSignal():
	}

	logger.Info(ctx, "Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn(ctx, "server shutdown incomplete", zap.Error(err))
	}
	a.tracking.Shutdown(shutdownCtx)
	return nil
}

type app struct {
	router   *gin.Engine
	tracking *usecases.TrackingUsecase
	clients  *blockchain.ClientFactory
}

// buildApp wires repositories, upstream clients, usecases and handlers.
func buildApp(cfg *config.Config, registry *entities.Registry, db *gorm.DB) (*app, error) {
	signer, err := usecases.ParseSigner(cfg.Blockchain.SenderPrivateKey)
	if err != nil {
		return nil, err
	}

	clients := blockchain.NewClientFactory().WithDialTimeout(cfg.Blockchain.RPCTimeout)

	aggregator, err := upstream.NewAggregatorClient(upstream.AggregatorConfig{
		BaseURL:  cfg.Aggregator.BaseURL,
		Username: cfg.Aggregator.Username,
		Password: cfg.Aggregator.Password,
		HTTP:     upstreamHTTP(cfg.Upstream, cfg.Aggregator.Timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("aggregator client: %w", err)
	}
	scanner, err := upstream.NewScannerClient(upstream.ScannerConfig{
		Bases: []upstream.ScanBase{
			{Name: "testnet", URL: cfg.Scanner.TestnetBaseURL},
			{Name: "mainnet", URL: cfg.Scanner.MainnetBaseURL},
		},
		HTTP: upstreamHTTP(cfg.Upstream, cfg.Scanner.Timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("scanner client: %w", err)
	}

	history := repositories.NewTransferHistoryRepository(db)
	cache := repositories.NewRedisStatusCache(redis.GetClient(), cfg.Tracking.CacheTTL)

	correlator := usecases.NewPacketCorrelator(registry, clients, cfg.Blockchain.ScanWindow)
	reconciler := usecases.NewStatusReconciler(cfg.Tracking.SourceTTL,
		usecases.NewAggregatorSource(aggregator),
		usecases.NewOnchainSource(correlator),
		usecases.NewScannerSource(scanner),
	)
	tracking := usecases.NewTrackingUsecase(reconciler, cache, history, cfg.Tracking.PollInterval)
	sendUsecase := usecases.NewSendUsecase(registry, clients, signer, history, tracking)
	feeUsecase := usecases.NewFeeUsecase(registry, clients, signer)
	statusQuery := usecases.NewStatusQueryUsecase(aggregator, scanner, correlator)
	historyUsecase := usecases.NewHistoryUsecase(history)
	envCheck := usecases.NewEnvCheckUsecase(networkPresence(config.LoadNetworkEnv()), usecases.AggregatorPresence{
		BasePresent:     cfg.Aggregator.BaseURL != "",
		UsernamePresent: cfg.Aggregator.Username != "",
		PasswordPresent: cfg.Aggregator.Password != "",
	}, signer != nil, len(registry.Pairs()))

	if signer != nil {
		logger.Info(context.Background(), "Signer loaded", zap.String("address", signer.Address().Hex()))
	} else {
		logger.Warn(context.Background(), "SENDER_PRIVATE_KEY not set, transfers are disabled")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())
	r.Use(metrics.HTTPMiddleware())

	applyCORSMiddleware(r)
	registerHealthRoute(r)
	registerMetricsRoute(r)
	registerAPIV1Routes(r, routeDeps{
		transferHandler: handlers.NewTransferHandler(sendUsecase, tracking, historyUsecase),
		statusHandler:   handlers.NewStatusHandler(statusQuery),
		feeHandler:      handlers.NewFeeHandler(feeUsecase),
		registryHandler: handlers.NewRegistryHandler(registry),
		envHandler:      handlers.NewEnvHandler(envCheck),
	})

	return &app{router: r, tracking: tracking, clients: clients}, nil
}

// upstreamHTTP gives each upstream client its own timeout over the shared
// proxy setting.
func upstreamHTTP(shared config.UpstreamConfig, timeout time.Duration) upstream.HTTPConfig {
	return upstream.HTTPConfig{Timeout: timeout, ProxyURL: shared.ProxyURL}
}

func networkPresence(envs []config.NetworkEnv) []usecases.NetworkPresence {
	out := make([]usecases.NetworkPresence, 0, len(envs))
	for _, n := range envs {
		out = append(out, usecases.NetworkPresence{Key: n.Key, Fields: n.Presence()})
	}
	return out
}
