package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"groundstation/internal/config"
	"groundstation/internal/handlers"
	applog "groundstation/internal/logger"
	"groundstation/internal/middleware"
	"groundstation/internal/mqtt"
	"groundstation/internal/parser"
	"groundstation/internal/repository"
	"groundstation/internal/service"
	"groundstation/internal/worker"
	"groundstation/pkg/database"
	"groundstation/pkg/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	goredis "github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file to load before reading the environment")
	migrateOnly := pflag.Bool("migrate-only", false, "run database migrations and exit")
	printConfig := pflag.Bool("print-config", false, "print the effective configuration with secrets masked and exit")
	pflag.Parse()

	envErr := godotenv.Load(*envFile)
	cfg := config.Load()

	if *printConfig {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg.Redacted()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	logger, err := applog.NewLogger(cfg.App.LogLevel, cfg.App.LogFormat, cfg.App.Name)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if envErr != nil {
		logger.Info("no env file loaded, using process environment", zap.String("file", *envFile))
	}

	if err := run(cfg, logger, *migrateOnly); err != nil {
		logger.Fatal("groundstation stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger, migrateOnly bool) error {
	logger.Info("groundstation starting",
		zap.String("port", cfg.App.Port),
		zap.String("db_driver", cfg.DB.Driver),
		zap.Bool("strict_parser", cfg.Parser.Strict))

	checks := map[string]handlers.HealthCheck{}

	// Telemetry backend
	var (
		telemetryRepo repository.TelemetryRepository
		db            *gorm.DB
	)
	if cfg.DB.Driver == "memory" {
		if migrateOnly {
			return errors.New("--migrate-only needs a database driver")
		}
		logger.Warn("using in-memory telemetry store; records are lost on restart")
		telemetryRepo = repository.NewMemoryTelemetryRepository()
	} else {
		var err error
		db, err = database.Connect(database.Config{
			Driver:   cfg.DB.Driver,
			Host:     cfg.DB.Host,
			Port:     cfg.DB.Port,
			User:     cfg.DB.User,
			Password: cfg.DB.Password,
			DBName:   cfg.DB.DBName,
			SSLMode:  cfg.DB.SSLMode,
			Debug:    cfg.App.Debug,
		}, logger)
		if err != nil {
			return err
		}
		defer database.Close(db)

		if err := database.Migrate(db, logger); err != nil {
			return err
		}
		if migrateOnly {
			logger.Info("migrations applied, exiting")
			return nil
		}

		telemetryRepo = repository.NewTelemetryRepository(db)
		checks["database"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}

	// Optional snapshot cache
	var (
		cacheRepo   repository.CacheRepository
		redisClient *goredis.Client
		redisStats  handlers.StatsSource
	)
	if cfg.Redis.Enabled {
		client, err := redis.Connect(redis.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			logger.Warn("redis unavailable, snapshot cache disabled", zap.Error(err))
		} else {
			redisClient = client
			defer redisClient.Close()
			cacheRepo = repository.NewCacheRepository(redisClient)
			checks["redis"] = func(ctx context.Context) error { return redis.Ping(ctx, redisClient) }
			redisStats = func(ctx context.Context) (map[string]string, error) {
				return redis.GetStats(ctx, redisClient)
			}
		}
	}

	// Services
	telemetryService := service.NewTelemetryService(telemetryRepo, cacheRepo, service.TelemetryConfig{
		OutputDir:    cfg.Telemetry.OutputDir,
		HistoryLimit: cfg.Telemetry.HistoryLimit,
		MaxHistory:   cfg.Telemetry.MaxHistory,
		SnapshotTTL:  cfg.Redis.SnapshotTTL,
	}, logger)

	mode := parser.ModeStrict
	if !cfg.Parser.Strict {
		mode = parser.ModeLenient
	}
	ingestService := service.NewIngestService(telemetryService, mode, logger)

	userRepo, err := repository.NewFileUserRepository(cfg.Auth.UsersFile)
	if err != nil {
		return fmt.Errorf("failed to open users file: %w", err)
	}
	authService := service.NewAuthService(userRepo, logger)
	if _, err := authService.EnsureSuperadmin(context.Background(), cfg.Auth.SuperadminPassword); err != nil {
		return fmt.Errorf("failed to provision superadmin: %w", err)
	}

	// Background workers
	loginLimiter := middleware.NewIPRateLimiter(rate.Limit(1), 5)
	scheduler := worker.NewScheduler(logger)
	scheduler.AddWorker(worker.NewSweepWorker("login_limiter_sweeper", loginLimiter, time.Minute, logger))

	if cfg.Workers.SimulatorEnabled {
		sim := worker.NewSimulator(ingestService, time.Now().UnixNano(), logger)
		scheduler.AddWorker(worker.NewSimulatorWorker(sim, cfg.Workers.SimulatorInterval, logger))
	}
	warmerEnabled := cfg.Workers.CacheWarmerEnabled && cacheRepo != nil
	if warmerEnabled {
		scheduler.AddWorker(worker.NewSnapshotWarmer(telemetryService, cfg.Workers.CacheWarmerInterval, logger))
	}

	scheduler.Start()
	defer scheduler.Stop()

	// MQTT ingestion
	if cfg.MQTT.Enabled {
		sub := mqtt.NewSubscriber(mqtt.Config{
			Broker:          cfg.MQTT.Broker,
			ClientID:        cfg.MQTT.ClientID,
			Username:        cfg.MQTT.Username,
			Password:        cfg.MQTT.Password,
			TopicDelimited:  cfg.MQTT.TopicDelimited,
			TopicStructured: cfg.MQTT.TopicStructured,
			QoS:             byte(cfg.MQTT.QoS),
		}, ingestService, logger)
		if err := sub.Connect(); err != nil {
			logger.Error("mqtt ingestion disabled", zap.Error(err))
		} else {
			defer sub.Close()
			checks["mqtt"] = func(context.Context) error {
				if !sub.IsConnected() {
					return errors.New("not connected")
				}
				return nil
			}
		}
	}

	// HTTP
	if cfg.App.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog(logger.Named("http")))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", cfg.App.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	workers := map[string]bool{
		"simulator":       cfg.Workers.SimulatorEnabled,
		"snapshot_warmer": warmerEnabled,
		"mqtt":            cfg.MQTT.Enabled,
	}

	router := &handlers.Router{
		Telemetry:     handlers.NewTelemetryHandler(telemetryService, logger),
		Ingest:        handlers.NewIngestHandler(ingestService, logger),
		Auth:          handlers.NewAuthHandler(authService, logger),
		System:        handlers.NewSystemHandler(telemetryService, checks, redisStats, workers, logger),
		AuthService:   authService,
		IngestLimiter: rate.NewLimiter(rate.Limit(cfg.Ingest.RequestsPerSecond), cfg.Ingest.Burst),
		LoginLimiter:  loginLimiter,
		Logger:        logger,
	}
	router.Register(r)

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		return fmt.Errorf("http server failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited properly")
	return nil
}
