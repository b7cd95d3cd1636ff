package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reelgate/internal/core/ports"
	"reelgate/internal/core/services"
	httphandlers "reelgate/internal/handlers/http"
	"reelgate/internal/infrastructure/monitoring"
	"reelgate/internal/infrastructure/platform/youtube"
	"reelgate/internal/infrastructure/realtime"
	"reelgate/internal/infrastructure/repositories"
	"reelgate/internal/infrastructure/storage"
	"reelgate/pkg/config"
	"reelgate/pkg/distributed"
	"reelgate/pkg/logger"
	"reelgate/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var configPaths = []string{
	"configs/config.yaml",
	"./configs/config.yaml",
	"/etc/reelgate/config.yaml",
	"config.yaml",
}

func main() {
	cfg, path, err := config.LoadFirst(configPaths...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", path, err)
		os.Exit(1)
	}

	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	if path == "" {
		log.Info("No config file found, using defaults and environment")
	} else {
		log.Infow("Loaded config", "path", path)
	}

	instanceID := cfg.Server.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "reelgate",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("Failed to initialize tracing", "error", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewPrometheusCollector(registry)

	repoFactory := repositories.NewRepositoryFactory(cfg, log)
	defer repoFactory.Close()

	// Every repository write is published to the hub, which forwards it to
	// local subscribers and to other instances.
	hub := realtime.NewHub(cfg.Realtime.SubscriberBuffer, nil, metrics, log)
	repos := repoFactory.CreateAll(hub)

	var bus *realtime.EventBus
	var locker ports.Locker
	if client := repoFactory.RedisClient(); client != nil {
		locker = distributed.NewLockManager(client, "reelgate:lock:", time.Minute, log)
		bus = realtime.NewEventBus(client, instanceID, log)
		if err := bus.Subscribe(ctx, hub.Deliver); err != nil {
			log.Fatalw("Failed to subscribe to change bus", "error", err)
		}
		hub.SetBus(bus)
	}

	store, err := storage.NewFromConfig(ctx, cfg)
	if err != nil {
		log.Fatalw("Failed to initialize object storage", "backend", cfg.Storage.Backend, "error", err)
	}

	var platform ports.VideoPlatform
	if cfg.Platform.Enabled {
		client, err := youtube.NewClient(ctx, youtube.ConfigFromApp(cfg), metrics, log)
		if err != nil {
			log.Fatalw("Failed to initialize video platform client", "error", err)
		}
		platform = client
		log.Infow("Video platform publishing enabled", "platform", client.Name())
	}

	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	userService := services.NewUserService(repos.Users, authService, services.UserServiceConfig{
		AdminPasswordHash: cfg.Auth.AdminPasswordHash,
		BootstrapAdmins:   cfg.Auth.BootstrapAdmins,
		BcryptCost:        cfg.Auth.BcryptCost,
	}, metrics, log)
	videoService := services.NewVideoService(repos.Videos, repos.Users, store, platform, services.VideoServiceConfig{
		MaxUploadBytes:      cfg.Storage.MaxUploadBytes,
		AllowedContentTypes: cfg.Storage.AllowedContentTypes,
		Locker:              locker,
	}, metrics, log)

	siteService := services.NewCachedSiteService(
		services.NewSiteService(repos.Theme, repos.Pages, log),
		cfg.Cache.ThemeTTL,
		cfg.Cache.PageTTL,
	)
	defer siteService.Stop()
	hub.AddListener(siteService.Invalidate)

	snapshots := services.NewSnapshotService(videoService, repos.Users, siteService)
	hub.SetFilter(snapshots.Filter)

	wsServer := realtime.NewWebSocketServer(hub, snapshots, authService, realtime.OptionsFromConfig(cfg), metrics, log)

	health := monitoring.NewHealthChecker()
	if client := repoFactory.RedisClient(); client != nil {
		health.AddRedisCheck(client, 2*time.Second)
	}
	health.AddCheck("storage", func(ctx context.Context) error {
		_, err := store.Exists(ctx, "healthcheck")
		return err
	}, 2*time.Second)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	deps := httphandlers.RouterDeps{
		Config:    cfg,
		Auth:      authService,
		Users:     userService,
		Videos:    videoService,
		Site:      siteService,
		WebSocket: wsServer.HandleWebSocket,
		Health:    health,
		Metrics:   metrics,
		Logger:    log,
	}
	if cfg.Monitoring.PrometheusEnabled {
		deps.Gatherer = registry
	}
	router := httphandlers.NewRouter(deps)

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           httphandlers.WithRequestDeadlines(router, cfg.Server.LongRequestTimeout),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("Starting reelgate server",
			"address", cfg.Server.Address,
			"instance_id", instanceID,
			"redis", repoFactory.UsingRedis(),
			"storage", cfg.Storage.Backend,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down reelgate server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Hijacked websocket connections are not closed by srv.Shutdown.
	wsServer.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	hub.Close()
	if bus != nil {
		if err := bus.Close(); err != nil {
			log.Errorw("Error closing change bus", "error", err)
		}
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error shutting down tracer", "error", err)
	}

	log.Info("reelgate server stopped")
}
