package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"supermock/internal/core/domain"
	"supermock/internal/core/ports"
	"supermock/internal/core/services"
	httphandlers "supermock/internal/handlers/http"
	"supermock/internal/infrastructure/distributed"
	"supermock/internal/infrastructure/monitoring"
	"supermock/internal/infrastructure/reliability"
	"supermock/internal/infrastructure/repositories"
	hub "supermock/internal/infrastructure/signal"
	"supermock/internal/infrastructure/videolink"
	"supermock/pkg/cache"
	"supermock/pkg/circuitbreaker"
	"supermock/pkg/config"
	lockpkg "supermock/pkg/distributed"
	"supermock/pkg/logger"
	"supermock/pkg/retry"
	"supermock/pkg/tracing"
	"supermock/pkg/utils"
)

func main() {
	_ = godotenv.Load()

	configPath := os.Getenv("SUPERMOCK_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		panic(err)
	}

	zapLogger, err := logger.New(cfg.Logging.Level)
	if err != nil {
		panic(err)
	}
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerEndpoint,
		Environment: environment(cfg),
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	factory, err := repositories.NewFactory(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	store := factory.Store()
	instanceID := utils.GenerateInstanceID()

	metrics := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)
	health := monitoring.NewHealthChecker()
	health.AddStoreCheck(store, 2*time.Second)

	var (
		backplane ports.Backplane
		presence  *distributed.PresenceRegistry
		eventBus  *distributed.EventBus
		locker    ports.Locker = lockpkg.NewLocalLocker()
	)
	if client := factory.Redis(); client != nil {
		eventBus = distributed.NewEventBus(client, cfg.Redis.Channel, instanceID, log)
		presence = distributed.NewPresenceRegistry(client, instanceID, 2*cfg.Signal.PongTimeout, log)
		backplane = eventBus
		locker = lockpkg.NewLockManager(client, "supermock:lock:")
		health.AddRedisCheck(client, 2*time.Second)
		log.Infow("Redis backplane enabled", "instance_id", instanceID, "channel", cfg.Redis.Channel)
	}

	provider, err := videolink.NewProvider(cfg)
	if err != nil {
		log.Fatalw("failed to create video provider", "error", err)
	}
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = cfg.Video.RetryAttempts
	breakerCfg := circuitbreaker.DefaultConfig()
	breakerCfg.Name = "video-provider"
	breakerCfg.FailureThreshold = cfg.Video.BreakerFailures
	breakerCfg.Timeout = cfg.Video.BreakerReset
	rooms := reliability.NewRoomProviderWrapper(provider, cfg.Video.Timeout, retryCfg, breakerCfg, log)
	health.AddCheck("video_provider", rooms.HealthCheck, time.Second)

	roomState := cache.New[domain.RoomState](cfg.Video.StatusCacheTTL)
	defer roomState.Stop()

	var sessions *services.SessionService
	authService := services.NewAuthService(cfg.Auth.JWTSecret, "supermock", cfg.Auth.AccessTokenTTL)
	signalHub := hub.NewHub(hub.HubConfig{
		PingInterval:      cfg.Signal.PingInterval,
		PongTimeout:       cfg.Signal.PongTimeout,
		WriteTimeout:      cfg.Signal.WriteTimeout,
		SendBuffer:        cfg.Signal.SendBuffer,
		MaxChatLength:     cfg.Signal.MaxChatLength,
		MaxNameLength:     cfg.Signal.MaxNameLength,
		MessagesPerSecond: wsRate(cfg),
		Burst:             cfg.RateLimiting.WebSocket.Burst,
		MaxMessageBytes:   cfg.RateLimiting.WebSocket.MaxMessageSizeBytes,
		DevMode:           cfg.DevMode,
		AllowedOrigins:    cfg.Auth.AllowedOrigins,
		ICEServers:        hub.ICEServers(cfg.WebRTC.ICEServers),
	}, authService, ports.RoomAuthorizerFunc(func(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) (bool, error) {
		return sessions.CanJoin(ctx, sessionID, userID)
	}), backplane, presenceOrNil(presence), metrics, log)

	dispatcher := services.NewDispatcher(store, signalHub, signalHub, metrics, services.DispatcherConfig{
		NotificationTTL: cfg.Notifications.TTL,
		Workers:         cfg.Notifications.Workers,
		QueueSize:       cfg.Notifications.QueueSize,
	}, log)

	profiles := services.NewProfileService(store, log)
	matching := services.NewMatchingService(store, dispatcher, profiles, metrics, log)
	queue := services.NewQueueService(store, matching, metrics, log)
	sessions = services.NewSessionService(store, rooms, videolink.NewValidator(cfg.Video.AllowedHosts), dispatcher, metrics, roomState,
		services.SessionServiceConfig{VideoDurationMinutes: cfg.Video.DurationMinutes}, log)

	sweep := services.NewSweepService(store, matching, locker, metrics, services.SweepConfig{
		Interval:   cfg.Matching.SweepInterval,
		StaleAfter: cfg.Matching.StaleAfter,
		LockTTL:    cfg.Matching.LockTTL,
	}, log)
	if err := sweep.Start(ctx); err != nil {
		log.Fatalw("failed to start sweep scheduler", "error", err)
	}

	go func() {
		if err := signalHub.RunBackplane(ctx); err != nil {
			log.Errorw("Backplane subscription stopped", "error", err)
		}
	}()

	svc := httphandlers.Services{
		Auth:          authService,
		Queue:         queue,
		Sessions:      sessions,
		Notifications: services.NewNotificationService(store),
		Profiles:      profiles,
		Health:        health,
		WebSocket:     signalHub.ServeWS,
	}
	if cfg.Monitoring.PrometheusEnabled {
		svc.Metrics = promhttp.Handler()
		log.Info("Prometheus metrics enabled")
	}
	router := httphandlers.NewRouter(cfg, svc, log)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("Starting SuperMock server", "address", cfg.Server.Address, "dev_mode", cfg.DevMode, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Errorw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down SuperMock server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	sweep.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	}
	signalHub.Close()
	dispatcher.Stop()
	cancel()

	if presence != nil {
		if err := presence.CleanupInstance(shutdownCtx); err != nil {
			log.Warnw("Failed to clean up presence", "error", err)
		}
	}
	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Warnw("Failed to close event bus", "error", err)
		}
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Warnw("Failed to flush traces", "error", err)
	}
	if err := factory.Close(); err != nil {
		log.Errorw("Error closing repository factory", "error", err)
	}

	log.Info("SuperMock server stopped")
}

func environment(cfg *config.Config) string {
	if cfg.DevMode {
		return "development"
	}
	return "production"
}

func wsRate(cfg *config.Config) float64 {
	if !cfg.RateLimiting.Enabled {
		return 0
	}
	return cfg.RateLimiting.WebSocket.MessagesPerSecond
}

// presenceOrNil keeps a nil *PresenceRegistry from becoming a non-nil interface.
func presenceOrNil(p *distributed.PresenceRegistry) ports.PresenceRegistry {
	if p == nil {
		return nil
	}
	return p
}
