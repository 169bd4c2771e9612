package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/chaos-ops/display-server-go/internal/config"
	"github.com/chaos-ops/display-server-go/internal/database"
	"github.com/chaos-ops/display-server-go/internal/handler"
	"github.com/chaos-ops/display-server-go/internal/jobs"
	"github.com/chaos-ops/display-server-go/internal/middleware"
	"github.com/chaos-ops/display-server-go/internal/redis"
	"github.com/chaos-ops/display-server-go/internal/repository"
	"github.com/chaos-ops/display-server-go/internal/service"
	"github.com/chaos-ops/display-server-go/internal/sse"
)

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	deviceRepo := repository.NewDeviceRepository(db.DB)
	dayPlanRepo := repository.NewDayPlanRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	notifier := service.NewBrokerNotifier(broker)
	pairingService := service.NewPairingService(deviceRepo, notifier)
	displayService := service.NewDisplayService(deviceRepo, dayPlanRepo, pairingService)
	assignmentService := service.NewAssignmentService(deviceRepo, dayPlanRepo, notifier)
	rateLimiter := service.NewRateLimiter(redisClient.Client)

	adminAuth := middleware.NewAdminAuthMiddleware(cfg.AdminUser, cfg.AdminPasswordHash)
	initRateLimit := middleware.NewIPRateLimitMiddleware(
		rateLimiter, cfg.PairingInitPerMin, time.Minute, "pairing-init",
	)
	bodyLimit := middleware.NewBodyLimitMiddleware(0)

	displayHandler := handler.NewDisplayHandler(displayService)
	adminHandler := handler.NewAdminHandler(pairingService, assignmentService, displayService)
	eventsHandler := handler.NewEventsHandler(broker, displayService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimit.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Mount("/displays", handler.Routes(
		displayHandler, adminHandler, eventsHandler,
		adminAuth.Handler, initRateLimit.Handler,
	))

	cleanupJob := jobs.NewCleanupJob(deviceRepo, cfg.UnpairedRetention(), config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
