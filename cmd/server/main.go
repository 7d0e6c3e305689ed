package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/chatsounds/soundboard-server/internal/broadcast"
	"github.com/chatsounds/soundboard-server/internal/config"
	"github.com/chatsounds/soundboard-server/internal/database"
	"github.com/chatsounds/soundboard-server/internal/handler"
	"github.com/chatsounds/soundboard-server/internal/jobs"
	"github.com/chatsounds/soundboard-server/internal/metrics"
	"github.com/chatsounds/soundboard-server/internal/middleware"
	"github.com/chatsounds/soundboard-server/internal/model"
	"github.com/chatsounds/soundboard-server/internal/redis"
	"github.com/chatsounds/soundboard-server/internal/repository"
	"github.com/chatsounds/soundboard-server/internal/service"
	"github.com/chatsounds/soundboard-server/internal/session"
	"github.com/chatsounds/soundboard-server/internal/twitch"
	"github.com/chatsounds/soundboard-server/internal/util"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to read .env")
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	setLogLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("database connected")

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
		redisClient, err = redis.NewClient(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected")
	}

	clock := clockwork.NewRealClock()

	cipher, err := util.NewCipher(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid encryption key")
	}

	soundRepo := repository.NewSoundRepository(db.DB)
	userRepo := repository.NewUserRepository(db.DB)
	playRepo := repository.NewPlayRepository(db.DB)
	connectionRepo := repository.NewConnectionConfigRepository(db.DB, cipher)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// The gauge is sampled at scrape time, after broker is assigned.
	var broker *broadcast.Broker
	collector := metrics.NewCollector(reg, func() int { return broker.SubscriberCount() })

	brokerOpts := []broadcast.Option{broadcast.WithDropHook(collector.RecordBroadcastDrop)}
	if cfg.BroadcastRedis {
		brokerOpts = append(brokerOpts, broadcast.WithRedisRelay(redisClient.Client))
	}
	broker = broadcast.NewBroker(brokerOpts...)
	defer broker.Close()

	var sessions session.Store
	switch cfg.SessionBackend {
	case config.SessionBackendRedis:
		sessions = session.NewRedisStore(redisClient.Client, clock, cfg.SessionSweepInterval)
	default:
		sessions = session.NewMemoryStore(clock)
	}
	log.Info().Str("backend", cfg.SessionBackend).Msg("session store ready")

	tokens := twitch.NewTokenManager(cfg.TwitchClientID, cfg.TwitchClientSecret, cfg.TwitchRedirectURI, twitch.WithClock(clock))

	commandService := service.NewCommandService(soundRepo, userRepo, playRepo, broker, collector, clock)
	soundService := service.NewSoundService(soundRepo, broker)
	userService := service.NewUserService(userRepo)
	analyticsService := service.NewAnalyticsService(soundRepo, userRepo, playRepo, clock)
	authService := service.NewAuthService(tokens, sessions)

	conn := twitch.NewConnection(connectionRepo, commandService, twitch.NewIRCClient, cfg.ConnectTimeout())
	conn.OnStateChange(collector.RecordConnectionState)
	conn.OnStateChange(func(state model.ConnectionState) {
		if err := broker.Publish(context.Background(), model.EventConnectionState, map[string]any{"state": state}); err != nil {
			log.Warn().Err(err).Msg("failed to broadcast connection state")
		}
	})
	defer conn.Close()

	go func() {
		if err := conn.OnStartConnect(context.Background()); err != nil {
			log.Warn().Err(err).Msg("startup chat connection failed")
		}
	}()

	isProduction := cfg.IsProduction()
	handler.SetProduction(isProduction)

	var limiter middleware.Limiter
	if redisClient != nil {
		limiter = middleware.NewRedisRateLimiter(redisClient.Client)
	} else {
		limiter = middleware.NewMemoryRateLimiter(clock)
	}
	authRateLimit := middleware.NewIPRateLimitMiddleware(limiter, cfg.AuthRateLimitPerMin, clock)
	sessionMiddleware := middleware.NewSessionMiddleware(authService)
	csrfMiddleware := middleware.NewCSRFMiddleware(isProduction)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	authHandler := handler.NewAuthHandler(authService, isProduction, cfg.DashboardURL())
	soundHandler := handler.NewSoundHandler(soundService, commandService)
	userHandler := handler.NewUserHandler(userService)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsService)
	connectionHandler := handler.NewConnectionHandler(conn)
	eventsHandler := handler.NewEventsHandler(broker, conn)
	wsHandler := handler.NewWebSocketHandler(broker, conn)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(collector))
	r.Use(chimiddleware.Recoverer)
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(securityHeadersMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		dbHealth := db.Health(r.Context())
		status, code := "ok", http.StatusOK
		if !dbHealth.OK {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]any{
			"status":      status,
			"database":    dbHealth,
			"chat":        conn.State(),
			"subscribers": broker.SubscriberCount(),
			"timestamp":   time.Now().UnixMilli(),
		})
	})
	r.Handle("/metrics", metrics.Handler(reg))

	// Overlays run inside streaming software without a dashboard login.
	r.Get("/api/events", eventsHandler.ServeHTTP)
	r.Get("/api/ws", wsHandler.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(csrfMiddleware.Handler)

		r.Route("/auth", func(r chi.Router) {
			r.Use(authRateLimit.Handler)
			r.Mount("/", authHandler.Routes())
		})

		r.Group(func(r chi.Router) {
			r.Use(sessionMiddleware.Handler)
			r.Mount("/sounds", soundHandler.Routes())
			r.Mount("/users", userHandler.Routes())
			r.Mount("/analytics", analyticsHandler.Routes())
			r.Mount("/twitch", connectionHandler.Routes())
		})
	})

	r.Handle("/data/*", handler.NewSoundFileHandler(cfg.SoundsDir, "/data"))
	r.NotFound(handler.StaticFileServer(cfg.StaticDir, "/").ServeHTTP)

	cleanupJob := jobs.NewCleanupJob(
		clock, cfg.SessionSweepInterval,
		jobs.SessionSweep(sessions, collector),
		jobs.DriftCheck(analyticsService),
	)
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

	// Closing the broker ends open event streams so Shutdown does not wait on them.
	broker.Close()

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
