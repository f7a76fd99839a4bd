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
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/pairing-server-go/internal/config"
	"github.com/openclaw/pairing-server-go/internal/database"
	"github.com/openclaw/pairing-server-go/internal/handler"
	"github.com/openclaw/pairing-server-go/internal/middleware"
	"github.com/openclaw/pairing-server-go/internal/redis"
	"github.com/openclaw/pairing-server-go/internal/repository"
	"github.com/openclaw/pairing-server-go/internal/service"
	"github.com/openclaw/pairing-server-go/internal/store"
)

func main() {
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

	userRepo := repository.NewUserRepository(db.DB)
	credRepo := repository.NewCredentialRepository(db.DB)

	pairingStore := store.NewRedisStore(redisClient)
	issuer := service.NewPasswordIssuer(credRepo)
	handshakeService := service.NewHandshakeService(
		pairingStore, userRepo, issuer,
		service.SiteInfo{
			Name:        cfg.SiteName,
			URL:         cfg.SiteURL,
			RestURL:     cfg.RestURL(),
			ManifestURL: cfg.Manifest(),
		},
		cfg.PairingTTL(), cfg.ClaimRetain(),
	)

	rateLimiter := service.NewRateLimiter(redisClient.Client)

	authMiddleware := middleware.NewAuthMiddleware(userRepo)
	userRateLimit := middleware.NewUserRateLimitMiddleware(rateLimiter)
	claimRateLimit := middleware.NewIPRateLimitMiddleware(
		rateLimiter, config.ClaimRateLimit, config.ClaimRateWindow, "claim",
	)
	statusRateLimit := middleware.NewIPRateLimitMiddleware(
		rateLimiter, config.StatusRateLimit, config.StatusRateWindow, "status",
	)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	pairingHandler := handler.NewPairingHandler(handshakeService, credRepo)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Handler)
			r.Use(userRateLimit.Handler)
			pairingHandler.RegisterAuthed(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(statusRateLimit.Handler)
			r.Get("/pairing/status", pairingHandler.Status)
		})

		r.Group(func(r chi.Router) {
			r.Use(claimRateLimit.Handler)
			r.Post("/pairing/claim", pairingHandler.Claim)
		})
	})

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
