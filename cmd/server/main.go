package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ederavi/bistro-pos/internal/auth"
	"github.com/ederavi/bistro-pos/internal/config"
	"github.com/ederavi/bistro-pos/internal/database"
	"github.com/ederavi/bistro-pos/internal/handler"
	"github.com/ederavi/bistro-pos/internal/queue"
	"github.com/ederavi/bistro-pos/internal/repository"
	"github.com/ederavi/bistro-pos/internal/router"
	"github.com/ederavi/bistro-pos/internal/session"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment

	cfg := config.Load()
	log := newLogger(cfg.Env)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("database connect failed")
	}

	rdb := config.NewRedisClient()
	var store session.Store
	if rdb != nil {
		store = session.NewRedisStore(rdb)
	} else {
		if cfg.Env == "prod" {
			log.Fatal().Msg("redis unavailable; sessions cannot be shared across instances")
		}
		log.Warn().Msg("redis unavailable; using in-memory sessions")
		store = session.NewMemoryStore()
	}
	sessions := session.NewManager(store,
		time.Duration(cfg.SessionTTLMin)*time.Minute,
		time.Duration(cfg.SessionRotateMin)*time.Minute)

	authCfg := auth.Config{
		LockoutThreshold: cfg.LockoutThreshold,
		LockoutDuration:  time.Duration(cfg.LockoutMinutes) * time.Minute,
		RememberTTL:      time.Duration(cfg.RememberTTLDays) * 24 * time.Hour,
		BcryptCost:       cfg.BcryptCost,
		ResetSecret:      cfg.ResetSecret,
		ResetTTL:         time.Duration(cfg.ResetTTLMin) * time.Minute,
	}

	// Identity services bind to a request-scoped connection; the factory
	// hands the remember-me middleware one per request.
	authFactory := func(ctx context.Context) (*auth.Service, func(), error) {
		conn, err := database.NewConn(ctx, db)
		if err != nil {
			return nil, nil, err
		}
		svc := auth.NewService(repository.NewUserRepo(conn), sessions, authCfg, log)
		return svc, func() { _ = conn.Close() }, nil
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()

	router.Register(e, router.Deps{
		Sessions:    sessions,
		AuthFactory: authFactory,
		Auth:        handler.NewAuthHandler(db, sessions, authCfg, log, cfg.CookieSecure, cfg.Env != "prod"),
		Menu:        handler.NewMenuHandler(db),
		Orders:      handler.NewOrderHandler(db, log),
		Reports:     handler.NewReportHandler(db),
		Redis:       rdb,
		RateCfg:     config.LoadLoginRateConfig(),
		CacheCfg:    config.LoadMenuCacheConfig(),
		Log:         log,
		Secure:      cfg.CookieSecure,
	})

	go func() {
		if err := queue.StartOrderConsumer(); err != nil {
			log.Error().Err(err).Msg("order consumer stopped")
		}
	}()

	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
	if err := e.Start(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "prod" {
		return zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}
