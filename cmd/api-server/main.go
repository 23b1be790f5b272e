package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sathi-care/booking-service/internal/api"
	"github.com/sathi-care/booking-service/internal/booking"
	"github.com/sathi-care/booking-service/internal/config"
	"github.com/sathi-care/booking-service/internal/db"
	"github.com/sathi-care/booking-service/internal/localtime"
	"github.com/sathi-care/booking-service/internal/logging"
	"github.com/sathi-care/booking-service/internal/notify"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	log := logging.New(cfg.Env)
	defer log.Sync()

	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	log.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.Duration("hold_ttl", cfg.HoldTTL),
		zap.String("tz_offset", cfg.TZOffset),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zone, err := localtime.New(cfg.TZOffset)
	if err != nil {
		log.Fatal("invalid LOCAL_TZ_OFFSET", zap.Error(err))
	}

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()

	migCtx, cancelMig := context.WithTimeout(rootCtx, 30*time.Second)
	err = db.Migrate(migCtx, pgPool)
	cancelMig()
	if err != nil {
		log.Fatal("schema migration error", zap.Error(err))
	}
	log.Info("connected to Postgres")

	// Connect Redis. The fan-out is best-effort, so a dead Redis only
	// downgrades notifications; booking still works.
	var pub notify.Publisher = notify.Noop{}
	rdb, err := notify.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Warn("redis unavailable, notifications disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		pub = notify.NewRedisPublisher(rdb)
		log.Info("connected to Redis")
	}

	repo := booking.NewPgRepository(pgPool)
	engine := booking.NewEngine(repo, pub, zone, booking.EngineConfig{
		HoldTTL:    cfg.HoldTTL,
		ListBuffer: cfg.ListBuffer,
	}, log)

	handler := api.NewRouter(api.RouterConfig{
		Engine:    engine,
		PgPool:    pgPool,
		Redis:     rdb,
		JWTSecret: []byte(cfg.JWTSecret),
		Logger:    log,
		Env:       cfg.Env,
		Version:   version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server error", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
