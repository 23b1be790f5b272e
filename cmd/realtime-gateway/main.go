package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sathi-care/booking-service/internal/config"
	"github.com/sathi-care/booking-service/internal/logging"
	"github.com/sathi-care/booking-service/internal/notify"
	"github.com/sathi-care/booking-service/internal/realtime"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	log := logging.New(cfg.Env)
	defer log.Sync()

	log.Info("realtime-gateway starting up",
		zap.String("env", cfg.Env),
		zap.String("port", cfg.GatewayPort),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := notify.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal("redis connection error", zap.Error(err))
	}
	defer rdb.Close()
	log.Info("connected to Redis")

	hub := realtime.NewHub()
	go hub.Run()
	defer hub.Stop()

	go func() {
		err := realtime.BridgeRedis(rootCtx, rdb, hub, log)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("redis bridge stopped", zap.Error(err))
		}
	}()

	gateway := realtime.NewGateway(hub, []byte(cfg.JWTSecret), log)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gateway.ServeWS)

	srv := &http.Server{
		Addr:              ":" + cfg.GatewayPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server error", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down realtime-gateway")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
