// release-holds sweeps expired holds back to open and exits. The serving
// path self-heals expired holds lazily on access, so this is an ops tool
// for inventories nobody is browsing, not a required scheduler.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sathi-care/booking-service/internal/booking"
	"github.com/sathi-care/booking-service/internal/config"
	"github.com/sathi-care/booking-service/internal/db"
	"github.com/sathi-care/booking-service/internal/localtime"
	"github.com/sathi-care/booking-service/internal/logging"
	"github.com/sathi-care/booking-service/internal/notify"
)

func main() {
	providerFlag := flag.String("provider", "", "limit the sweep to one provider id")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	log := logging.New(cfg.Env)
	defer log.Sync()

	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	var providerID *uuid.UUID
	if *providerFlag != "" {
		id, err := uuid.Parse(*providerFlag)
		if err != nil {
			log.Fatal("invalid -provider", zap.Error(err))
		}
		providerID = &id
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer pool.Close()

	zone, err := localtime.New(cfg.TZOffset)
	if err != nil {
		log.Fatal("invalid LOCAL_TZ_OFFSET", zap.Error(err))
	}

	engine := booking.NewEngine(booking.NewPgRepository(pool), notify.Noop{}, zone, booking.EngineConfig{
		HoldTTL:    cfg.HoldTTL,
		ListBuffer: cfg.ListBuffer,
	}, log)

	start := time.Now()
	released, err := engine.ReleaseExpiredHolds(ctx, providerID)
	if err != nil {
		log.Fatal("sweep failed", zap.Error(err))
	}

	log.Info("sweep complete",
		zap.Int64("released", released),
		zap.Duration("took", time.Since(start)),
	)
}
