package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/01phanto/EcoLedger/internal/config"
	"github.com/01phanto/EcoLedger/internal/ledger"
	"github.com/01phanto/EcoLedger/internal/portfolio"
)

// The snapshot worker periodically replays the full ledger: it verifies
// the hash chain and rebuilds the balance projection from sequence 1.
// The log is truth and the snapshot tables are cache; a verification
// failure here means history was tampered with and is logged at error
// level for operators.

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.Storage.Driver != "postgres" {
		logger.Fatal("snapshot worker requires the postgres storage driver",
			zap.String("driver", cfg.Storage.Driver))
	}

	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	store := ledger.NewPostgresStore(db, logger)

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Worker.SnapshotSchedule, func() {
		runOnce(store, logger)
	})
	if err != nil {
		logger.Fatal("Invalid snapshot schedule", zap.Error(err),
			zap.String("schedule", cfg.Worker.SnapshotSchedule))
	}

	scheduler.Start()
	logger.Info("Snapshot worker started", zap.String("schedule", cfg.Worker.SnapshotSchedule))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx := scheduler.Stop()
	<-ctx.Done()
	logger.Info("Snapshot worker exiting")
}

func runOnce(store ledger.Store, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	started := time.Now()
	entries, err := store.ReadFrom(ctx, 1, 0)
	if err != nil {
		logger.Error("Failed to read ledger", zap.Error(err))
		return
	}

	if err := ledger.VerifyChain(entries); err != nil {
		logger.Error("Ledger hash chain verification FAILED", zap.Error(err))
		return
	}

	projector := portfolio.NewProjector()
	if err := projector.Rebuild(entries); err != nil {
		logger.Error("Projection rebuild failed", zap.Error(err))
		return
	}

	logger.Info("Ledger verified and projection rebuilt",
		zap.Int("entries", len(entries)),
		zap.Int("projects", len(projector.ProjectIDs())),
		zap.Duration("took", time.Since(started)))
}
