package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/davidolu/vision-worker/internal/common"
	"github.com/davidolu/vision-worker/internal/inference"
	"github.com/davidolu/vision-worker/internal/repository"
	"github.com/davidolu/vision-worker/internal/worker"
)

var (
	inmem      bool
	sqlitePath string
)

var rootCmd = &cobra.Command{
	Use:           "visiond",
	Short:         "Background processor for image detection jobs",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&inmem, "inmem", false, "use an in-memory SQLite database")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite", "", "use a local SQLite database at this path instead of DB_URL")

	rootCmd.AddCommand(processCmd, runCmd, cleanupCmd, watchCmd, exportCmd)
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds everything the commands wire together.
type app struct {
	cfg    *common.Config
	log    *slog.Logger
	db     *sqlx.DB
	pool   *pgxpool.Pool
	jobs   repository.JobRepository
	svc    inference.Service
	ctrl   *worker.Controller
	runner *worker.Runner
}

func (a *app) cleanup() {
	repository.Close(a.db, a.pool, a.log)
}

// newApp loads config, opens the store, and wires the worker components.
// needInference gates validation of the detector/storage endpoints so that
// cleanup and export runs don't demand them.
func newApp(ctx context.Context, needInference bool) (*app, error) {
	logger := slog.Default()
	cfg := common.LoadConfig()

	a := &app{cfg: cfg, log: logger}

	switch {
	case inmem:
		db, err := repository.OpenSQLite(ctx, ":memory:", logger)
		if err != nil {
			return nil, fmt.Errorf("open in-memory store: %w", err)
		}
		a.db = db
	case sqlitePath != "":
		db, err := repository.OpenSQLite(ctx, sqlitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		a.db = db
	default:
		if cfg.Database.DSN == "" {
			return nil, common.NewAppError("CONFIG_ERROR", "DB_URL is required", common.ErrInvalidInput)
		}
		db, pool, err := repository.Open(ctx, repository.Config{
			DSN:              cfg.Database.DSN,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		a.db, a.pool = db, pool
	}

	a.jobs = repository.NewJobRepository(a.db, logger)

	if needInference {
		if cfg.Inference.DetectorURL == "" || cfg.Storage.BaseURL == "" {
			a.cleanup()
			return nil, common.NewAppError("CONFIG_ERROR",
				"DETECTOR_URL and STORAGE_URL are required", common.ErrInvalidInput)
		}
		a.svc = inference.NewClient(inference.Config{
			DetectorURL:       cfg.Inference.DetectorURL,
			APIKey:            cfg.Inference.APIKey,
			Timeout:           cfg.Inference.Timeout,
			StorageURL:        cfg.Storage.BaseURL,
			Bucket:            cfg.Storage.Bucket,
			StorageServiceKey: cfg.Storage.ServiceKey,
			MinConfidence:     cfg.Inference.MinConfidence,
			ClassFilter:       cfg.Inference.ClassFilter,
		}, logger)

		a.ctrl = worker.NewController(a.jobs, a.svc, logger)
		policy := worker.NewRetryPolicy(cfg.Worker.MaxRetryCount, cfg.Worker.RetryDelay)
		a.runner = worker.NewRunner(a.jobs, a.ctrl, policy, logger)
	}

	return a, nil
}
