package main

import (
	"context"
	"errors"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"gonbs/adapters/api"
	"gonbs/adapters/memory"
	"gonbs/adapters/postgres"
	"gonbs/app"
	"gonbs/internal/config"
	apperrors "gonbs/internal/errors"
	"gonbs/internal/logging"
	"gonbs/internal/migration"
	"gonbs/internal/tfce"
	"gonbs/ports"
)

func main() {
	// A missing .env is fine; the environment is used as is.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.New("info").Fatal("failed to load configuration", "error", err)
	}

	logger := logging.New(cfg.Log.Level)
	defer logger.Sync()

	runs, closeDB, err := initRuns(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize run storage", "error", err)
	}
	defer closeDB()

	settings := app.Settings{
		Params:  cfg.TFCE.Params(),
		Method:  tfce.Method(cfg.TFCE.Method),
		Alpha:   cfg.Inference.Alpha,
		Options: cfg.Inference.Options(),
	}
	service := app.NewService(runs, logger.With("component", "service"), settings)
	server := api.NewServer(service, logger.With("component", "http"), api.Config{
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Release:      cfg.Server.Environment == "production",
	})

	if cfg.Profiling.Enabled {
		go func() {
			logger.Info("profiling server starting", "port", cfg.Profiling.Port)
			if err := http.ListenAndServe(":"+cfg.Profiling.Port, nil); err != nil {
				logger.Error("profiling server failed", "error", err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// initRuns connects to Postgres and migrates the schema when DATABASE_URL is
// set. Without it, run history lives in memory for the life of the process.
func initRuns(cfg *config.Config, logger logging.Logger) (ports.RunRepository, func(), error) {
	if cfg.Database.URL == "" {
		logger.Warn("DATABASE_URL not set, keeping run history in memory")
		return memory.NewRunRepository(), func() {}, nil
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, "failed to connect to database")
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	migrator := migration.NewRunner()
	if err := migrator.Run(context.Background(), db); err != nil {
		db.Close()
		return nil, nil, apperrors.Wrap(err, "database migration failed")
	}
	logger.Info("database ready", "schema_version", migrator.Version())

	return postgres.NewRunRepository(db), func() { db.Close() }, nil
}
