package main

import (
	"context"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"gonbs/internal/logging"
	"gonbs/internal/migration"
)

// migrate applies the run-history schema. The database URL comes from the
// first argument or DATABASE_URL.
func main() {
	_ = godotenv.Load()
	logger := logging.New(os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	databaseURL := os.Getenv("DATABASE_URL")
	if len(os.Args) > 1 {
		databaseURL = os.Args[1]
	}
	if databaseURL == "" {
		logger.Fatal("usage: migrate <database_url> (or set DATABASE_URL)")
	}

	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", "error", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	runner := migration.NewRunner()
	if err := runner.Run(ctx, db); err != nil {
		logger.Fatal("migration failed", "error", err)
	}
	logger.Info("migration complete", "version", runner.Version())
}
