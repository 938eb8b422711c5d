package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"
	_ "github.com/lib/pq"

	"adc-acquisition/internal/infra"
	"adc-acquisition/internal/infrastructure/repository/postgres"
)

// migrate creates the result store schema without starting the acquisition service.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := infra.LoadConfig()
	logger := infra.NewLogger(os.Stdout, "migrate")
	defer func() { _ = logger.Sync() }()

	if cfg.DatabaseDSN == "" {
		logger.Fatalf(ctx, "migrate: database DSN is not configured")
	}

	driver := infra.EmptyFallback(cfg.DatabaseDriver, "postgres")
	db, err := sql.Open(driver, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatalf(ctx, "migrate: open %s connection: %v", driver, err)
	}
	defer db.Close()

	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(waitCtx); err != nil {
		logger.Fatalf(ctx, "migrate: database connectivity check failed: %v", err)
	}

	if err := postgres.EnsureSchema(ctx, db); err != nil {
		logger.Fatalf(ctx, "migrate: %v", err)
	}
	logger.Println(ctx, "migrate: schema is up to date")
}
