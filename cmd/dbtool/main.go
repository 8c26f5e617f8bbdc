package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/PortNumber53/n8n-masterclass/backend/internal/config"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/logging"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/migrations"
)

func main() {
	// Load environment variables
	_ = godotenv.Load(
		"../.env",
		".env",
	)

	logger, err := logging.New(os.Getenv("APP_ENV"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	dsn, err := config.LoadDatabaseURL()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping database", zap.Error(err))
	}

	if len(os.Args) < 2 {
		logger.Info("applying migrations")
		if err := migrations.Up(db, logger); err != nil {
			logger.Fatal("failed to apply migrations", zap.Error(err))
		}
		logger.Info("migrations applied successfully")
		return
	}

	switch os.Args[1] {
	case "fix":
		logger.Info("attempting to fix dirty database")
		if err := migrations.FixDirtyDatabase(db); err != nil {
			logger.Fatal("failed to fix dirty database", zap.Error(err))
		}
		logger.Info("database fixed successfully")

	case "force":
		if len(os.Args) < 3 {
			logger.Fatal(fmt.Sprintf("usage: %s force <version>", os.Args[0]))
		}
		var v uint
		if _, err := fmt.Sscanf(os.Args[2], "%d", &v); err != nil {
			logger.Fatal("invalid version number", zap.String("version", os.Args[2]))
		}

		logger.Info("forcing database version", zap.Uint("version", v))
		if err := migrations.ForceVersion(db, v); err != nil {
			logger.Fatal("failed to force version", zap.Error(err))
		}
		logger.Info("database version forced", zap.Uint("version", v))

	case "status":
		status, err := migrations.CurrentStatus(db)
		if err != nil {
			logger.Fatal("failed to read migration status", zap.Error(err))
		}
		if status.Fresh {
			logger.Info("no migrations applied yet")
			return
		}
		logger.Info("migration status", zap.Uint("version", status.Version), zap.Bool("dirty", status.Dirty))

	default:
		fmt.Fprintf(os.Stderr, "Usage: %s [fix|force <version>|status]\n", os.Args[0])
		os.Exit(1)
	}
}
