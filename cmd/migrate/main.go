// migrate applies the embedded SQL migrations under an advisory lock.
//
// Usage: go run ./cmd/migrate [--list]
package main

import (
	"context"
	"os"

	"warehouse-ledger/internal/config"
	"warehouse-ledger/internal/db"
	"warehouse-ledger/internal/logger"
	"warehouse-ledger/migrations"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	isDev := os.Getenv("APP_ENV") == "" || os.Getenv("APP_ENV") == "development"
	if err := logger.Init(isDev); err != nil {
		panic(err)
	}
	defer logger.Sync()

	log := logger.L()

	if len(os.Args) > 1 && os.Args[1] == "--list" {
		ms, err := db.DiscoverMigrations(migrations.FS)
		if err != nil {
			log.Fatal("failed to discover migrations", zap.Error(err))
		}
		for _, m := range ms {
			log.Info("migration", zap.String("version", m.Version), zap.String("file", m.Filename), zap.String("checksum", m.Checksum))
		}
		return
	}

	cfg := config.Load(log)
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, migrations.FS, log); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
	log.Info("all migrations processed")
}
