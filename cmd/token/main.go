// token prints a signed API token for local use.
//
// Usage: go run ./cmd/token -user alice -role operator -ttl 12h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	webAdapter "warehouse-ledger/internal/adapters/web"
	"warehouse-ledger/internal/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	if err := logger.Init(true); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.L()

	user := flag.String("user", "admin", "username recorded as the acting user")
	userID := flag.Int64("id", 1, "user id")
	role := flag.String("role", "operator", "role; viewer is read-only")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	tok, err := webAdapter.IssueToken(secret, *userID, *user, *role, *ttl)
	if err != nil {
		log.Fatal("failed to sign token", zap.Error(err))
	}
	fmt.Println(tok)
}
