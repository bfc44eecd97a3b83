package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"warehouse-ledger/internal/adapters/cli"
	"warehouse-ledger/internal/bootstrap"
	"warehouse-ledger/internal/config"
	"warehouse-ledger/internal/core"
	"warehouse-ledger/internal/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, cli.Usage)
		os.Exit(2)
	}

	// Results go to stdout; logs stay at warn so they do not interleave.
	if err := logger.Init(false); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.L().WithOptions(zap.IncreaseLevel(zap.WarnLevel))

	cfg := config.Load(log)
	actor := os.Getenv("USER")
	if actor == "" {
		actor = "cli"
	}
	ctx := core.WithActor(context.Background(), actor)

	rt, err := bootstrap.Build(ctx, cfg, log, false)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}

	err = cli.Run(ctx, rt.Service, os.Args[1:], os.Stdin, os.Stdout)
	rt.Close()
	if errors.Is(err, cli.ErrUsage) {
		fmt.Fprintf(os.Stderr, "%v\n\n%s\n", err, cli.Usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
