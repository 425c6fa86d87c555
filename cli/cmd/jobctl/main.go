package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"imageConverter/cli/commands"
	"imageConverter/internal/logger"
)

func main() {
	log, err := logger.New(envOr("LOG_LEVEL", "warn"))
	if err != nil {
		log = zap.NewNop()
	}
	defer log.Sync()

	if err := commands.NewRootCmd(commands.DefaultConnect, log).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
