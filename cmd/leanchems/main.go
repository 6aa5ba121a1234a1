package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/comigor/leanchems-go/internal/logger"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().Run(ctx, os.Args); err != nil {
		logger.L.Error("fatal", "error", err)
		os.Exit(1)
	}
}
