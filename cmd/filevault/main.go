package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mkrupp/filevault/internal/app"
	"github.com/mkrupp/filevault/internal/infra/config"
	"github.com/mkrupp/filevault/internal/infra/logging"
)

const appName = "filevault"

func main() {
	var cfg app.Config

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.Parse(ctx, &cfg, app.Namespace); err != nil {
		fmt.Fprintf(os.Stderr, "parse config: %v\n", err)
		os.Exit(2) //nolint:gocritic
	}

	logging.Configure(ctx, cfg.Log, appName)

	if err := run(ctx, cfg); err != nil {
		os.Exit(1) //nolint:gocritic
	}
}

func run(ctx context.Context, cfg app.Config) (err error) {
	log := logging.GetLogger("cmd.filevault")

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)
		} else {
			log.InfoContext(ctx, "shutdown")
		}
	}()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("new app: %w", err)
	}

	defer func() {
		if cerr := a.Close(); cerr != nil {
			log.WarnContext(ctx, "close app failed", "error", cerr)
		}
	}()

	if err := a.Run(ctx); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	return nil
}
