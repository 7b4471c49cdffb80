// Command filevaultctl talks to a filevault server from the shell.
//
//	filevaultctl login <username>
//	filevaultctl ls | images
//	filevaultctl upload <path> | upload-image <path>
//	filevaultctl download <name> [dest] | download-image [-width N] <name> [dest]
//	filevaultctl user-add [-role user] <username>
//
// The server URL and token are read from FILEVAULT_URL and FILEVAULT_TOKEN.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/mkrupp/filevault/internal/client"
	"github.com/mkrupp/filevault/internal/infra/config"
	"github.com/mkrupp/filevault/internal/infra/logging"
)

const namespace = "FILEVAULT_CTL"

// Config is the configuration of the command line client.
type Config struct {
	config.EnvConfig

	Log    logging.LoggerConfig `envPrefix:"LOG_"`
	Client client.Config
}

func main() {
	var cfg Config

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := config.Parse(ctx, &cfg, namespace); err != nil {
		fmt.Fprintf(os.Stderr, "parse config: %v\n", err)
		os.Exit(2) //nolint:gocritic
	}

	logging.Configure(ctx, cfg.Log, "filevaultctl")

	c, err := client.NewHTTPClient(cfg.Client, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2) //nolint:gocritic
	}

	cli := &CLI{client: c, in: os.Stdin, out: os.Stdout, errOut: os.Stderr}

	if err := cli.Run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "filevaultctl: %v\n", err)

		if errors.Is(err, flag.ErrHelp) || errors.Is(err, ErrUsage) {
			os.Exit(2) //nolint:gocritic
		}

		os.Exit(1) //nolint:gocritic
	}
}
