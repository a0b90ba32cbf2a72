package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chainguard-dev/region-proxy/internal/cli"
	"github.com/chainguard-dev/region-proxy/internal/o11y"
)

// these will be set by the goreleaser configuration
// to appropriate values for the compiled binary.
var version string = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if hint := cli.Hint(err); hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	shutdown, err := o11y.SetupTracing(ctx, version)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() { _ = shutdown(context.WithoutCancel(ctx)) }()

	return cli.Execute(ctx, version, os.Args[1:])
}
