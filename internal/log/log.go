// Package log builds the process logger. Records go to the console on
// stderr and, optionally, to a JSON file per invocation and to any extra
// handlers, fanned out with slog-multi. The logger travels on the context
// as a clog.Logger.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/chainguard-dev/clog"
	charmlog "github.com/charmbracelet/log"
	slogmulti "github.com/samber/slog-multi"
)

type Options struct {
	Verbose bool
	// Dir, when set, receives a JSON log file for this invocation.
	Dir string
	// Command names the invocation; it is used in the log file name.
	Command string
	// Console defaults to stderr.
	Console io.Writer
	// Handlers receive every record as well.
	Handlers []slog.Handler
}

// Setup installs the logger on 'ctx' and as the slog default. The returned
// func closes the log file, if any.
func Setup(ctx context.Context, opts Options) (context.Context, func()) {
	if opts.Console == nil {
		opts.Console = os.Stderr
	}

	level := charmlog.InfoLevel
	if opts.Verbose {
		level = charmlog.DebugLevel
	}
	console := charmlog.NewWithOptions(opts.Console, charmlog.Options{
		Level:           level,
		ReportTimestamp: opts.Verbose,
		TimeFormat:      time.TimeOnly,
	})

	handlers := append([]slog.Handler{console}, opts.Handlers...)
	ctx = install(ctx, slogmulti.Fanout(handlers...))

	if opts.Dir == "" {
		return ctx, func() {}
	}
	return setupFile(ctx, opts.Dir, opts.Command, handlers)
}

// With returns a context whose logger carries 'args' on every record.
func With(ctx context.Context, args ...any) context.Context {
	return clog.WithLogger(ctx, clog.FromContext(ctx).With(args...))
}

func install(ctx context.Context, h slog.Handler) context.Context {
	logger := clog.New(h)
	slog.SetDefault(&logger.Logger)
	return clog.WithLogger(ctx, logger)
}
