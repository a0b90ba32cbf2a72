package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/gosimple/slug"
	slogmulti "github.com/samber/slog-multi"
)

// fileName is the log file for one invocation of 'command' at 'now'.
func fileName(command string, now time.Time) string {
	name := slug.Make(command)
	if name == "" {
		name = "region-proxy"
	}
	return fmt.Sprintf("%s-%s.log", name, now.UTC().Format("20060102T150405Z"))
}

// setupFile tees every record, debug included, to a JSON file in 'dir'.
// Failing to create the file only costs the file; the console keeps working.
func setupFile(ctx context.Context, dir, command string, handlers []slog.Handler) (context.Context, func()) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		clog.WarnContext(ctx, "failed to create log directory", "path", dir, "error", err.Error())
		return ctx, func() {}
	}

	path := filepath.Join(dir, fileName(command, time.Now()))
	f, err := os.Create(path)
	if err != nil {
		clog.WarnContext(ctx, "failed to create log file", "path", path, "error", err.Error())
		return ctx, func() {}
	}

	file := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
	ctx = install(ctx, slogmulti.Fanout(append(handlers, file)...))
	clog.DebugContext(ctx, "logging to file", "path", path)

	return ctx, func() {
		if err := f.Close(); err != nil {
			clog.WarnContext(ctx, "failed to close log file", "path", path, "error", err.Error())
		}
	}
}
