package log

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileName(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 5, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, "config-set-region-20260301T083005Z.log", fileName("config set-region", now))
	assert.Equal(t, "region-proxy-20260301T083005Z.log", fileName("", now))
}

func TestSetupConsole(t *testing.T) {
	var buf bytes.Buffer

	ctx, done := Setup(t.Context(), Options{Console: &buf})
	defer done()

	clog.FromContext(ctx).Debug("hidden")
	clog.FromContext(With(ctx, "region", "eu-west-1")).Info("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "eu-west-1")
}

func TestSetupVerbose(t *testing.T) {
	var buf bytes.Buffer

	ctx, done := Setup(t.Context(), Options{Console: &buf, Verbose: true})
	defer done()

	clog.FromContext(ctx).Debug("details")
	assert.Contains(t, buf.String(), "details")
}

func TestSetupFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var buf bytes.Buffer

	ctx, done := Setup(t.Context(), Options{Console: &buf, Dir: dir, Command: "start"})
	clog.FromContext(ctx).Debug("only in the file", "port", 1080)
	done()

	assert.NotContains(t, buf.String(), "only in the file")

	matches, err := filepath.Glob(filepath.Join(dir, "start-*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)

	var found bool
	for _, line := range bytes.Split(bytes.TrimSpace(data), []byte("\n")) {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(line, &rec))
		if rec["msg"] == "only in the file" {
			found = true
			assert.Equal(t, "DEBUG", rec["level"])
			assert.EqualValues(t, 1080, rec["port"])
		}
	}
	assert.True(t, found, "record missing from %s", matches[0])
}
