package sysproxy

import (
	"context"
	"strconv"
	"strings"

	"github.com/chainguard-dev/clog"
)

const (
	gsettings = "gsettings"

	schemaProxy = "org.gnome.system.proxy"
	schemaSOCKS = "org.gnome.system.proxy.socks"
)

// GNOME drives the desktop-wide proxy through 'gsettings'.
type GNOME struct {
	run Runner
}

func NewGNOME(run Runner) *GNOME {
	return &GNOME{run: run}
}

func (*GNOME) Supported() bool { return true }

func (g *GNOME) set(ctx context.Context, schema, key, value string) error {
	if _, err := g.run.Output(ctx, gsettings, "set", schema, key, value); err != nil {
		return commandError("setting "+schema+" "+key, err)
	}
	return nil
}

func (g *GNOME) get(ctx context.Context, schema, key string) (string, error) {
	out, err := g.run.Output(ctx, gsettings, "get", schema, key)
	if err != nil {
		return "", commandError("reading "+schema+" "+key, err)
	}
	return strings.Trim(strings.TrimSpace(string(out)), "'"), nil
}

// snapshot reads the settings Enable overwrites. When any of them cannot be
// read nothing is recorded, and Disable falls back to mode 'none'.
func (g *GNOME) snapshot(ctx context.Context) State {
	prior := State{}
	for _, k := range []struct{ schema, key string }{
		{schemaProxy, "mode"},
		{schemaSOCKS, "host"},
		{schemaSOCKS, "port"},
	} {
		v, err := g.get(ctx, k.schema, k.key)
		if err != nil {
			clog.FromContext(ctx).Warn("failed to read proxy setting, it will not be restored", "key", k.key, "error", err)
			return nil
		}
		prior[k.key] = v
	}
	return prior
}

func (g *GNOME) Enable(ctx context.Context, port int) (State, error) {
	clog.FromContext(ctx).Info("enabling SOCKS proxy", "desktop", "gnome", "port", port)
	prior := g.snapshot(ctx)
	if prior["mode"] == "manual" && leftover(prior["host"], prior["port"], port) {
		prior = nil
	}
	if err := g.set(ctx, schemaSOCKS, "host", "localhost"); err != nil {
		return nil, err
	}
	if err := g.set(ctx, schemaSOCKS, "port", strconv.Itoa(port)); err != nil {
		return nil, err
	}
	if err := g.set(ctx, schemaProxy, "mode", "manual"); err != nil {
		return nil, err
	}
	return prior, nil
}

func (g *GNOME) Disable(ctx context.Context, prior State) error {
	mode := prior["mode"]
	if mode == "" {
		mode = "none"
	}
	clog.FromContext(ctx).Info("restoring system proxy", "desktop", "gnome", "mode", mode)
	if host := prior["host"]; host != "" {
		if err := g.set(ctx, schemaSOCKS, "host", host); err != nil {
			return err
		}
	}
	if port := prior["port"]; port != "" {
		if err := g.set(ctx, schemaSOCKS, "port", port); err != nil {
			return err
		}
	}
	return g.set(ctx, schemaProxy, "mode", mode)
}

// IsEnabled reports whether the desktop proxy is in manual mode pointing at
// a local SOCKS listener.
func (g *GNOME) IsEnabled(ctx context.Context) (bool, error) {
	mode, err := g.get(ctx, schemaProxy, "mode")
	if err != nil {
		return false, err
	}
	if mode != "manual" {
		return false, nil
	}
	host, err := g.get(ctx, schemaSOCKS, "host")
	if err != nil {
		return false, err
	}
	return host == "localhost" || host == "127.0.0.1", nil
}
