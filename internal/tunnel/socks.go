package tunnel

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/chainguard-dev/region-proxy/internal/errs"
	"golang.org/x/net/proxy"
)

var ErrExitLookup = fmt.Errorf("failed to resolve exit address through the tunnel")

// exitIPEndpoint answers with the requester's public address as plain text.
var exitIPEndpoint = "http://checkip.amazonaws.com"

const exitLookupTimeout = 15 * time.Second

// ExitAddress sends a request through the SOCKS proxy on the local port and
// returns the public address the remote end sees.
func (m *Manager) ExitAddress(ctx context.Context, port int) (string, error) {
	dialer, err := proxy.SOCKS5("tcp", localAddr(port), nil, proxy.Direct)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExitLookup, err)
	}
	dialContext := func(_ context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		dialContext = cd.DialContext
	}

	client := &http.Client{
		Transport: &http.Transport{
			DialContext:       dialContext,
			DisableKeepAlives: true,
		},
		Timeout: exitLookupTimeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, exitIPEndpoint, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExitLookup, err)
	}
	res, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w: %w", errs.ErrLocalIO, ErrExitLookup, err)
	}
	defer func() {
		_ = res.Body.Close()
	}()
	if res.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("%w: received HTTP status code %d", ErrExitLookup, res.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(res.Body, 256))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExitLookup, err)
	}

	addr, err := netip.ParseAddr(strings.TrimSpace(string(data)))
	if err != nil {
		return "", fmt.Errorf("%w: unexpected response %q", ErrExitLookup, strings.TrimSpace(string(data)))
	}
	return addr.String(), nil
}
