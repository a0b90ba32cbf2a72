package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"time"
)

// AnyIPv4 is the ingress CIDR allowing every IPv4 source.
const AnyIPv4 = "0.0.0.0/0"

var ErrPublicIPLookup = fmt.Errorf("failed to resolve public IP address")

// publicIPEndpoint answers with the caller's public address as plain text.
var publicIPEndpoint = "https://checkip.amazonaws.com"

var httpClient = &http.Client{Timeout: 10 * time.Second}

// CallerCIDR returns a single-address CIDR for the public IP of the calling
// system, so ingress can be restricted to it.
func CallerCIDR(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, publicIPEndpoint, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPublicIPLookup, err)
	}
	res, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPublicIPLookup, err)
	}
	defer func() {
		_ = res.Body.Close()
	}()
	if res.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("%w: received HTTP status code %d", ErrPublicIPLookup, res.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(res.Body, 256))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPublicIPLookup, err)
	}
	return singleAddrCIDR(strings.TrimSpace(string(data)))
}

var (
	ErrAddressInvalid = fmt.Errorf("failed to parse provided IP address")
	// The tunnel dials the instance's IPv4 address, so only an IPv4 source
	// can be matched by the ingress rule.
	ErrAddressNotIPv4 = fmt.Errorf("restricted ingress needs an IPv4 address")
)

func singleAddrCIDR(addr string) (string, error) {
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrAddressInvalid, addr)
	}
	ip = ip.Unmap()
	if !ip.Is4() {
		return "", fmt.Errorf("%w: public address is %s, retry over IPv4 or start without --restrict-ingress", ErrAddressNotIPv4, ip)
	}
	return netip.PrefixFrom(ip, ip.BitLen()).String(), nil
}

// ipv4Prefix checks that 'cidr' can be sent as an IPv4 ingress range.
func ipv4Prefix(cidr string) error {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrAddressInvalid, cidr)
	}
	if !prefix.Addr().Is4() {
		return fmt.Errorf("%w: %s", ErrAddressNotIPv4, cidr)
	}
	return nil
}
