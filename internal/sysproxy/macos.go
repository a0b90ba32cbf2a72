package sysproxy

import (
	"bufio"
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/chainguard-dev/clog"
)

const (
	networksetup = "networksetup"

	// fallbackService is used when no preferred service has an address.
	fallbackService = "Wi-Fi"
)

// preferredServices are tried in order when looking for the active network
// service.
var preferredServices = []string{
	"Wi-Fi",
	"Ethernet",
	"USB 10/100/1000 LAN",
	"Thunderbolt Ethernet",
}

// MacOS drives the SOCKS firewall proxy of the active network service with
// 'networksetup'.
type MacOS struct {
	run Runner
}

func NewMacOS(run Runner) *MacOS {
	return &MacOS{run: run}
}

func (*MacOS) Supported() bool { return true }

// activeService returns the first preferred network service that has an IP
// address assigned.
func (m *MacOS) activeService(ctx context.Context) (string, error) {
	log := clog.FromContext(ctx)
	out, err := m.run.Output(ctx, networksetup, "-listallnetworkservices")
	if err != nil {
		return "", commandError("listing network services", err)
	}
	services := listServices(out)

	for _, preferred := range preferredServices {
		if _, ok := services[preferred]; !ok {
			continue
		}
		info, err := m.run.Output(ctx, networksetup, "-getinfo", preferred)
		if err != nil {
			log.Debug("failed to inspect network service", "service", preferred, "error", err)
			continue
		}
		if hasAddress(info) {
			log.Debug("found active network service", "service", preferred)
			return preferred, nil
		}
	}
	return fallbackService, nil
}

// listServices parses '-listallnetworkservices' output. The first line is a
// legend and disabled services are prefixed with an asterisk.
func listServices(out []byte) map[string]struct{} {
	services := map[string]struct{}{}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for first := true; scanner.Scan(); first = false {
		line := strings.TrimSpace(scanner.Text())
		if first || line == "" || strings.HasPrefix(line, "*") {
			continue
		}
		services[line] = struct{}{}
	}
	return services
}

func hasAddress(info []byte) bool {
	s := string(info)
	return strings.Contains(s, "IP address:") && !strings.Contains(s, "IP address: none")
}

// Enable records the SOCKS proxy of the active service only when one was
// already switched on. Otherwise Disable just turns it off.
func (m *MacOS) Enable(ctx context.Context, port int) (State, error) {
	service, err := m.activeService(ctx)
	if err != nil {
		return nil, err
	}
	log := clog.FromContext(ctx)
	log.Info("enabling SOCKS proxy", "service", service, "port", port)

	var prior State
	if out, err := m.run.Output(ctx, networksetup, "-getsocksfirewallproxy", service); err != nil {
		log.Warn("failed to read SOCKS proxy, it will not be restored", "service", service, "error", err)
	} else if s := parseSettings(out); s.Enabled && s.Server != "" && !leftover(s.Server, strconv.Itoa(s.Port), port) {
		prior = State{"server": s.Server, "port": strconv.Itoa(s.Port)}
	}

	if _, err := m.run.Output(ctx, networksetup, "-setsocksfirewallproxy", service, "localhost", strconv.Itoa(port)); err != nil {
		return nil, commandError("setting SOCKS proxy", err)
	}
	if _, err := m.run.Output(ctx, networksetup, "-setsocksfirewallproxystate", service, "on"); err != nil {
		return nil, commandError("enabling SOCKS proxy", err)
	}
	return prior, nil
}

func (m *MacOS) Disable(ctx context.Context, prior State) error {
	service, err := m.activeService(ctx)
	if err != nil {
		return err
	}

	if server, port := prior["server"], prior["port"]; server != "" && port != "" {
		clog.FromContext(ctx).Info("restoring SOCKS proxy", "service", service, "server", server, "port", port)
		if _, err := m.run.Output(ctx, networksetup, "-setsocksfirewallproxy", service, server, port); err != nil {
			return commandError("restoring SOCKS proxy", err)
		}
		return nil
	}

	clog.FromContext(ctx).Info("disabling SOCKS proxy", "service", service)
	if _, err := m.run.Output(ctx, networksetup, "-setsocksfirewallproxystate", service, "off"); err != nil {
		return commandError("disabling SOCKS proxy", err)
	}
	return nil
}

func (m *MacOS) IsEnabled(ctx context.Context) (bool, error) {
	settings, err := m.Settings(ctx)
	if err != nil {
		return false, err
	}
	return settings.Enabled, nil
}

// Settings is the SOCKS proxy configuration of a network service.
type Settings struct {
	Enabled bool
	Server  string
	Port    int
}

// Settings reads the SOCKS proxy configuration of the active service.
func (m *MacOS) Settings(ctx context.Context) (Settings, error) {
	service, err := m.activeService(ctx)
	if err != nil {
		return Settings{}, err
	}
	out, err := m.run.Output(ctx, networksetup, "-getsocksfirewallproxy", service)
	if err != nil {
		return Settings{}, commandError("reading SOCKS proxy", err)
	}
	return parseSettings(out), nil
}

// parseSettings parses '-getsocksfirewallproxy' output:
//
//	Enabled: Yes
//	Server: localhost
//	Port: 1080
//	Authenticated Proxy Enabled: 0
func parseSettings(out []byte) Settings {
	var s Settings
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "Enabled":
			s.Enabled = value == "Yes"
		case "Server":
			s.Server = value
		case "Port":
			s.Port, _ = strconv.Atoi(value)
		}
	}
	return s
}
