package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"github.com/chainguard-dev/region-proxy/internal/errs"
	"github.com/moby/sys/atomicwriter"
	"gopkg.in/yaml.v3"
)

const (
	appName    = "region-proxy"
	configFile = "config.yaml"
)

// DefaultPath is '$XDG_CONFIG_HOME/region-proxy/config.yaml'.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, appName, configFile)
}

// Preferences are persisted user defaults. Unset fields fall through to the
// built-in defaults.
type Preferences struct {
	DefaultRegion       *string `yaml:"default_region,omitempty"`
	DefaultPort         *int    `yaml:"default_port,omitempty"`
	DefaultInstanceType *string `yaml:"default_instance_type,omitempty"`
	NoSystemProxy       *bool   `yaml:"no_system_proxy,omitempty"`
	// Profile names the shared AWS config profile to use.
	Profile *string `yaml:"profile,omitempty"`
}

// Load reads preferences from 'path'. A missing file yields empty
// preferences.
func Load(path string) (*Preferences, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Preferences{}, nil
	} else if err != nil {
		return nil, errs.Wrap(errs.ErrLocalIO, "reading preferences", err)
	}

	var p Preferences
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errs.Wrap(errs.ErrInvalidConfig, "parsing "+path, err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &p, nil
}

// Save writes the preferences to 'path', replacing the file atomically.
func (p *Preferences) Save(path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return errs.Wrap(errs.ErrLocalIO, "encoding preferences", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errs.Wrap(errs.ErrLocalIO, "creating config directory", err)
	}
	if err := atomicwriter.WriteFile(path, data, 0o600); err != nil {
		return errs.Wrap(errs.ErrLocalIO, "writing preferences", err)
	}
	return nil
}

// Reset removes the preferences file. It reports whether there was one.
func Reset(path string) (bool, error) {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, errs.Wrap(errs.ErrLocalIO, "removing preferences", err)
	}
	return true, nil
}

// IsEmpty reports whether no preference is set.
func (p *Preferences) IsEmpty() bool {
	return p.DefaultRegion == nil &&
		p.DefaultPort == nil &&
		p.DefaultInstanceType == nil &&
		p.NoSystemProxy == nil &&
		p.Profile == nil
}

func (p *Preferences) validate() error {
	if p.DefaultRegion != nil {
		if err := validateRegion(*p.DefaultRegion); err != nil {
			return err
		}
	}
	if p.DefaultPort != nil {
		if err := validatePort(*p.DefaultPort); err != nil {
			return err
		}
	}
	if p.DefaultInstanceType != nil && *p.DefaultInstanceType == "" {
		return fmt.Errorf("%w: default_instance_type must not be empty", errs.ErrInvalidConfig)
	}
	return nil
}

// Key names a preference settable from the command line.
type Key string

const (
	KeyRegion        Key = "region"
	KeyPort          Key = "port"
	KeyInstanceType  Key = "instance-type"
	KeyNoSystemProxy Key = "no-system-proxy"
	KeyProfile       Key = "profile"
)

// Keys lists every settable preference.
var Keys = []Key{KeyRegion, KeyPort, KeyInstanceType, KeyNoSystemProxy, KeyProfile}

// Set parses and validates 'value' and stores it under 'key'.
func (p *Preferences) Set(key Key, value string) error {
	switch key {
	case KeyRegion:
		if err := validateRegion(value); err != nil {
			return err
		}
		p.DefaultRegion = &value
	case KeyPort:
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: invalid port %q", errs.ErrInvalidConfig, value)
		}
		if err := validatePort(port); err != nil {
			return err
		}
		p.DefaultPort = &port
	case KeyInstanceType:
		if value == "" {
			return fmt.Errorf("%w: instance type must not be empty", errs.ErrInvalidConfig)
		}
		p.DefaultInstanceType = &value
	case KeyNoSystemProxy:
		b, err := ParseBool(value)
		if err != nil {
			return err
		}
		p.NoSystemProxy = &b
	case KeyProfile:
		if value == "" {
			return fmt.Errorf("%w: profile must not be empty", errs.ErrInvalidConfig)
		}
		p.Profile = &value
	default:
		return unknownKey(key)
	}
	return nil
}

// Unset clears the preference stored under 'key'.
func (p *Preferences) Unset(key Key) error {
	switch key {
	case KeyRegion:
		p.DefaultRegion = nil
	case KeyPort:
		p.DefaultPort = nil
	case KeyInstanceType:
		p.DefaultInstanceType = nil
	case KeyNoSystemProxy:
		p.NoSystemProxy = nil
	case KeyProfile:
		p.Profile = nil
	default:
		return unknownKey(key)
	}
	return nil
}

func unknownKey(key Key) error {
	valid := make([]string, 0, len(Keys))
	for _, k := range Keys {
		valid = append(valid, string(k))
	}
	return fmt.Errorf("%w: unknown key %q, valid keys: %s", errs.ErrInvalidConfig, key, strings.Join(valid, ", "))
}

// ParseBool accepts true/1/yes and false/0/no, case-insensitively.
func ParseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("%w: invalid value %q, use 'true' or 'false'", errs.ErrInvalidConfig, value)
}

func validateRegion(code string) error {
	if _, ok := FindRegion(code); !ok {
		return fmt.Errorf("%w: invalid region %q, run 'region-proxy list-regions' to see available regions", errs.ErrInvalidConfig, code)
	}
	return nil
}

func validatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%w: port must be between 1 and 65535, got %d", errs.ErrInvalidConfig, port)
	}
	return nil
}
