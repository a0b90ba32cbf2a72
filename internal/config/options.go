package config

import (
	"fmt"

	"github.com/chainguard-dev/region-proxy/internal/errs"
)

// DefaultPort is the local SOCKS port when neither a flag nor a preference
// sets one.
const DefaultPort = 1080

// StartOptions are the fully resolved inputs of a start.
type StartOptions struct {
	Region       string
	Port         int
	InstanceType string
	// NoSystemProxy skips enabling the OS proxy.
	NoSystemProxy bool
	// RestrictIngress limits SSH ingress to the caller's public address
	// instead of any address.
	RestrictIngress bool
}

// StartFlags are command line values; nil means "not given".
type StartFlags struct {
	Region          *string
	Port            *int
	InstanceType    *string
	NoSystemProxy   *bool
	RestrictIngress bool
}

// StartOptions merges command line flags over preferences. Built-in
// defaults are applied later by 'ApplyDefaults'.
func (p *Preferences) StartOptions(flags StartFlags) StartOptions {
	opts := StartOptions{RestrictIngress: flags.RestrictIngress}

	opts.Region = pick(flags.Region, p.DefaultRegion)
	opts.Port = pick(flags.Port, p.DefaultPort)
	opts.InstanceType = pick(flags.InstanceType, p.DefaultInstanceType)
	opts.NoSystemProxy = pick(flags.NoSystemProxy, p.NoSystemProxy)
	return opts
}

func pick[T any](flag, pref *T) T {
	if flag != nil {
		return *flag
	}
	if pref != nil {
		return *pref
	}
	var zero T
	return zero
}

// ApplyDefaults fills unset fields: port 1080 and the region's default
// instance type.
func (o *StartOptions) ApplyDefaults() {
	if o.Port == 0 {
		o.Port = DefaultPort
	}
	if o.InstanceType == "" {
		if r, ok := FindRegion(o.Region); ok {
			o.InstanceType = r.DefaultInstanceType()
		}
	}
}

// Validate checks the options after defaults are applied.
func (o *StartOptions) Validate() error {
	if o.Region == "" {
		return fmt.Errorf("%w: region is required, pass --region or run 'region-proxy config set-region'", errs.ErrInvalidConfig)
	}
	if err := validateRegion(o.Region); err != nil {
		return err
	}
	if err := validatePort(o.Port); err != nil {
		return err
	}
	if o.InstanceType == "" {
		return fmt.Errorf("%w: instance type is required", errs.ErrInvalidConfig)
	}
	return nil
}
