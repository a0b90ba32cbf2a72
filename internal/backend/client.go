package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/chainguard-dev/region-proxy/internal/errs"
	"github.com/chainguard-dev/region-proxy/internal/retry"
)

// Policies holds the wait and retry budgets of a 'Client'.
type Policies struct {
	// Running bounds the wait for an instance to be running with a public IP.
	Running retry.Policy
	// Settle is slept once the instance is running, so sshd inside it has
	// time to start accepting connections.
	Settle time.Duration
	// Terminated bounds the wait for a terminated instance to be gone.
	Terminated retry.Policy
	// DeleteGroup bounds security group deletion attempts.
	DeleteGroup retry.Policy
}

// DefaultPolicies returns the production budgets: 5 minutes for an instance
// to come up, 1 minute for it to terminate, 5 security group delete attempts.
func DefaultPolicies() Policies {
	return Policies{
		Running:     retry.Policy{Attempts: 60, Interval: 5 * time.Second},
		Settle:      15 * time.Second,
		Terminated:  retry.Policy{Attempts: 30, Interval: 2 * time.Second},
		DeleteGroup: retry.Policy{Attempts: 5, Interval: 5 * time.Second},
	}
}

// Client performs EC2 operations within a single region.
type Client struct {
	api      API
	region   string
	policies Policies
}

type settings struct {
	profile  string
	policies Policies
}

type Option func(*settings)

// WithProfile selects a named profile from the shared AWS config files.
func WithProfile(profile string) Option {
	return func(s *settings) { s.profile = profile }
}

// WithPolicies overrides 'DefaultPolicies'.
func WithPolicies(p Policies) Option {
	return func(s *settings) { s.policies = p }
}

func newSettings(opts []Option) settings {
	s := settings{policies: DefaultPolicies()}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// New loads the default AWS credential chain for 'region' and returns a
// client bound to it.
func New(ctx context.Context, region string, opts ...Option) (*Client, error) {
	s := newSettings(opts)
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if s.profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(s.profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: loading AWS config: %w", errs.ErrInvalidConfig, err)
	}
	return &Client{
		api:      ec2.NewFromConfig(cfg),
		region:   region,
		policies: s.policies,
	}, nil
}

// NewFromAPI wraps an existing API implementation.
func NewFromAPI(api API, region string, opts ...Option) *Client {
	s := newSettings(opts)
	return &Client{api: api, region: region, policies: s.policies}
}

// Region returns the region the client operates in.
func (c *Client) Region() string {
	return c.region
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
