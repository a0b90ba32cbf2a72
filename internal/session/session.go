// Package session persists the single active proxy session. The presence of
// the session file is what "a proxy is running" means.
package session

import (
	"time"
)

// Session describes the active proxy and every resource backing it.
type Session struct {
	InstanceID      string    `json:"instance_id"`
	Region          string    `json:"region"`
	PublicIP        string    `json:"public_ip"`
	SecurityGroupID string    `json:"security_group_id"`
	KeyPairName     string    `json:"key_pair_name"`
	KeyPath         string    `json:"key_path"`
	LocalPort       int       `json:"local_port"`
	SSHPID          *int      `json:"ssh_pid,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	InstanceType    string    `json:"instance_type,omitempty"`
	// SystemProxy records whether start enabled the system proxy, so stop
	// only turns off what it turned on.
	SystemProxy bool `json:"system_proxy,omitempty"`
	// SystemProxyPrior holds the proxy settings start replaced, restored by
	// stop.
	SystemProxyPrior map[string]string `json:"system_proxy_prior,omitempty"`
}

// PID returns the recorded tunnel pid, if any.
func (s *Session) PID() (int, bool) {
	if s.SSHPID == nil || *s.SSHPID <= 0 {
		return 0, false
	}
	return *s.SSHPID, true
}

// SetPID records the tunnel pid.
func (s *Session) SetPID(pid int) {
	s.SSHPID = &pid
}

// Uptime is the time elapsed since the session started, as of 'now'.
func (s *Session) Uptime(now time.Time) time.Duration {
	if s.StartedAt.IsZero() || now.Before(s.StartedAt) {
		return 0
	}
	return now.Sub(s.StartedAt)
}
