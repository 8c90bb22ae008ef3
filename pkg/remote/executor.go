// pkg/remote/executor.go

// Package remote runs commands on cluster hosts over SSH. The bootstrap
// workflow talks to hosts exclusively through the Executor interface so
// tests can substitute a recording fake.
package remote

import (
	"context"
	"time"
)

// Result carries the outcome of a remote command. A nonzero ExitCode is
// not an error at this layer; callers decide what a failed command means.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Combined returns stdout and stderr joined for log extraction.
func (r Result) Combined() string {
	if r.Stdout == "" {
		return r.Stderr
	}
	if r.Stderr == "" {
		return r.Stdout
	}
	return r.Stdout + "\n" + r.Stderr
}

// Security is the authentication posture applied to remote commands. It is
// set once after discovery, before any Ozone CLI command runs.
type Security struct {
	KerberosEnabled bool
	Keytab          string
	Principal       string
}

// RunConfig is the resolved set of options for one Run call. Exported so
// alternative Executor implementations can honor the same options.
type RunConfig struct {
	WriteIntent bool
	Timeout     time.Duration
}

// RunOption adjusts a single Run call.
type RunOption func(*RunConfig)

// ApplyOptions folds opts into a RunConfig.
func ApplyOptions(opts ...RunOption) RunConfig {
	var cfg RunConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithWriteIntent marks a command that mutates remote state. Write-intent
// commands are logged but not executed in dry-run mode.
func WithWriteIntent() RunOption {
	return func(c *RunConfig) { c.WriteIntent = true }
}

// WithTimeout overrides the executor's default command timeout.
func WithTimeout(d time.Duration) RunOption {
	return func(c *RunConfig) { c.Timeout = d }
}

// Executor runs commands on remote hosts.
type Executor interface {
	// Run executes command on host and returns its outcome. The error is
	// non-nil only when the command could not be executed at all.
	Run(ctx context.Context, host, command string, opts ...RunOption) (Result, error)

	// Probe verifies the host is reachable non-interactively.
	Probe(ctx context.Context, host string) error

	// ProbeSudo verifies passwordless sudo to sudoUser works on host.
	ProbeSudo(ctx context.Context, host, sudoUser string) error

	// SetSecurity installs the authentication posture for later commands.
	SetSecurity(sec Security)

	// SetSudoUser replaces the escalation target, typically after an
	// interactive retry of a failed sudo probe.
	SetSudoUser(user string)
}
