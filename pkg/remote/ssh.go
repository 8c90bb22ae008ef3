// pkg/remote/ssh.go

package remote

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"sync"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const (
	defaultCommandTimeout = 300 * time.Second
	probeTimeout          = 15 * time.Second
)

// SSHExecutor shells out to the ssh binary. Host key checking is disabled
// because the tool targets hosts already managed by the same operator and
// must not stall on first contact during an outage.
type SSHExecutor struct {
	User     string
	SudoUser string
	Timeout  time.Duration
	DryRun   bool

	mu  sync.Mutex
	sec Security
}

// NewSSHExecutor returns an executor that logs in as user and escalates to
// sudoUser for each command. Either may be empty.
func NewSSHExecutor(user, sudoUser string, timeout time.Duration, dryRun bool) *SSHExecutor {
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	return &SSHExecutor{User: user, SudoUser: sudoUser, Timeout: timeout, DryRun: dryRun}
}

// SetSecurity implements Executor.
func (e *SSHExecutor) SetSecurity(sec Security) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sec = sec
}

// SetSudoUser implements Executor.
func (e *SSHExecutor) SetSudoUser(user string) { e.SudoUser = user }

func (e *SSHExecutor) security() Security {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sec
}

// RemoteCommand returns the command as it will run on the remote side:
// ticket acquisition prepended for Ozone CLI calls when Kerberos is on,
// then sudo escalation unless the login user is already root.
func (e *SSHExecutor) RemoteCommand(command string) string {
	sec := e.security()
	if sec.KerberosEnabled && needsTicket(command) {
		// Without a keytab an ambient credential cache or renewable TGT may
		// still be present, so attempt a bare kinit rather than none.
		kinit := "kinit"
		if sec.Keytab != "" {
			kinit += " -kt " + sec.Keytab
			if sec.Principal != "" {
				kinit += " " + sec.Principal
			}
		}
		command = kinit + " && " + command
	}
	if e.SudoUser != "" && e.User != "root" {
		command = "sudo -u " + e.SudoUser + " bash -c " + shQuote(command)
	}
	return command
}

// needsTicket reports whether the command hits a Kerberized Ozone surface.
func needsTicket(command string) bool {
	return strings.Contains(command, "ozone") || strings.Contains(command, "admin")
}

func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func (e *SSHExecutor) sshArgs(host, command string, batch bool) []string {
	args := []string{"-o", "StrictHostKeyChecking=no"}
	if batch {
		args = append(args, "-o", "BatchMode=yes", "-o", "ConnectTimeout=10")
	}
	if e.User != "" {
		args = append(args, "-l", e.User)
	}
	args = append(args, host, command)
	return args
}

// Run implements Executor.
func (e *SSHExecutor) Run(ctx context.Context, host, command string, opts ...RunOption) (Result, error) {
	cfg := ApplyOptions(opts...)
	if cfg.Timeout <= 0 {
		cfg.Timeout = e.Timeout
	}

	remoteCmd := e.RemoteCommand(command)
	log := otelzap.Ctx(ctx)
	log.Info("Running remote command",
		zap.String("host", host),
		zap.String("command", command),
		zap.Bool("write_intent", cfg.WriteIntent),
		zap.Bool("dry_run", e.DryRun))

	if e.DryRun && cfg.WriteIntent {
		log.Info("Dry run, command not executed",
			zap.String("host", host),
			zap.String("command", command))
		return Result{}, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "ssh", e.sshArgs(host, remoteCmd, false)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: strings.TrimRight(stdout.String(), "\n"),
		Stderr: strings.TrimRight(stderr.String(), "\n"),
	}

	if runCtx.Err() == context.DeadlineExceeded {
		res.ExitCode = -1
		log.Warn("Remote command timed out",
			zap.String("host", host),
			zap.String("command", command),
			zap.Duration("timeout", cfg.Timeout))
		return res, cerr.Newf("command timed out after %s on %s", cfg.Timeout, host)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if cerr.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
			return res, cerr.Wrapf(err, "ssh to %s failed", host)
		}
	}

	log.Debug("Remote command finished",
		zap.String("host", host),
		zap.Int("exit_code", res.ExitCode),
		zap.Int("stdout_bytes", len(res.Stdout)),
		zap.Int("stderr_bytes", len(res.Stderr)))
	return res, nil
}

// Probe implements Executor.
func (e *SSHExecutor) Probe(ctx context.Context, host string) error {
	runCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "ssh", e.sshArgs(host, "true", true)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return cerr.Wrapf(err, "cannot reach %s over ssh: %s", host, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// ProbeSudo implements Executor.
func (e *SSHExecutor) ProbeSudo(ctx context.Context, host, sudoUser string) error {
	if sudoUser == "" || e.User == "root" {
		return nil
	}
	runCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	probe := "sudo -n -u " + sudoUser + " true"
	cmd := exec.CommandContext(runCtx, "ssh", e.sshArgs(host, probe, true)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return cerr.Wrapf(err, "passwordless sudo to %s on %s failed: %s",
			sudoUser, host, strings.TrimSpace(stderr.String()))
	}
	return nil
}
