// pkg/bootstrap/orchestrator.go

package bootstrap

import (
	"context"
	"fmt"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/CodeMonkeyCybersecurity/omboot/pkg/config"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/omboot_err"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/ozone"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/remote"
)

// Phase is one step of the workflow. Optional phases log their failure and
// let the run continue; required phases abort it.
type Phase struct {
	Name     string
	Optional bool
	Skip     func() bool
	Run      func(ctx context.Context) error
}

// Engine drives the bootstrap workflow against one target replica.
type Engine struct {
	api      ManagementAPI
	exec     remote.Executor
	prompt   Prompter
	settings config.Settings
	opts     Options

	plan  Plan
	state RunState
	roles ozone.RoleState
}

// New assembles an engine. The run ID doubles as the suffix for every
// artifact the run creates, so a glance at /backup ties artifacts to runs.
func New(api ManagementAPI, exec remote.Executor, prompt Prompter, settings config.Settings, opts Options) *Engine {
	runID := time.Now().Unix()
	return &Engine{
		api:      api,
		exec:     exec,
		prompt:   prompt,
		settings: settings,
		opts:     opts,
		plan: Plan{
			Keytab:         opts.Keytab,
			Principal:      opts.Principal,
			SSHUser:        opts.SSHUser,
			SudoUser:       opts.SudoUser,
			RunID:          runID,
			BackupRoot:     fmt.Sprintf("%s/om_bootstrap_%d", settings.BackupRoot, runID),
			DryRun:         opts.DryRun,
			LeadershipTest: opts.LeadershipTest,
		},
	}
}

// Plan exposes the resolved plan, for reporting after a run.
func (e *Engine) Plan() Plan { return e.plan }

func (e *Engine) phases() []Phase {
	return []Phase{
		{Name: "DiscoverTopology", Run: e.discoverTopology},
		{Name: "ValidateConnectivity", Run: e.validateConnectivity},
		{Name: "SafetyGate", Run: e.safetyGate},
		{Name: "ResolveConfiguration", Run: e.resolveConfiguration},
		{Name: "ValidateSecurity", Run: e.validateSecurity},
		{Name: "ResolveRoleState", Run: e.resolveRoleState},
		{Name: "VerifyLeaderHealth", Run: e.verifyLeaderHealth},
		{Name: "SnapshotLogPositionsBefore", Optional: true, Run: e.snapshotLogPositionsBefore},
		{Name: "StopTarget", Run: e.stopTarget},
		{Name: "TestCheckpointEndpoint", Run: e.testCheckpointEndpoint},
		{Name: "DownloadCheckpoint", Run: e.downloadCheckpoint},
		{Name: "ExtractCheckpoint", Run: e.extractCheckpoint},
		{Name: "BackupAndInstallDatabase", Run: e.backupAndInstallDatabase},
		{Name: "BackupConsensusLogs", Optional: true, Run: e.backupConsensusLogs},
		{Name: "StartTarget", Run: e.startTarget},
		{Name: "SnapshotLogPositionsAfter", Optional: true, Run: e.snapshotLogPositionsAfter},
		{Name: "VerifyConvergence", Run: e.verifyConvergence},
		{Name: "TestLeadershipHandoff", Optional: true, Skip: func() bool { return !e.plan.LeadershipTest }, Run: e.testLeadershipHandoff},
	}
}

// Run executes the phase table in order. The first required failure aborts
// the rest; cleanup always runs and tries to undo a partial stop.
func (e *Engine) Run(ctx context.Context) (err error) {
	log := otelzap.Ctx(ctx)
	log.Info("Bootstrap run starting",
		zap.String("cluster", e.opts.Cluster),
		zap.String("target_host", e.opts.TargetHost),
		zap.Int64("run_id", e.plan.RunID),
		zap.Bool("dry_run", e.plan.DryRun))

	defer e.cleanup(ctx, &err)

	for _, p := range e.phases() {
		if p.Skip != nil && p.Skip() {
			log.Debug("Phase skipped", zap.String("phase", p.Name))
			continue
		}
		e.state.Phase = p.Name
		log.Info("Phase starting", zap.String("phase", p.Name))
		start := time.Now()
		perr := p.Run(ctx)
		if perr != nil {
			if p.Optional {
				log.Warn("Optional phase failed, continuing",
					zap.String("phase", p.Name),
					zap.Error(perr))
				continue
			}
			log.Error("Phase failed",
				zap.String("phase", p.Name),
				zap.Duration("duration", time.Since(start)),
				zap.Error(perr))
			return cerr.Wrapf(perr, "phase %s failed", p.Name)
		}
		log.Info("Phase complete",
			zap.String("phase", p.Name),
			zap.Duration("duration", time.Since(start)))
	}

	log.Info("Bootstrap run complete",
		zap.String("target_host", e.plan.Target.Hostname),
		zap.String("backup_root", e.plan.BackupRoot))
	return nil
}

// cleanup removes the staging directory and, when the run stopped a
// previously-running target but never restarted it, attempts a restart so
// an aborted run does not leave the replica down. Repeat-safe.
func (e *Engine) cleanup(ctx context.Context, runErr *error) {
	log := otelzap.Ctx(ctx)

	if e.state.TempDir != "" {
		_, err := e.exec.Run(ctx, e.plan.Target.Hostname,
			"rm -rf "+e.state.TempDir, remote.WithWriteIntent())
		if err != nil {
			log.Warn("Staging directory cleanup failed",
				zap.String("temp_dir", e.state.TempDir),
				zap.Error(err))
		}
		e.state.TempDir = ""
	}

	if *runErr != nil && e.state.StoppedTarget && !e.state.Started {
		log.Warn("Run failed after stopping the target, attempting restart",
			zap.String("target_host", e.plan.Target.Hostname))
		if err := e.startTarget(ctx); err != nil {
			log.Error("Restart after failed run did not succeed, manual start required",
				zap.String("target_host", e.plan.Target.Hostname),
				zap.Error(err))
		}
	}
}

// sleepCtx waits d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// runChecked runs a remote command and converts a nonzero exit into an
// error carrying the command's output.
func (e *Engine) runChecked(ctx context.Context, host, command string, opts ...remote.RunOption) (remote.Result, error) {
	res, err := e.exec.Run(ctx, host, command, opts...)
	if err != nil {
		return res, err
	}
	if res.ExitCode != 0 {
		return res, cerr.Newf("%q on %s exited %d: %s",
			command, host, res.ExitCode,
			omboot_err.ExtractSummary(ctx, res.Combined(), 5))
	}
	return res, nil
}
