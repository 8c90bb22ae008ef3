// pkg/bootstrap/process.go

package bootstrap

import (
	"context"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/CodeMonkeyCybersecurity/omboot/pkg/cm"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/ozone"
)

// processRunning checks the actual JVM process, independent of what the
// management plane reports the role state to be.
func (e *Engine) processRunning(ctx context.Context, host string) (bool, error) {
	res, err := e.exec.Run(ctx, host, ozone.ProcessCheckCommand())
	if err != nil {
		return false, err
	}
	return res.ExitCode == 0, nil
}

// stopTarget stops the target role through the management plane and waits
// for the process to die. A stop that times out is logged and tolerated;
// the database swap is safe once the process is down, and the poll result
// is re-checked here, not assumed.
func (e *Engine) stopTarget(ctx context.Context) error {
	log := otelzap.Ctx(ctx)
	host := e.plan.Target.Hostname

	if e.plan.DryRun {
		log.Info("Dry run, would stop role via management plane",
			zap.String("role", e.plan.Target.Name))
		return nil
	}

	running, err := e.processRunning(ctx, host)
	if err != nil {
		return cerr.Wrap(err, "checking target process")
	}
	if !running {
		log.Info("Target OM already stopped", zap.String("host", host))
		return nil
	}

	log.Info("Stopping target OM",
		zap.String("role", e.plan.Target.Name),
		zap.String("host", host))
	cmds, err := e.api.RoleCommand(ctx, e.plan.Topology.Cluster, e.plan.Topology.Service,
		"stop", []string{e.plan.Target.Name})
	if err != nil {
		return cerr.Wrap(err, "issuing stop command")
	}
	e.state.StoppedTarget = true
	e.awaitRoleCommands(ctx, "stop", cmds, e.settings.StopTimeout, e.settings.StopInterval)

	stopped, err := e.pollProcess(ctx, host, false, e.settings.StopTimeout, e.settings.StopInterval)
	if err != nil {
		return err
	}
	if !stopped {
		log.Warn("Target OM did not stop within the timeout, continuing anyway",
			zap.String("host", host),
			zap.Duration("timeout", e.settings.StopTimeout))
	}
	return nil
}

// startTarget starts the target role and waits for the process to appear.
// Unlike stop, a start timeout is fatal: finishing with the replica down
// defeats the point of the run.
func (e *Engine) startTarget(ctx context.Context) error {
	log := otelzap.Ctx(ctx)
	host := e.plan.Target.Hostname

	if e.plan.DryRun {
		log.Info("Dry run, would start role via management plane",
			zap.String("role", e.plan.Target.Name))
		return nil
	}

	log.Info("Starting target OM",
		zap.String("role", e.plan.Target.Name),
		zap.String("host", host))
	cmds, err := e.api.RoleCommand(ctx, e.plan.Topology.Cluster, e.plan.Topology.Service,
		"start", []string{e.plan.Target.Name})
	if err != nil {
		return cerr.Wrap(err, "issuing start command")
	}
	e.awaitRoleCommands(ctx, "start", cmds, e.settings.StartTimeout, e.settings.StartInterval)

	started, err := e.pollProcess(ctx, host, true, e.settings.StartTimeout, e.settings.StartInterval)
	if err != nil {
		return err
	}
	if !started {
		return cerr.Newf("target OM on %s did not start within %s",
			host, e.settings.StartTimeout)
	}
	e.state.Started = true

	log.Info("Target OM running, settling", zap.Duration("delay", e.settings.SettleDelay))
	return sleepCtx(ctx, e.settings.SettleDelay)
}

// awaitRoleCommands waits out the asynchronous management-plane commands a
// role command returned. The process poll is what actually decides whether
// the role moved, so command failures are logged, not fatal.
func (e *Engine) awaitRoleCommands(ctx context.Context, action string, cmds []cm.Command, timeout, interval time.Duration) {
	log := otelzap.Ctx(ctx)
	for _, c := range cmds {
		done, err := e.api.WaitForCommand(ctx, c.ID, timeout, interval)
		switch {
		case err != nil:
			log.Warn("Management-plane command did not finish in time",
				zap.String("action", action),
				zap.Int64("command_id", c.ID),
				zap.Error(err))
		case !done.Success:
			log.Warn("Management-plane command reported failure",
				zap.String("action", action),
				zap.Int64("command_id", c.ID),
				zap.String("result", done.ResultMessage))
		}
	}
}

// pollProcess waits until the OM process on host reaches wantRunning or
// the timeout elapses. Returns whether the state was reached.
func (e *Engine) pollProcess(ctx context.Context, host string, wantRunning bool, timeout, interval time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		running, err := e.processRunning(ctx, host)
		if err != nil {
			return false, err
		}
		if running == wantRunning {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		if err := sleepCtx(ctx, interval); err != nil {
			return false, err
		}
	}
}
