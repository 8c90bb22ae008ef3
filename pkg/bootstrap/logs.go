// pkg/bootstrap/logs.go

package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// newestSegment returns the most recently modified Ratis segment file on
// host, or "" when none exist.
func (e *Engine) newestSegment(ctx context.Context, host string) (string, error) {
	cmd := fmt.Sprintf(
		`find %s -name 'log_*' -type f -printf '%%T@ %%p\n' 2>/dev/null | sort -n | tail -1`,
		e.plan.RatisDir)
	res, err := e.exec.Run(ctx, host, cmd)
	if err != nil {
		return "", err
	}
	line := lastNonEmptyLine(res.Stdout)
	if line == "" {
		return "", nil
	}
	fields := strings.Fields(line)
	return fields[len(fields)-1], nil
}

// snapshotLogPositionsBefore records the newest segment on the leader and
// the target before anything changes, so drift is observable afterwards.
func (e *Engine) snapshotLogPositionsBefore(ctx context.Context) error {
	log := otelzap.Ctx(ctx)
	if e.plan.RatisDir == "" {
		log.Warn("Ratis storage directory unknown, skipping log position snapshot")
		return nil
	}

	var err error
	e.state.LeaderLogBefore, err = e.newestSegment(ctx, e.plan.Leader)
	if err != nil {
		return err
	}
	if e.plan.Target.Hostname == e.plan.Leader {
		e.state.TargetLogBefore = e.state.LeaderLogBefore
	} else {
		e.state.TargetLogBefore, err = e.newestSegment(ctx, e.plan.Target.Hostname)
		if err != nil {
			return err
		}
	}

	log.Info("Log positions before bootstrap",
		zap.String("leader_segment", e.state.LeaderLogBefore),
		zap.String("target_segment", e.state.TargetLogBefore))
	return nil
}

// snapshotLogPositionsAfter re-reads the newest segments and reports how
// they moved during the run.
func (e *Engine) snapshotLogPositionsAfter(ctx context.Context) error {
	log := otelzap.Ctx(ctx)
	if e.plan.RatisDir == "" {
		return nil
	}

	var err error
	e.state.LeaderLogAfter, err = e.newestSegment(ctx, e.plan.Leader)
	if err != nil {
		return err
	}
	e.state.TargetLogAfter, err = e.newestSegment(ctx, e.plan.Target.Hostname)
	if err != nil {
		return err
	}

	log.Info("Log positions after bootstrap",
		zap.String("leader_segment", e.state.LeaderLogAfter),
		zap.String("target_segment", e.state.TargetLogAfter),
		zap.Bool("leader_advanced", e.state.LeaderLogAfter != e.state.LeaderLogBefore),
		zap.Bool("target_advanced", e.state.TargetLogAfter != e.state.TargetLogBefore))
	return nil
}
