// pkg/bootstrap/verify.go

package bootstrap

import (
	"context"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/CodeMonkeyCybersecurity/omboot/pkg/ozone"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/remote"
)

// verifyConvergence waits for the restarted target to settle and confirms
// the consensus group lists it again, either as follower or leader.
func (e *Engine) verifyConvergence(ctx context.Context) error {
	log := otelzap.Ctx(ctx)

	if e.plan.DryRun {
		log.Info("Dry run, skipping convergence check")
		return nil
	}

	if err := sleepCtx(ctx, e.settings.SettleDelay); err != nil {
		return err
	}

	res, err := e.runChecked(ctx, e.plan.Topology.CMHost,
		ozone.RolesCommand(e.plan.Topology.ServiceID))
	if err != nil {
		return cerr.Wrap(err, "re-reading consensus roles")
	}

	state := ozone.ParseRoles(res.Combined())
	target := e.plan.Target.Hostname
	if state.Leader != target && !state.IsFollower(target) {
		return cerr.Newf("target %s does not appear in the consensus group after restart (leader %q, followers %v)",
			target, state.Leader, state.FollowerHosts())
	}
	e.roles = state

	log.Info("Target rejoined the consensus group",
		zap.String("target", target),
		zap.String("leader", state.Leader),
		zap.Strings("followers", state.FollowerHosts()))
	return nil
}

// testLeadershipHandoff proves the bootstrapped replica can actually lead
// by transferring leadership to it and reading the roles back. Opt-in; a
// freshly caught-up replica taking leadership is a disruptive test.
func (e *Engine) testLeadershipHandoff(ctx context.Context) error {
	log := otelzap.Ctx(ctx)
	target := e.plan.Target.Hostname

	if e.plan.DryRun {
		log.Info("Dry run, skipping leadership handoff test")
		return nil
	}

	nodeID := e.roles.NodeID(target)
	if nodeID == "" {
		res, err := e.runChecked(ctx, e.plan.Topology.CMHost,
			ozone.ServiceRolesCommand(e.plan.Topology.ServiceID))
		if err != nil {
			return cerr.Wrap(err, "reading roles for node ID")
		}
		nodeID = ozone.ParseRoles(res.Combined()).NodeID(target)
	}
	if nodeID == "" {
		return cerr.Newf("cannot determine node ID of %s, leadership test not possible", target)
	}

	log.Info("Transferring leadership to bootstrapped replica",
		zap.String("target", target), zap.String("node_id", nodeID))
	if _, err := e.runChecked(ctx, e.plan.Topology.CMHost,
		ozone.TransferLeadershipCommand(e.plan.Topology.ServiceID, nodeID),
		remote.WithWriteIntent()); err != nil {
		return cerr.Wrap(err, "transferring leadership")
	}
	if err := sleepCtx(ctx, e.settings.SettleDelay); err != nil {
		return err
	}

	res, err := e.runChecked(ctx, e.plan.Topology.CMHost,
		ozone.RolesCommand(e.plan.Topology.ServiceID))
	if err != nil {
		return cerr.Wrap(err, "re-reading roles after handoff")
	}
	state := ozone.ParseRoles(res.Combined())
	if state.Leader != target {
		return cerr.Newf("leadership did not land on %s (leader is %q)", target, state.Leader)
	}

	log.Info("Bootstrapped replica accepted leadership", zap.String("leader", target))
	return nil
}
