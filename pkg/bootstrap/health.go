// pkg/bootstrap/health.go

package bootstrap

import (
	"context"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/CodeMonkeyCybersecurity/omboot/pkg/omboot_err"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/ozone"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/remote"
)

// resolveRoleState reads the consensus membership and enforces the gate:
// the target must be a follower. Replacing the leader's own database, or a
// host the group does not know about, is refused outright.
func (e *Engine) resolveRoleState(ctx context.Context) error {
	log := otelzap.Ctx(ctx)

	res, err := e.runChecked(ctx, e.plan.Topology.CMHost,
		ozone.RolesCommand(e.plan.Topology.ServiceID))
	if err != nil {
		return cerr.Wrap(err, "reading consensus roles")
	}

	e.roles = ozone.ParseRoles(res.Combined())
	log.Info("Consensus membership",
		zap.String("leader", e.roles.Leader),
		zap.Strings("followers", e.roles.FollowerHosts()))

	if !e.roles.LeaderKnown() {
		return cerr.New("no unambiguous leader in consensus roles output; refusing to proceed")
	}

	target := e.plan.Target.Hostname
	if target == e.roles.Leader {
		return omboot_err.NewExpectedError(ctx, cerr.Newf(
			"target %s is the current leader; transfer leadership away first, then retry", target))
	}
	if !e.roles.IsFollower(target) {
		return omboot_err.NewExpectedError(ctx, cerr.Newf(
			"target %s is not a follower of the consensus group (followers: %v)",
			target, e.roles.FollowerHosts()))
	}

	e.plan.Leader = e.roles.Leader
	return nil
}

// verifyLeaderHealth checks the leader answers consensus reads. If it does
// not, leadership is moved to a healthy peer so the checkpoint has a
// working source.
func (e *Engine) verifyLeaderHealth(ctx context.Context) error {
	log := otelzap.Ctx(ctx)
	probe := ozone.ServiceRolesCommand(e.plan.Topology.ServiceID)

	_, probeErr := e.runChecked(ctx, e.plan.Leader, probe)
	if probeErr == nil {
		log.Info("Leader healthy", zap.String("leader", e.plan.Leader))
		return nil
	}
	log.Warn("Leader did not answer consensus reads, looking for a healthy peer",
		zap.String("leader", e.plan.Leader), zap.Error(probeErr))

	for _, host := range e.plan.Topology.Hostnames() {
		if host == e.plan.Leader || host == e.plan.Target.Hostname {
			continue
		}
		res, err := e.runChecked(ctx, host, probe)
		if err != nil {
			log.Warn("Peer not healthy either", zap.String("host", host), zap.Error(err))
			continue
		}

		nodeID := ozone.ParseRoles(res.Combined()).NodeID(host)
		if nodeID == "" {
			log.Warn("Cannot determine node ID of healthy peer", zap.String("host", host))
			continue
		}

		log.Info("Transferring leadership to healthy peer",
			zap.String("host", host), zap.String("node_id", nodeID))
		if e.plan.DryRun {
			log.Info("Dry run, transfer not executed",
				zap.String("command", ozone.TransferLeadershipCommand(e.plan.Topology.ServiceID, nodeID)))
			e.plan.Leader = host
			return nil
		}
		if _, err := e.runChecked(ctx, host,
			ozone.TransferLeadershipCommand(e.plan.Topology.ServiceID, nodeID),
			remote.WithWriteIntent()); err != nil {
			log.Warn("Leadership transfer failed", zap.String("host", host), zap.Error(err))
			continue
		}
		if err := sleepCtx(ctx, e.settings.SettleDelay); err != nil {
			return err
		}

		res, err = e.runChecked(ctx, host, ozone.RolesCommand(e.plan.Topology.ServiceID))
		if err != nil {
			return cerr.Wrap(err, "re-reading roles after transfer")
		}
		state := ozone.ParseRoles(res.Combined())
		if !state.LeaderKnown() {
			return cerr.New("leadership transfer did not converge on a single leader")
		}
		if state.Leader == e.plan.Target.Hostname {
			return cerr.Newf("leadership landed on the bootstrap target %s; retry later", state.Leader)
		}
		e.roles = state
		e.plan.Leader = state.Leader
		log.Info("New leader confirmed", zap.String("leader", state.Leader))
		return nil
	}

	return cerr.Newf("leader %s is unhealthy and no peer could take over", e.plan.Leader)
}
