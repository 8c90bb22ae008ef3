// pkg/bootstrap/safety.go

package bootstrap

import (
	"context"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/CodeMonkeyCybersecurity/omboot/pkg/omboot_err"
)

const confirmWord = "Continue"

// validateConnectivity probes SSH to every host the run will touch, then
// verifies sudo escalation on the management host. A failed sudo probe
// offers one interactive retry with a different user before aborting.
func (e *Engine) validateConnectivity(ctx context.Context) error {
	log := otelzap.Ctx(ctx)

	hosts := append([]string{e.plan.Topology.CMHost}, e.plan.Topology.Hostnames()...)
	seen := map[string]bool{}
	for _, h := range hosts {
		if seen[h] {
			continue
		}
		seen[h] = true
		log.Debug("Probing host", zap.String("host", h))
		if err := e.exec.Probe(ctx, h); err != nil {
			return omboot_err.NewExpectedError(ctx, err)
		}
	}

	if e.plan.SSHUser == "root" || e.plan.SudoUser == "" {
		return nil
	}

	err := e.exec.ProbeSudo(ctx, e.plan.Topology.CMHost, e.plan.SudoUser)
	if err == nil {
		return nil
	}
	log.Warn("Sudo probe failed", zap.String("sudo_user", e.plan.SudoUser), zap.Error(err))

	retry, perr := e.prompt.Input("Sudo escalation failed. Enter a different sudo user (empty to abort)")
	if perr != nil {
		return perr
	}
	retry = strings.TrimSpace(retry)
	if retry == "" {
		return omboot_err.NewExpectedError(ctx, err)
	}
	if err := e.exec.ProbeSudo(ctx, e.plan.Topology.CMHost, retry); err != nil {
		return omboot_err.NewExpectedError(ctx, err)
	}
	e.plan.SudoUser = retry
	e.exec.SetSudoUser(retry)
	log.Info("Sudo user updated", zap.String("sudo_user", retry))
	return nil
}

// safetyGate shows what the run is about to do and demands the operator
// type the confirmation word verbatim. Dry runs pass without prompting.
func (e *Engine) safetyGate(ctx context.Context) error {
	log := otelzap.Ctx(ctx)

	log.Warn("About to bootstrap an Ozone Manager replica",
		zap.String("cluster", e.plan.Topology.Cluster),
		zap.String("target_host", e.plan.Target.Hostname),
		zap.String("target_role", e.plan.Target.Name))
	log.Warn("The target OM will be stopped and its database replaced with a leader checkpoint")
	log.Warn("Backups of the current database and Ratis logs are kept under " + e.plan.BackupRoot)
	log.Warn("Take a VM or filesystem snapshot of the target host before proceeding if possible")

	if e.plan.DryRun {
		log.Info("Dry run, confirmation prompt skipped")
		return nil
	}

	answer, err := e.prompt.Input("Type '" + confirmWord + "' to proceed")
	if err != nil {
		return err
	}
	if answer != confirmWord {
		return omboot_err.NewExpectedError(ctx,
			cerr.Newf("aborted: expected %q, got %q", confirmWord, answer))
	}
	return nil
}
