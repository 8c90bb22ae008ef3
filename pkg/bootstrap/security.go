// pkg/bootstrap/security.go

package bootstrap

import (
	"context"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/CodeMonkeyCybersecurity/omboot/pkg/omboot_err"
)

// validateSecurity makes sure Kerberos credentials exist and work before
// any phase depends on them. Finding out mid-run, with the target already
// stopped, is the failure mode this phase exists to prevent.
func (e *Engine) validateSecurity(ctx context.Context) error {
	log := otelzap.Ctx(ctx)

	if !e.plan.SecurityEnabled && !e.plan.HTTPKerberos {
		log.Debug("Kerberos disabled, nothing to validate")
		return nil
	}

	if e.plan.Keytab == "" || e.plan.Principal == "" {
		return omboot_err.NewExpectedError(ctx, cerr.Newf(
			"the cluster is Kerberized; --keytab and --principal are required"))
	}

	host := e.plan.Topology.CMHost
	if _, err := e.runChecked(ctx, host, "test -f "+e.plan.Keytab); err != nil {
		return omboot_err.NewExpectedError(ctx,
			cerr.Wrapf(err, "keytab %s not found on %s", e.plan.Keytab, host))
	}

	if e.plan.DryRun {
		log.Info("Dry run, skipping credential check",
			zap.String("keytab", e.plan.Keytab),
			zap.String("principal", e.plan.Principal))
		return nil
	}

	kinit := "kinit -kt " + e.plan.Keytab + " " + e.plan.Principal
	if _, err := e.runChecked(ctx, host, kinit); err != nil {
		return omboot_err.NewExpectedError(ctx,
			cerr.Wrapf(err, "credential check failed for %s", e.plan.Principal))
	}

	log.Info("Kerberos credentials validated",
		zap.String("keytab", e.plan.Keytab),
		zap.String("principal", e.plan.Principal))
	return nil
}
