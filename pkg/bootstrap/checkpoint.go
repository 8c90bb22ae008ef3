// pkg/bootstrap/checkpoint.go

package bootstrap

import (
	"context"
	"fmt"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/CodeMonkeyCybersecurity/omboot/pkg/ozone"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/remote"
)

// curlAuth returns the flags that make curl negotiate Kerberos on a
// SPNEGO-protected endpoint.
func (e *Engine) curlAuth() string {
	if e.plan.HTTPKerberos {
		return " --negotiate -u :"
	}
	return ""
}

// testCheckpointEndpoint confirms the leader's checkpoint endpoint answers
// before the expensive download and before anything is mutated on disk.
func (e *Engine) testCheckpointEndpoint(ctx context.Context) error {
	log := otelzap.Ctx(ctx)

	url := ozone.CheckpointProbeURL(e.plan.Protocol, e.plan.Leader, e.plan.Port)
	cmd := fmt.Sprintf("curl -k -sS -o /dev/null -I --connect-timeout 10 --max-time 30%s '%s'",
		e.curlAuth(), url)

	if _, err := e.runChecked(ctx, e.plan.Target.Hostname, cmd); err != nil {
		return cerr.Wrapf(err, "checkpoint endpoint %s not reachable from target", url)
	}
	log.Info("Checkpoint endpoint reachable", zap.String("url", url))
	return nil
}

// downloadCheckpoint stages mktemp + curl on the target host and then
// vets the artifact. An artifact that fails either check aborts the run
// before any live directory is touched: an invalid tar means a truncated
// or failed download, and error text inside the archive means the server
// streamed a stack trace instead of a database.
func (e *Engine) downloadCheckpoint(ctx context.Context) error {
	log := otelzap.Ctx(ctx)
	host := e.plan.Target.Hostname

	if e.plan.DryRun {
		e.state.TempDir = fmt.Sprintf("/tmp/om_bootstrap_%d_dryrun", e.plan.RunID)
		log.Info("Dry run, would stage checkpoint download",
			zap.String("mktemp", "mktemp -d "+e.plan.TempDirTemplate()),
			zap.String("url", e.plan.CheckpointURL()),
			zap.String("temp_dir", e.state.TempDir))
		return nil
	}

	res, err := e.runChecked(ctx, host, "mktemp -d "+e.plan.TempDirTemplate(),
		remote.WithWriteIntent())
	if err != nil {
		return cerr.Wrap(err, "creating staging directory")
	}
	e.state.TempDir = lastNonEmptyLine(res.Stdout)
	if e.state.TempDir == "" {
		return cerr.New("mktemp returned no directory")
	}

	tarPath := e.state.TempDir + "/" + ozone.CheckpointFileName
	download := fmt.Sprintf("curl -k -sS -f -o %s%s '%s'",
		tarPath, e.curlAuth(), e.plan.CheckpointURL())
	log.Info("Downloading checkpoint from leader",
		zap.String("url", e.plan.CheckpointURL()),
		zap.String("dest", tarPath))
	if _, err := e.runChecked(ctx, host, download,
		remote.WithWriteIntent(), remote.WithTimeout(e.settings.SSHTimeout)); err != nil {
		return cerr.Wrap(err, "downloading checkpoint")
	}

	if _, err := e.runChecked(ctx, host, fmt.Sprintf("tar -tf %s > /dev/null", tarPath)); err != nil {
		return cerr.Wrap(err, "downloaded checkpoint is not a valid tar archive")
	}

	res, err = e.exec.Run(ctx, host,
		fmt.Sprintf("grep -il 'error\\|exception\\|failed' %s", tarPath))
	if err != nil {
		return cerr.Wrap(err, "scanning checkpoint for error text")
	}
	// grep: 0 = matched, 1 = clean, anything else = scan itself failed.
	switch {
	case res.ExitCode == 0:
		return cerr.Newf("checkpoint at %s contains error text; the leader likely served a failure page", tarPath)
	case res.ExitCode != 1:
		return cerr.Newf("error-text scan of %s failed with exit %d: %s", tarPath, res.ExitCode, res.Combined())
	}

	log.Info("Checkpoint downloaded and vetted", zap.String("path", tarPath))
	return nil
}

// extractCheckpoint unpacks the archive into a staging directory next to
// the live database. The swap itself happens in the install phase.
func (e *Engine) extractCheckpoint(ctx context.Context) error {
	log := otelzap.Ctx(ctx)

	stage := fmt.Sprintf("%s.tmp_%d", e.plan.DBPath, e.plan.RunID)
	tarPath := e.state.TempDir + "/" + ozone.CheckpointFileName
	cmd := fmt.Sprintf("mkdir -p %s && tar -xf %s -C %s", stage, tarPath, stage)

	if e.plan.DryRun {
		log.Info("Dry run, would extract checkpoint", zap.String("command", cmd))
		return nil
	}

	if _, err := e.runChecked(ctx, e.plan.Target.Hostname, cmd,
		remote.WithWriteIntent()); err != nil {
		return cerr.Wrap(err, "extracting checkpoint")
	}
	log.Info("Checkpoint extracted", zap.String("stage_dir", stage))
	return nil
}
