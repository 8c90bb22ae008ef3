// pkg/bootstrap/install.go

package bootstrap

import (
	"context"
	"fmt"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/CodeMonkeyCybersecurity/omboot/pkg/remote"
)

// backupAndInstallDatabase swaps the extracted checkpoint into place. The
// current database survives twice: a copy under the backup root and the
// renamed original next to the live path, so either can be restored by
// hand if the new database turns out bad.
func (e *Engine) backupAndInstallDatabase(ctx context.Context) error {
	log := otelzap.Ctx(ctx)
	host := e.plan.Target.Hostname
	db := e.plan.DBPath
	stage := fmt.Sprintf("%s.tmp_%d", db, e.plan.RunID)

	steps := []string{
		"mkdir -p " + e.plan.BackupRoot,
		fmt.Sprintf("cp -r %s %s/om.db.backup.%d", db, e.plan.BackupRoot, e.plan.RunID),
		fmt.Sprintf("mv %s %s.backup.%d", db, db, e.plan.RunID),
		fmt.Sprintf("mv %s %s", stage, db),
	}

	if e.plan.DryRun {
		for _, cmd := range steps {
			log.Info("Dry run, would run", zap.String("command", cmd))
		}
		log.Info("Dry run, would run", zap.String("command", "chown -R hdfs:hdfs "+db))
		return nil
	}

	for _, cmd := range steps {
		if _, err := e.runChecked(ctx, host, cmd, remote.WithWriteIntent()); err != nil {
			return cerr.Wrapf(err, "installing database (step %q)", cmd)
		}
	}

	// Ownership follows the OM process user. Getting this wrong only
	// shows up at start, so a failure here is worth a loud warning but
	// the renamed original still allows rollback.
	if _, err := e.runChecked(ctx, host, "chown -R hdfs:hdfs "+db,
		remote.WithWriteIntent()); err != nil {
		log.Warn("chown of the new database failed, verify ownership before relying on the replica",
			zap.String("db_path", db), zap.Error(err))
	}

	log.Info("Checkpoint installed",
		zap.String("db_path", db),
		zap.String("backup_copy", fmt.Sprintf("%s/om.db.backup.%d", e.plan.BackupRoot, e.plan.RunID)),
		zap.String("renamed_original", fmt.Sprintf("%s.backup.%d", db, e.plan.RunID)))
	return nil
}

// backupConsensusLogs moves the target's Ratis segment files aside so the
// restarted OM replays from the installed checkpoint instead of stale
// segments. Copies land under the backup root first; only then are the
// originals moved out of the storage directory.
func (e *Engine) backupConsensusLogs(ctx context.Context) error {
	log := otelzap.Ctx(ctx)
	host := e.plan.Target.Hostname

	if e.plan.RatisDir == "" {
		log.Warn("Ratis storage directory unknown, leaving consensus logs in place")
		return nil
	}

	dest := fmt.Sprintf("%s/ratisLogs_%d", e.plan.BackupRoot, e.plan.RunID)
	findCmd := fmt.Sprintf("find %s -type d -name current | head -1", e.plan.RatisDir)

	if e.plan.DryRun {
		log.Info("Dry run, would back up consensus logs",
			zap.String("find", findCmd),
			zap.String("dest", dest))
		return nil
	}

	res, err := e.runChecked(ctx, host, findCmd)
	if err != nil {
		return cerr.Wrap(err, "locating Ratis current directory")
	}
	current := lastNonEmptyLine(res.Stdout)
	if current == "" {
		log.Warn("No Ratis current directory found, leaving consensus logs in place",
			zap.String("ratis_dir", e.plan.RatisDir))
		return nil
	}

	steps := []string{
		fmt.Sprintf("mkdir -p %s/original", dest),
		fmt.Sprintf("cp %s/log* %s/ 2>/dev/null || true", current, dest),
		fmt.Sprintf("mv %s/log* %s/original/ 2>/dev/null || true", current, dest),
	}
	for _, cmd := range steps {
		if _, err := e.runChecked(ctx, host, cmd, remote.WithWriteIntent()); err != nil {
			return cerr.Wrapf(err, "backing up consensus logs (step %q)", cmd)
		}
	}

	log.Info("Consensus logs moved aside",
		zap.String("current_dir", current),
		zap.String("backup_dir", dest))
	return nil
}
