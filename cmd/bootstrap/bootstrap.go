/* cmd/bootstrap/bootstrap.go */

package bootstrap

import (
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/CodeMonkeyCybersecurity/omboot/pkg/bootstrap"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/cm"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/config"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/interaction"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/omboot_cli"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/omboot_err"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/omboot_io"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/remote"
)

var (
	cmBaseURL      string
	clusterName    string
	targetHost     string
	username       string
	password       string
	insecure       bool
	caBundle       string
	dryRun         bool
	assumeYes      bool
	keytab         string
	principal      string
	sshUser        string
	sudoUser       string
	leadershipTest bool
	settingsFile   string
)

// BootstrapCmd runs the full recovery workflow against one OM replica.
var BootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Replace a lagging OM replica's database with a leader checkpoint",
	Long: `Stops the target Ozone Manager, downloads a flushed RocksDB checkpoint
from the current Ratis leader, installs it with backups of the replaced
database and consensus logs, restarts the replica, and verifies it rejoins
the consensus group.

Use --dry-run first: it runs every read-only check and logs each mutating
command it would execute, without changing anything.`,
	RunE: omboot_cli.Wrap(runBootstrap),
}

func init() {
	f := BootstrapCmd.Flags()
	f.StringVar(&cmBaseURL, "cm-base-url", "", "Cloudera Manager base URL, e.g. https://cm.example.com:7183")
	f.StringVar(&clusterName, "cluster", "", "Cluster name as known to Cloudera Manager")
	f.StringVar(&targetHost, "target-host", "", "Hostname of the OM replica to bootstrap")
	f.StringVar(&username, "username", "admin", "Cloudera Manager username")
	f.StringVar(&password, "password", "", "Cloudera Manager password (prompted when empty)")
	f.BoolVar(&insecure, "insecure", false, "Skip TLS certificate verification")
	f.StringVar(&caBundle, "ca-bundle", "", "Path to a CA bundle for Cloudera Manager TLS")
	f.BoolVar(&dryRun, "dry-run", false, "Log every mutating command without executing it")
	f.BoolVar(&assumeYes, "yes", false, "Acknowledge that this run may mutate the cluster")
	f.StringVar(&keytab, "keytab", "", "Keytab path on the cluster hosts for Kerberized clusters")
	f.StringVar(&principal, "principal", "", "Kerberos principal matching the keytab")
	f.StringVar(&sshUser, "ssh-user", "root", "SSH login user for cluster hosts")
	f.StringVar(&sudoUser, "sudo-user", "", "User to sudo to for remote commands")
	f.BoolVar(&leadershipTest, "leadership-test", false, "After recovery, verify the replica can take leadership")
	f.StringVar(&settingsFile, "settings", "", "Optional settings file overriding timeouts and paths")

	for _, required := range []string{"cm-base-url", "cluster", "target-host"} {
		_ = BootstrapCmd.MarkFlagRequired(required)
	}
}

func runBootstrap(rc *omboot_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	log := otelzap.Ctx(rc.Ctx)

	if !dryRun && !assumeYes {
		return omboot_err.NewExpectedError(rc.Ctx, cerr.New(
			"this run mutates the cluster; pass --yes to proceed, or --dry-run to rehearse"))
	}

	settings, err := config.Load(settingsFile)
	if err != nil {
		return err
	}

	if password == "" {
		password, err = interaction.PromptSecret("Cloudera Manager password for " + username)
		if err != nil {
			return omboot_err.NewExpectedError(rc.Ctx, err)
		}
	}

	client, err := cm.NewClient(cm.Config{
		BaseURL:    cmBaseURL,
		APIVersion: settings.APIVersion,
		Username:   username,
		Password:   password,
		Insecure:   insecure,
		CABundle:   caBundle,
		Timeout:    60 * time.Second,
	})
	if err != nil {
		return err
	}

	executor := remote.NewSSHExecutor(sshUser, sudoUser, settings.SSHTimeout, dryRun)

	engine := bootstrap.New(client, executor, interaction.NewConsolePrompter(), settings, bootstrap.Options{
		Cluster:        clusterName,
		TargetHost:     targetHost,
		Keytab:         keytab,
		Principal:      principal,
		SSHUser:        sshUser,
		SudoUser:       sudoUser,
		DryRun:         dryRun,
		LeadershipTest: leadershipTest,
	})

	if err := engine.Run(rc.Ctx); err != nil {
		return err
	}

	plan := engine.Plan()
	log.Info("Bootstrap finished",
		zap.String("target_host", plan.Target.Hostname),
		zap.String("backup_root", plan.BackupRoot),
		zap.Bool("dry_run", dryRun))
	return nil
}
