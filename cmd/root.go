/* cmd/root.go */

package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	// Subcommands
	"github.com/CodeMonkeyCybersecurity/omboot/cmd/bootstrap"
	"github.com/CodeMonkeyCybersecurity/omboot/cmd/inspect"

	"github.com/CodeMonkeyCybersecurity/omboot/pkg/logger"
)

// RootCmd is the base command for omboot.
var RootCmd = &cobra.Command{
	Use:   "omboot",
	Short: "Bootstrap a lagging Ozone Manager replica from a leader checkpoint",
	Long: `omboot recovers an Ozone Manager replica that has fallen too far behind
its Ratis peers to catch up on its own. It stops the target OM, downloads a
flushed RocksDB checkpoint from the current leader, installs it with full
backups of everything it replaces, and restarts the replica.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		logger.Initialize(verbose)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// RegisterCommands adds all subcommands to the root command.
func RegisterCommands() {
	RootCmd.PersistentFlags().Bool("verbose", false, "Log debug detail to the console")
	for _, subCmd := range []*cobra.Command{
		bootstrap.BootstrapCmd,
		inspect.InspectCmd,
	} {
		RootCmd.AddCommand(subCmd)
	}
}

// Execute runs the root command. Any failure, including an operator abort,
// exits nonzero so wrapping automation never mistakes an aborted run for a
// completed one.
func Execute() {
	defer func() { _ = logger.Sync() }()

	RegisterCommands()

	if err := RootCmd.Execute(); err != nil {
		logger.L().Error("Command failed", zap.Error(err))
		os.Exit(1)
	}
}
