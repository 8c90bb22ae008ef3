/* cmd/inspect/inspect.go */

package inspect

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/CodeMonkeyCybersecurity/omboot/pkg/cm"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/config"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/interaction"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/omboot_cli"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/omboot_err"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/omboot_io"
)

var (
	cmBaseURL    string
	username     string
	password     string
	insecure     bool
	caBundle     string
	settingsFile string
)

// InspectCmd groups read-only views of the managed cluster.
var InspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Read-only views of the managed cluster",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var clustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "List clusters and their services",
	RunE:  omboot_cli.Wrap(runClusters),
}

func init() {
	pf := InspectCmd.PersistentFlags()
	pf.StringVar(&cmBaseURL, "cm-base-url", "", "Cloudera Manager base URL")
	pf.StringVar(&username, "username", "admin", "Cloudera Manager username")
	pf.StringVar(&password, "password", "", "Cloudera Manager password (prompted when empty)")
	pf.BoolVar(&insecure, "insecure", false, "Skip TLS certificate verification")
	pf.StringVar(&caBundle, "ca-bundle", "", "Path to a CA bundle for Cloudera Manager TLS")
	pf.StringVar(&settingsFile, "settings", "", "Optional settings file")
	_ = InspectCmd.MarkPersistentFlagRequired("cm-base-url")

	InspectCmd.AddCommand(clustersCmd)
}

func runClusters(rc *omboot_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	log := otelzap.Ctx(rc.Ctx)

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

	clusters, err := client.ListClusters(rc.Ctx)
	if err != nil {
		return err
	}

	for _, c := range clusters {
		services, err := client.ListServices(rc.Ctx, c.Name)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(services))
		for _, s := range services {
			names = append(names, s.Name+" ("+s.Type+")")
		}
		log.Info("Cluster",
			zap.String("name", c.Name),
			zap.String("display_name", c.DisplayName),
			zap.Strings("services", names))
	}
	return nil
}
