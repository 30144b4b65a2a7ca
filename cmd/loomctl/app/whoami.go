package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomstudio/loomctl/internal/versions"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in Loom Studio identity",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		probe, err := newAuthProbe(cfg)
		if err != nil {
			return err
		}

		identity, err := probe.Check(cmd.Context())
		if err != nil {
			return err
		}
		if identity == nil {
			fmt.Println("Not signed in. Run 'loomctl login' to sign in.")
			return nil
		}

		if identity.Role != "" {
			fmt.Printf("Signed in as %s.\n", identity.Role)
		} else {
			fmt.Println("Signed in.")
		}

		current := versions.GetVersionInfo().Version
		if versions.UpgradeAvailable(identity.LatestClientVersion, current) {
			fmt.Printf("A newer loomctl release is available: %s (you have %s).\n",
				identity.LatestClientVersion, current)
		}
		return nil
	},
}
