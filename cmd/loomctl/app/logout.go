package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out of Loom Studio",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		probe, err := newAuthProbe(cfg)
		if err != nil {
			return err
		}

		if err := probe.Logout(cmd.Context()); err != nil {
			return err
		}

		fmt.Println("Signed out.")
		return nil
	},
}
