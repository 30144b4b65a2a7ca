// Package app provides the entry point for the loomctl command-line client.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http/cookiejar"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loomstudio/loomctl/internal/authflow"
	"github.com/loomstudio/loomctl/internal/config"
	"github.com/loomstudio/loomctl/internal/httpclient"
	"github.com/loomstudio/loomctl/internal/versions"
)

var rootCmd = &cobra.Command{
	Use:               "loomctl",
	DisableAutoGenTag: true,
	Short:             "Loom Studio command-line client",
	Long: `Loom Studio command-line client. Signs in against a Loom Studio instance
through the system browser and submits image labeling jobs, following them to
completion.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			slog.Error("Error displaying help", "error", err)
		}
	},
}

// NewRootCmd creates a new root command for the loomctl client.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format)")
	err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	if err != nil {
		slog.Error("Error binding config flag", "error", err)
	}

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(labelCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		info := versions.GetVersionInfo()
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			slog.Error("Error retrieving format flag", "error", err)
			return
		}

		if format == "json" {
			output, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				slog.Error("Error formatting version info as JSON", "error", err)
				return
			}
			fmt.Println(string(output))
		} else {
			slog.Info("loomctl version",
				"version", info.Version,
				"commit", info.Commit,
				"built", info.BuildDate,
				"go", info.GoVersion,
				"platform", info.Platform)
		}
	},
}

func init() {
	versionCmd.Flags().String("format", "", "Output format (json)")
}

// loadConfig resolves the configuration from --config, the default config
// file location, or environment variables alone.
func loadConfig() (*config.Config, error) {
	path := viper.GetString("config")
	if path == "" {
		path = defaultConfigPath()
	}

	if path != "" {
		return config.LoadConfig(config.WithConfigPath(path))
	}
	return config.LoadConfig()
}

// defaultConfigPath returns the well-known config location when a file exists
// there, empty otherwise
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}

	path := filepath.Join(dir, "loomctl", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// newAuthProbe builds the session-status probe with a cookie-carrying client,
// as the authenticated endpoints require
func newAuthProbe(cfg *config.Config) (*authflow.HTTPProbe, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	client := httpclient.NewDefaultClientWithJar(cfg.Server.GetRequestTimeout(), jar)
	return authflow.NewHTTPProbe(client, cfg.Server.BaseURL), nil
}
