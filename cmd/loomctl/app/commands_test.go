package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()

	assert.Equal(t, "loomctl", cmd.Use)
	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))

	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}
	for _, name := range []string{"login", "logout", "whoami", "label", "version"} {
		assert.True(t, subcommands[name], "missing subcommand %s", name)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("LOOM_SERVER_BASEURL", "https://studio.example.com")

	cfg, err := loadConfig()

	require.NoError(t, err)
	assert.Equal(t, "https://studio.example.com", cfg.Server.BaseURL)
}
