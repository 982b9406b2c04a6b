package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestBindFlagsLoadViperReadsConfigFile(t *testing.T) {
	defer viper.Reset()

	home := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(home, "config"), 0700))
	require.NoError(t, os.WriteFile(
		filepath.Join(home, "config", "config.toml"),
		[]byte("log-level = \"debug\"\n[chain]\nchain-id = 89\n"),
		0600,
	))

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String(HomeFlag, home, "")

	require.NoError(t, BindFlagsLoadViper(cmd, nil))
	require.Equal(t, "debug", viper.GetString("log-level"))
	require.Equal(t, 89, viper.GetInt("chain.chain-id"))
}

func TestBindFlagsLoadViperMissingConfig(t *testing.T) {
	defer viper.Reset()

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String(HomeFlag, t.TempDir(), "")

	require.NoError(t, BindFlagsLoadViper(cmd, nil))
}

func TestInitEnvCopiesUnprefixedVariables(t *testing.T) {
	defer viper.Reset()

	t.Setenv("AGRIDASHHOME", "/tmp/agridash")
	t.Cleanup(func() { os.Unsetenv("AGRIDASH_HOME") })
	InitEnv("agridash")

	require.Equal(t, "/tmp/agridash", os.Getenv("AGRIDASH_HOME"))
	require.Equal(t, "/tmp/agridash", viper.GetString("home"))
}
