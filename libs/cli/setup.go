// Package cli binds cobra flags, environment variables and the config file
// into viper.
package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	HomeFlag   = "home"
	TraceFlag  = "trace"
	OutputFlag = "output"
)

// InitEnv makes viper read PREFIX_* environment variables, with dots and
// dashes in keys written as underscores: chain.rpc-url is read from
// PREFIX_CHAIN_RPC_URL. Variables written without the underscore after the
// prefix (PREFIXHOME) are accepted too.
func InitEnv(prefix string) {
	prefix = strings.ToUpper(prefix)
	copyUnseparatedEnv(prefix)

	viper.SetEnvPrefix(prefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

func copyUnseparatedEnv(prefix string) {
	sep := prefix + "_"
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, prefix) || strings.HasPrefix(k, sep) {
			continue
		}
		os.Setenv(sep+strings.TrimPrefix(k, prefix), v)
	}
}

// BindFlagsLoadViper binds the flags of cmd, including inherited persistent
// flags, and reads config.toml from the home directory or its config/
// subdirectory. A missing file is not an error.
func BindFlagsLoadViper(cmd *cobra.Command, args []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	home := viper.GetString(HomeFlag)
	viper.Set(HomeFlag, home)
	viper.SetConfigName("config")
	viper.AddConfigPath(home)
	viper.AddConfigPath(filepath.Join(home, "config"))

	err := viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return err
	}
	return nil
}
