package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agrimarket/agridash/config"
	"github.com/agrimarket/agridash/libs/log"
	tmos "github.com/agrimarket/agridash/libs/os"
	"github.com/agrimarket/agridash/wallet"
)

var errPassphraseMismatch = errors.New("passphrases do not match")

// MakeInitFilesCommand returns the command that writes the config file and,
// optionally, imports a key into an encrypted keystore.
func MakeInitFilesCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	var importKey bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the agridash home directory",
		Long: `Initialize the agridash home directory with a config file.

With --import-key the private key in the key environment variable is
encrypted into the configured keystore file, so it no longer has to be
kept in the environment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteConfigFile(conf.RootDir, conf); err != nil {
				return err
			}
			logger.Info("wrote config file", "home", conf.RootDir)

			if !importKey {
				return nil
			}
			return importKeystore(cmd, conf, logger)
		},
	}
	cmd.Flags().BoolVar(&importKey, "import-key", false, "encrypt the key from the environment into the keystore file")
	AddChainFlags(cmd, conf)
	return cmd
}

func importKeystore(cmd *cobra.Command, conf *config.Config, logger log.Logger) error {
	path := conf.Chain.KeystoreFile()
	if tmos.FileExists(path) {
		logger.Info("found keystore", "path", path)
		return nil
	}

	key, err := wallet.KeyFromEnv(conf.Chain.KeyEnv, conf.Chain.ChainIDBig())
	if err != nil {
		return err
	}

	pass, ok := os.LookupEnv(conf.Chain.PassphraseEnv)
	if !ok {
		if pass, err = readPassphrase("New keystore passphrase: ", conf.Chain.PassphraseEnv); err != nil {
			return err
		}
		again, err := readPassphrase("Repeat passphrase: ", conf.Chain.PassphraseEnv)
		if err != nil {
			return err
		}
		if pass != again {
			return errPassphraseMismatch
		}
	}

	if err := key.Export(path, pass); err != nil {
		return err
	}
	logger.Info("generated keystore", "path", path, "account", key.Address())
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %s; you can now unset %s\n", key.Address().Hex(), conf.Chain.KeyEnv)
	return nil
}
