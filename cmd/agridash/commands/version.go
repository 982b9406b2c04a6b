package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agrimarket/agridash/version"
)

// VersionCmd prints the version of the binary.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version info",
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, err := cmd.Flags().GetBool("verbose")
		if err != nil {
			return err
		}
		if !verbose {
			fmt.Fprintln(cmd.OutOrStdout(), version.Version)
			return nil
		}
		bz, err := json.MarshalIndent(version.Get(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(bz))
		return nil
	},
}

func init() {
	VersionCmd.Flags().BoolP("verbose", "v", false, "Show commit and Go versions")
}
