// Command reelgatectl holds operator tasks for a reelgate deployment.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "configs/config.yaml"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "reelgatectl",
		Short: "Operator tools for reelgate",
		Long: `reelgatectl prepares configuration for a reelgate server and
manages accounts in its Redis store.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", defaultConfigPath, "path to the server config file")

	root.AddCommand(
		newHashPasswordCmd(),
		newConfigCmd(),
		newPromoteCmd(),
		newBackupCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
