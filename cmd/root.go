package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var (
	config  = "./config/node.yaml"
	rootCmd = &cobra.Command{
		Use:   "aa",
		Short: "Account abstraction node CLI",
		Long: `CLI to run and interact with the UserOperation processing node.

Such as "aa run" to start a node or "aa inspect <address>" to read
an account's deposit record from the database.
`,
	}
)

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&config, "config", "c", "./config/node.yaml", "Path to config file")
}
