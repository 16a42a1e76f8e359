package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JuggerNaut63/AA/server"
)

var (
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run node",
		Long: `Initialize and run the UserOperation processing node.

Use --config=path-to-your-config-file. default is=./config/node.yaml `,
		Run: func(cmd *cobra.Command, args []string) {
			if err := server.RunWithConfig(config); err != nil {
				fmt.Fprintf(os.Stderr, "node exited with error: %v\n", err)
				os.Exit(1)
			}
		},
	}
)

func init() {
	rootCmd.AddCommand(runCmd)
}
