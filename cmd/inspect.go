package cmd

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"

	coreconfig "github.com/JuggerNaut63/AA/core/config"
	"github.com/JuggerNaut63/AA/core/ledger"
	"github.com/JuggerNaut63/AA/model"
	"github.com/JuggerNaut63/AA/storage"
)

var (
	inspectCmd = &cobra.Command{
		Use:   "inspect <address>",
		Short: "Inspect an account's deposit record",
		Long:  `Read one account's deposit and stake record straight from the node database. The node must not be running; badger allows a single process.`,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if !common.IsHexAddress(args[0]) {
				fmt.Fprintf(os.Stderr, "not an address: %s\n", args[0])
				os.Exit(1)
			}
			account := common.HexToAddress(args[0])

			nodeConfig, err := coreconfig.NewConfig(config)
			if err != nil {
				fmt.Fprintf(os.Stderr, "cannot load config %s: %v\n", config, err)
				os.Exit(1)
			}

			db, err := storage.NewWithPath(nodeConfig.DbPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "cannot open database %s: %v\n", nodeConfig.DbPath, err)
				os.Exit(1)
			}
			defer db.Close()

			led := ledger.New(db, ledger.Config{
				MinStakeWei:        nodeConfig.MinStakeWei,
				MinUnstakeDelaySec: nodeConfig.MinUnstakeDelaySec,
			}, nil)

			rec, err := led.GetDepositInfo(account)
			if err != nil {
				fmt.Fprintf(os.Stderr, "cannot read deposit record: %v\n", err)
				os.Exit(1)
			}

			pp.Println(model.DepositInfoFromRecord(account, rec))
		},
	}
)

func init() {
	rootCmd.AddCommand(inspectCmd)
}
