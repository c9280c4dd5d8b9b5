package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/careck/krillnotes/internal/oplog"
)

var oplogCmd = &cobra.Command{
	Use:   "oplog",
	Short: "Inspect and purge the operation log",
}

var oplogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List logged operations, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, _ := cmd.Flags().GetString("type")
		return withOpenWorkspace(cmd, func() error {
			ops, err := surface.ListOperations(cmd.Context(), defaultLabel, oplog.Filter{Type: oplog.Type(typ)})
			if err != nil {
				return err
			}
			for _, op := range ops {
				ts := time.Unix(op.Timestamp, 0).Format(time.RFC3339)
				fmt.Printf("%s\t%s\t%-14s\t%s\n", op.OperationID, ts, op.Type, op.TargetName)
			}
			return nil
		})
	},
}

var oplogPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every operation log row",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOpenWorkspace(cmd, func() error {
			n, err := surface.PurgeOperations(cmd.Context(), defaultLabel)
			if err != nil {
				return err
			}
			fmt.Printf("purged %d operations\n", n)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(oplogCmd)
	oplogCmd.AddCommand(oplogListCmd)
	oplogCmd.AddCommand(oplogPurgeCmd)

	oplogListCmd.Flags().String("type", "", "filter by operation type")
}
