package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var settingCmd = &cobra.Command{
	Use:   "setting",
	Short: "Get or set per-workspace preferences",
}

var settingGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a setting's value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOpenWorkspace(cmd, func() error {
			val, ok, err := surface.GetSetting(cmd.Context(), defaultLabel, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("setting %q is not set", args[0])
			}
			fmt.Println(val)
			return nil
		})
	},
}

var settingSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write a setting's value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOpenWorkspace(cmd, func() error {
			return surface.SetSetting(cmd.Context(), defaultLabel, args[0], args[1])
		})
	},
}

func init() {
	rootCmd.AddCommand(settingCmd)
	settingCmd.AddCommand(settingGetCmd)
	settingCmd.AddCommand(settingSetCmd)
}
