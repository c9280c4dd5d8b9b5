package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var workspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Create or open a workspace database file",
}

var workspaceCreateCmd = &cobra.Command{
	Use:   "create [path]",
	Short: "Create a new workspace file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if err := surface.CreateWorkspace(cmd.Context(), defaultLabel, path, purgeKeep()); err != nil {
			return err
		}
		fmt.Printf("created workspace at %s\n", path)
		return nil
	},
}

var workspaceInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the open workspace's path and pending script errors",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := surface.OpenWorkspace(cmd.Context(), defaultLabel, workspacePath(cmd), purgeKeep()); err != nil {
			return err
		}
		defer surface.CloseWorkspace(defaultLabel)

		info, err := surface.GetWorkspaceInfo(defaultLabel)
		if err != nil {
			return err
		}
		fmt.Printf("path: %s\nscript errors: %d\n", info.Path, info.ScriptErrors)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workspaceCmd)
	workspaceCmd.AddCommand(workspaceCreateCmd)
	workspaceCmd.AddCommand(workspaceInfoCmd)
}
