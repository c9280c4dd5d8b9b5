package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Manage user scripts (schemas, hooks, tree actions)",
}

var scriptListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every user script in load order",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOpenWorkspace(cmd, func() error {
			scripts, err := surface.ListUserScripts(cmd.Context(), defaultLabel)
			if err != nil {
				return err
			}
			for _, s := range scripts {
				state := "enabled"
				if !s.Enabled {
					state = "disabled"
				}
				fmt.Printf("%s\t%-20s\tload_order=%d\t%s\n", s.ID, s.Name, s.LoadOrder, state)
			}
			return nil
		})
	},
}

var scriptAddCmd = &cobra.Command{
	Use:   "add <name> <file>",
	Short: "Register a new script from a source file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, path := args[0], args[1]
		source, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return withOpenWorkspace(cmd, func() error {
			s, err := surface.CreateUserScript(cmd.Context(), defaultLabel, name, string(source))
			if err != nil {
				return err
			}
			fmt.Println(s.ID)
			return nil
		})
	},
}

var scriptUpdateCmd = &cobra.Command{
	Use:   "update <id> <name> <file>",
	Short: "Overwrite an existing script's name and source",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, name, path := args[0], args[1], args[2]
		enabled, _ := cmd.Flags().GetBool("enabled")
		source, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return withOpenWorkspace(cmd, func() error {
			_, err := surface.UpdateUserScript(cmd.Context(), defaultLabel, id, name, string(source), enabled)
			return err
		})
	},
}

var scriptDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a script",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOpenWorkspace(cmd, func() error {
			return surface.DeleteUserScript(cmd.Context(), defaultLabel, args[0])
		})
	},
}

var scriptReorderCmd = &cobra.Command{
	Use:   "reorder <id> [id...]",
	Short: "Rewrite load order to match the given id sequence",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOpenWorkspace(cmd, func() error {
			return surface.ReorderAllUserScripts(cmd.Context(), defaultLabel, args)
		})
	},
}

var schemaListCmd = &cobra.Command{
	Use:   "schema-list",
	Short: "List every schema currently registered by loaded scripts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOpenWorkspace(cmd, func() error {
			types, err := surface.GetNodeTypes(cmd.Context(), defaultLabel)
			if err != nil {
				return err
			}
			for _, t := range types {
				fmt.Println(t)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(scriptCmd)
	scriptCmd.AddCommand(scriptListCmd)
	scriptCmd.AddCommand(scriptAddCmd)
	scriptCmd.AddCommand(scriptUpdateCmd)
	scriptCmd.AddCommand(scriptDeleteCmd)
	scriptCmd.AddCommand(scriptReorderCmd)
	scriptCmd.AddCommand(schemaListCmd)

	scriptUpdateCmd.Flags().Bool("enabled", true, "whether the script loads on the next reload")
}
