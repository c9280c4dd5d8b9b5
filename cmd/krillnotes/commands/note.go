package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/careck/krillnotes/internal/workspace"
)

// withOpenWorkspace opens the configured workspace file, runs fn, then
// closes it regardless of fn's outcome.
func withOpenWorkspace(cmd *cobra.Command, fn func() error) error {
	ctx := cmd.Context()
	if err := surface.OpenWorkspace(ctx, defaultLabel, workspacePath(cmd), purgeKeep()); err != nil {
		return err
	}
	defer surface.CloseWorkspace(defaultLabel)
	return fn()
}

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Create, move, or delete notes",
}

var noteCreateCmd = &cobra.Command{
	Use:   "create <node-type>",
	Short: "Create a note, either at the root or under --parent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeType := args[0]
		parent, _ := cmd.Flags().GetString("parent")
		sibling, _ := cmd.Flags().GetBool("sibling")

		return withOpenWorkspace(cmd, func() error {
			ctx := cmd.Context()
			if parent == "" {
				n, err := surface.CreateNoteRoot(ctx, defaultLabel, nodeType)
				if err != nil {
					return err
				}
				fmt.Println(n.ID)
				return nil
			}
			mode := workspace.AsChild
			if sibling {
				mode = workspace.AsSibling
			}
			n, err := surface.CreateNote(ctx, defaultLabel, parent, mode, nodeType)
			if err != nil {
				return err
			}
			fmt.Println(n.ID)
			return nil
		})
	},
}

var noteMoveCmd = &cobra.Command{
	Use:   "move <id> <new-parent-id> <position>",
	Short: "Move a note to a new parent and position",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, newParentID := args[0], args[1]
		var position int
		if _, err := fmt.Sscanf(args[2], "%d", &position); err != nil {
			return fmt.Errorf("invalid position %q: %w", args[2], err)
		}
		return withOpenWorkspace(cmd, func() error {
			_, err := surface.MoveNote(cmd.Context(), defaultLabel, id, &newParentID, position)
			return err
		})
	},
}

var noteDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a note, promoting its children unless --all is given",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		strategy := workspace.PromoteChildren
		if all {
			strategy = workspace.DeleteAll
		}
		return withOpenWorkspace(cmd, func() error {
			return surface.DeleteNote(cmd.Context(), defaultLabel, args[0], strategy)
		})
	},
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every note in the workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOpenWorkspace(cmd, func() error {
			notes, err := surface.ListNotes(cmd.Context(), defaultLabel)
			if err != nil {
				return err
			}
			for _, n := range notes {
				parent := "-"
				if n.ParentID != nil {
					parent = *n.ParentID
				}
				fmt.Printf("%s\t%-20s\t%-10s\tparent=%s\tpos=%d\n", n.ID, n.Title, n.NodeType, parent, n.Position)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(noteCmd)
	noteCmd.AddCommand(noteCreateCmd)
	noteCmd.AddCommand(noteMoveCmd)
	noteCmd.AddCommand(noteDeleteCmd)
	noteCmd.AddCommand(noteListCmd)

	noteCreateCmd.Flags().String("parent", "", "selected note id to create relative to")
	noteCreateCmd.Flags().Bool("sibling", false, "create as a sibling instead of a child of --parent")
	noteDeleteCmd.Flags().Bool("all", false, "delete the entire subtree instead of promoting children")
}
