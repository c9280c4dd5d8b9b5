// Package commands implements the krillnotes CLI's cobra command tree:
// a thin shell over internal/command.Surface, one session labeled
// "default" per process invocation.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/careck/krillnotes/internal/command"
	"github.com/careck/krillnotes/internal/config"
	"github.com/careck/krillnotes/internal/logging"
)

const defaultLabel = "default"

var (
	surface = command.New()
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "krillnotes",
	Short: "A scriptable, hierarchical note-taking engine",
	Long: `Krillnotes organizes notes as a tree of typed nodes, each governed by
a schema that can be extended with JavaScript hooks and tree actions.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded

		debug, _ := cmd.Flags().GetBool("debug")
		level := logging.Level(cfg.Log.Level)
		if debug {
			level = logging.DebugLevel
		}
		logging.Init(logging.Config{Level: level, JSONOutput: cfg.Log.JSON})
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "enable debug logging")
	rootCmd.PersistentFlags().StringP("workspace", "w", "", "workspace database file (default: from config)")
}

func workspacePath(cmd *cobra.Command) string {
	if path, _ := cmd.Flags().GetString("workspace"); path != "" {
		return path
	}
	return cfg.Workspace.DefaultPath
}

func purgeKeep() int {
	if cfg.Workspace.PurgeKeep <= 0 {
		return 10000
	}
	return cfg.Workspace.PurgeKeep
}
