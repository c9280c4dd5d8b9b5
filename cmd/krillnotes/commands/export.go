package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/careck/krillnotes/internal/command"
)

var exportCmd = &cobra.Command{
	Use:   "export <out-file>",
	Short: "Write the workspace's notes and scripts to an archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		encrypt, _ := cmd.Flags().GetBool("encrypt")
		password, err := resolveExportPassword(encrypt)
		if err != nil {
			return err
		}

		out, err := os.Create(args[0])
		if err != nil {
			return err
		}
		defer out.Close()

		return withOpenWorkspace(cmd, func() error {
			return surface.ExportWorkspace(cmd.Context(), defaultLabel, out, password)
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <archive-file> <dest-db>",
	Short: "Create a fresh workspace file from an archive",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		archivePath, destPath := args[0], args[1]

		f, err := os.Open(archivePath)
		if err != nil {
			return err
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return err
		}

		peek, err := surface.PeekImport(f, info.Size(), "")
		password := ""
		if sentinel := command.Sentinel(err); sentinel == "ENCRYPTED_ARCHIVE" {
			password, err = promptPassword("archive password: ")
			if err != nil {
				return err
			}
			peek, err = surface.PeekImport(f, info.Size(), password)
		}
		if err != nil {
			return err
		}
		fmt.Printf("archive: %d notes, %d scripts (app version %s)\n", peek.NoteCount, peek.ScriptCount, peek.AppVersion)

		if err := surface.ImportWorkspace(cmd.Context(), defaultLabel, f, info.Size(), destPath, password, purgeKeep()); err != nil {
			return err
		}
		defer surface.CloseWorkspace(defaultLabel)
		fmt.Printf("imported into %s\n", destPath)
		return nil
	},
}

func resolveExportPassword(encrypt bool) (string, error) {
	if !encrypt {
		return "", nil
	}
	return promptPassword("set archive password: ")
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(raw), nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)

	exportCmd.Flags().Bool("encrypt", false, "encrypt every archive entry with a prompted password")
}
