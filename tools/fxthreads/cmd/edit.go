package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	cliconfig "github.com/perpetuallyhorni/fxthreads/tools/fxthreads/internal/config"
)

// editCmd is the parent command for editing configuration files.
var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit the configuration or .env file in your default editor.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// editConfigCmd is the command for editing the main configuration file.
var editConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Edit the configuration file.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := flagConfigPath
		if path == "" {
			var err error
			if path, err = cliconfig.DefaultPath(); err != nil {
				return err
			}
		}
		return editFile(cmd, "config file", path)
	},
}

// editEnvCmd is the command for editing the credentials file.
var editEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "Edit the .env file holding RETRIEVER_PROJECT_ID and RETRIEVER_API_KEY.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.EnvFile == "" {
			return fmt.Errorf("env file path is not defined in config")
		}
		if _, err := os.Stat(cfg.EnvFile); os.IsNotExist(err) {
			if err := os.MkdirAll(filepath.Dir(cfg.EnvFile), 0750); err != nil {
				return fmt.Errorf("could not create env file directory: %w", err)
			}
			template := cliconfig.EnvProjectID + "=\n" + cliconfig.EnvAPIKey + "=\n"
			if err := os.WriteFile(cfg.EnvFile, []byte(template), 0600); err != nil {
				return fmt.Errorf("could not create env file: %w", err)
			}
		}
		return editFile(cmd, "env file", cfg.EnvFile)
	},
}

// editFile ensures the parent directory exists and opens path in the chosen editor.
func editFile(cmd *cobra.Command, what, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("could not create directory for %s: %w", what, err)
	}
	editor, err := determineEditor(cmd)
	if err != nil {
		return err
	}
	console.Info("Opening %s with '%s': %s", what, editor, path)
	return openInEditor(editor, path)
}

// determineEditor picks the first of: --editor, the configured editor, $VISUAL, $EDITOR,
// then an editor found on PATH.
func determineEditor(cmd *cobra.Command) (string, error) {
	flagEditor, _ := cmd.Flags().GetString("editor")
	for _, candidate := range []string{flagEditor, cfg.Editor, os.Getenv("VISUAL"), os.Getenv("EDITOR")} {
		if candidate != "" {
			return candidate, nil
		}
	}

	fallbacks := []string{"nano", "vi", "vim"}
	if runtime.GOOS == "windows" {
		fallbacks = []string{"notepad"}
	}
	for _, name := range fallbacks {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", errors.New("no editor found: pass --editor, set 'editor' in the config, or export $EDITOR")
}

func openInEditor(editor, path string) error {
	// #nosec G204 -- editor comes from the user's own flags, config or environment.
	proc := exec.Command(editor, path)
	proc.Stdin, proc.Stdout, proc.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := proc.Run(); err != nil {
		return fmt.Errorf("%s exited: %w", editor, err)
	}
	return nil
}

func init() {
	editCmd.PersistentFlags().String("editor", "", "Editor command, overrides the config and $EDITOR")
	editCmd.AddCommand(editConfigCmd)
	editCmd.AddCommand(editEnvCmd)
}
