package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/perpetuallyhorni/fxthreads/pkg/config"
	"github.com/perpetuallyhorni/fxthreads/pkg/logging"
	cliconfig "github.com/perpetuallyhorni/fxthreads/tools/fxthreads/internal/config"
)

// applyFlagOverrides applies command-line flag overrides to the configuration.
func applyFlagOverrides(cmd *cobra.Command, cfg *cliconfig.Config) {
	if cmd.Flag("dir").Changed {
		dir, _ := cmd.Flags().GetString("dir")
		cfg.SetOutputPath(dir)
	}
	if cmd.Flag("db").Changed {
		cfg.DatabasePath, _ = cmd.Flags().GetString("db")
	}
	if cmd.Flag("bind").Changed {
		cfg.BindAddress, _ = cmd.Flags().GetString("bind")
	}
	if cmd.Flag("metrics-file").Changed {
		cfg.MetricsFile, _ = cmd.Flags().GetString("metrics-file")
	}
}

// setupFileLogger opens the application log and returns a logger tagged with a fresh run ID.
func setupFileLogger(clean, debug bool, cfg *cliconfig.Config) (zerolog.Logger, *os.File, error) {
	logPath, err := xdg.StateFile(filepath.Join(config.AppName, "app.log"))
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("could not get log file path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0750); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("could not create log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640) // #nosec G304 G302
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("could not open log file: %w", err)
	}

	opt := logging.Options{Level: "info", Output: f}
	if clean {
		opt.Output = logging.NewRedactingWriter(f, cfg.OutputPath, []string{cfg.Upload.APIKey, cfg.Upload.ProjectID})
	}
	if debug {
		opt.Level = "debug"
		opt.Console = os.Stderr
	}
	return newRunLogger(opt), f, nil
}

// newRunLogger builds a logger whose entries all carry the same run_id.
func newRunLogger(opt logging.Options) zerolog.Logger {
	return logging.New(opt).With().Str("run_id", uuid.NewString()).Logger()
}
