package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/perpetuallyhorni/fxthreads/pkg/client"
	"github.com/perpetuallyhorni/fxthreads/pkg/storage/sqlite"
	"github.com/perpetuallyhorni/fxthreads/tools/fxthreads/internal/cli"
	cliconfig "github.com/perpetuallyhorni/fxthreads/tools/fxthreads/internal/config"
)

// annotationCredentials marks commands that need upload credentials before anything else runs.
const annotationCredentials = "credentials"

// Process-wide state shared by the subcommands. cfg and console exist before any command
// runs; logger, database and appClient are opened by PersistentPreRunE and released by teardown.
var (
	cfg       *cliconfig.Config
	console   *cli.Console
	logger    zerolog.Logger
	logFile   *os.File
	database  *sqlite.DB
	appClient *client.Client

	flagConfigPath string
	flagQuiet      bool
	version        = "dev"
)

// SetVersion records the build version shown by --version and in the log.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

var rootCmd = &cobra.Command{
	Use:   "fxthreads [command]",
	Short: "Retrieves the threads and images of bookmarked tweets, powered by fxtwitter.",
	Long: `Retrieves the threads and images of bookmarked tweets, powered by fxtwitter.

Run 'fxthreads' to walk the reply chain of every bookmark not retrieved yet,
or use a specific command. For example:
  fxthreads --db ./output_data/twitter_bookmarks.db
  fxthreads upload --full
  fxthreads status`,
	Args: cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if isLightweight(cmd) {
			return nil
		}

		var err error
		cleanLogs, _ := cmd.Flags().GetBool("clean-logs")
		debug, _ := cmd.Flags().GetBool("debug")
		logger, logFile, err = setupFileLogger(cleanLogs, debug, cfg)
		if err != nil {
			return fmt.Errorf("failed to set up file logger: %w", err)
		}
		logger.Info().Str("command", cmd.CommandPath()).Str("version", version).Msg("starting")

		if cmd.Annotations[annotationCredentials] == "true" {
			if err := cfg.CheckCredentials(); err != nil {
				return err
			}
		}
		if err := cfg.CheckDatabase(); err != nil {
			return err
		}

		database, err = sqlite.New(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("error initializing database: %w", err)
		}

		appClient, err = client.New(cfg.Config, database, logger)
		if err != nil {
			return fmt.Errorf("error creating client: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return teardown()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Run the default retrieve command.
		return runRetrieve(cmd, args)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// isLightweight reports whether cmd runs without a database and log file.
func isLightweight(cmd *cobra.Command) bool {
	lightweightCommands := []string{"completion", "edit", "debug", "help"}
	for c := cmd; c != nil; c = c.Parent() {
		for _, lwCmd := range lightweightCommands {
			if c.Name() == lwCmd {
				return true
			}
		}
	}
	return false
}

// teardown writes the metrics file and releases the database and log file.
func teardown() error {
	var err error
	if appClient != nil && cfg.MetricsFile != "" {
		if mErr := appClient.Metrics().WriteTextfile(cfg.MetricsFile); mErr != nil {
			console.Warn("%v", mErr)
		}
	}
	appClient = nil
	if database != nil {
		err = database.Close()
		database = nil
	}
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	return err
}

func init() {
	console = cli.New(false)
	cobra.OnInitialize(loadConfig)

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("fxthreads {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfigPath, "config", "c", "", "Config file (default $XDG_CONFIG_HOME/fxthreads/config.yaml)")
	pf.BoolVarP(&flagQuiet, "quiet", "q", false, "Print errors only")
	pf.Bool("debug", false, "Debug level logging, mirrored to stderr")
	pf.Bool("clean-logs", false, "Redact handles, IDs, paths and keys in the log file")
	pf.StringP("dir", "d", "", "Output directory for threads and the index (overrides config)")
	pf.String("db", "", "Path to the bookmark database (overrides config)")
	pf.String("metrics-file", "", "Write Prometheus metrics to this file after the run (overrides config)")
	pf.String("bind", "", "Local IP address or interface for outbound requests (overrides config)")

	rootCmd.AddCommand(retrieveCmd, uploadCmd, indexCmd, statusCmd, daemonCmd, editCmd, debugCmd)
}

// loadConfig reads the config file once flags are parsed. A broken config ends the process.
func loadConfig() {
	if flagQuiet {
		console = cli.New(true)
	}
	var err error
	if cfg, err = cliconfig.Load(flagConfigPath); err != nil {
		console.Error("Cannot load config: %v", err)
		os.Exit(1)
	}
	applyFlagOverrides(rootCmd, cfg)
}

// Execute executes the root command. Resources are released even when the command fails,
// since cobra skips post-run hooks after an error.
func Execute() error {
	err := rootCmd.Execute()
	if tErr := teardown(); tErr != nil && err == nil {
		err = tErr
	}
	return err
}

// ReportError prints a failed command's error, with a hint for setup problems.
func ReportError(err error) {
	console.Error("%v", err)
	switch {
	case errors.Is(err, cliconfig.ErrDatabaseMissing):
		console.Error("Export your bookmarks first or point --db at the database.")
	case errors.Is(err, cliconfig.ErrMissingCredentials):
		console.Error("Set %s and %s in the environment or run 'fxthreads edit env'.", cliconfig.EnvProjectID, cliconfig.EnvAPIKey)
	}
}
