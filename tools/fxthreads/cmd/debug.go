package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	fxtwitter "github.com/perpetuallyhorni/fxthreads/internal"
	"github.com/perpetuallyhorni/fxthreads/pkg/client"
	"github.com/perpetuallyhorni/fxthreads/pkg/logging"
	"github.com/perpetuallyhorni/fxthreads/pkg/network"
	"github.com/perpetuallyhorni/fxthreads/pkg/ratelimiter"
)

// debugCmd represents the base command for debugging tools.
var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Debugging tools for fxthreads.",
	RunE: func(cmd *cobra.Command, args []string) error {
		// If no subcommand is specified, print the help message.
		return cmd.Help()
	},
}

// debugTweetCmd dumps the raw API response for one tweet.
var debugTweetCmd = &cobra.Command{
	Use:   "tweet [author] [id]",
	Short: "Dump the raw JSON response of the status endpoint for a tweet.",
	Long: `This command is for debugging. It fetches a single tweet from the fxtwitter API
and prints the raw, unparsed JSON response directly to stdout. Use "i" as author
when the handle is unknown.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := debugSource(cmd)
		if err != nil {
			return err
		}
		author := strings.TrimPrefix(args[0], "@")
		console.Info("Fetching raw status %s/%s...", author, args[1])
		body, status, err := src.Raw(cmd.Context(), author, args[1])
		if err != nil {
			return fmt.Errorf("failed to get raw status for %s: %w", args[1], err)
		}
		console.Info("HTTP %d", status)
		fmt.Println(string(body))
		return nil
	},
}

// debugThreadCmd walks a thread and prints it as a manifest without touching the datastore.
var debugThreadCmd = &cobra.Command{
	Use:   "thread [author] [id]",
	Short: "Walk the reply chain of a tweet and print it as thread.json would be written.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := debugSource(cmd)
		if err != nil {
			return err
		}
		pacer := ratelimiter.New(cmd.Context(), cfg.HopDelayMin, cfg.HopDelayMax)
		defer pacer.Stop()

		chain := fxtwitter.WalkThread(cmd.Context(), src, strings.TrimPrefix(args[0], "@"), args[1], &fxtwitter.WalkOpt{
			Pacer:   pacer,
			OnFetch: func(t *fxtwitter.Tweet) { console.Info("Fetched %s by @%s", t.ID, t.Author.ScreenName) },
			OnError: func(id string, err error) { console.Warn("Stopped at %s: %v", id, err) },
			OnCycle: func(id string) { console.Warn("Reply chain loops back to %s", id) },
		})
		if len(chain) == 0 {
			return fmt.Errorf("tweet %s could not be fetched", args[1])
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(client.NewManifest(chain[0].ID, chain))
	},
}

// debugSource builds a tweet source from the configuration, logging payloads to stderr with --debug.
func debugSource(cmd *cobra.Command) (*fxtwitter.Source, error) {
	transport, err := network.NewTransport(cfg.BindAddress)
	if err != nil {
		return nil, err
	}
	l := zerolog.Nop()
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		l = logging.New(logging.Options{Level: "debug", Output: os.Stderr})
	}
	return fxtwitter.NewSource(fxtwitter.SourceOpt{
		BaseURL:   cfg.APIURL,
		Transport: transport,
		Timeout:   cfg.RequestTimeout,
		UserAgent: cfg.UserAgent,
		Logger:    &l,
	}), nil
}

// init initializes the debug command and its subcommands.
func init() {
	debugCmd.AddCommand(debugTweetCmd)
	debugCmd.AddCommand(debugThreadCmd)
}
