package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	fxtwitter "github.com/perpetuallyhorni/fxthreads/internal"
	"github.com/perpetuallyhorni/fxthreads/pkg/client"
)

// retrieveCmd walks the threads of all bookmarks not retrieved yet.
var retrieveCmd = &cobra.Command{
	Use:   "retrieve",
	Short: "Retrieve threads and images for new bookmarks (default command).",
	Long: `Walks the reply chain of every bookmark without a retrieval record up to its root,
stores every tweet and author, downloads photos into one directory per conversation,
and rewrites thread_index.json.

Press Ctrl+C to stop after the bookmark in progress. It is recorded, and the next run
continues with the remaining ones.`,
	Args: cobra.NoArgs,
	RunE: runRetrieve,
}

// runRetrieve is the shared implementation of the root and retrieve commands.
func runRetrieve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	summary, err := retrieve(ctx)
	if summary != nil {
		printRetrieveSummary(summary)
	}
	return err
}

// retrieve runs one retrieval pass with console progress.
func retrieve(ctx context.Context) (*client.Summary, error) {
	console.StartProgress("Loading bookmarks...")
	summary, err := appClient.RetrieveBookmarks(ctx, console.ProgressFunc("Bookmark"))
	console.StopProgress()
	if err != nil {
		if errors.Is(err, fxtwitter.ErrDiskSpace) {
			console.Error("Disk space error, halting. Free some space and run again.")
		}
		return summary, err
	}
	return summary, nil
}

// printRetrieveSummary reports the counts of a retrieval run.
func printRetrieveSummary(s *client.Summary) {
	if s.Pending == 0 {
		console.Success("No new bookmarks to retrieve")
		console.Field("Threads in index", s.Threads)
		return
	}
	if s.Interrupted {
		console.Warn("Interrupted after %d of %d bookmarks, run again to continue", s.Processed, s.Pending)
	} else {
		console.Success("Processed %d bookmarks", s.Processed)
	}
	console.Field("Retrieved", s.Retrieved)
	console.Field("Not found", s.NotFound)
	console.Field("Failed", s.Failed)
	console.Field("Tweets stored", s.Tweets)
	console.Field("Images downloaded", s.Images)
	console.Field("Threads in index", s.Threads)
}
