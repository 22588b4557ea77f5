package cmd

import (
	"github.com/spf13/cobra"

	"github.com/perpetuallyhorni/fxthreads/pkg/upload"
)

// statusCmd prints datastore counts and the upload tracker size.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how many bookmarks, threads, images and uploads are recorded.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := database.Stats()
		if err != nil {
			return err
		}
		tracker, err := upload.LoadTracker(cfg.Upload.TrackingFile)
		if err != nil {
			return err
		}
		console.Info("%s", console.Strong(cfg.DatabasePath))
		console.Field("Bookmarks", stats.Bookmarks)
		console.Field("Pending", stats.PendingBookmarks)
		console.Field("Retrieved", stats.Retrieved)
		console.Field("Threads", stats.Conversations)
		console.Field("Tweets in threads", stats.ThreadedTweets)
		console.Field("Images", stats.Images)
		console.Field("Uploaded", tracker.Len())
		return nil
	},
}
