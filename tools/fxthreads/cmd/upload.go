package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/perpetuallyhorni/fxthreads/pkg/upload"
)

// uploadCmd sends bookmarks to the document indexing service.
var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload bookmarks as documents to retriever.sh.",
	Long: `Posts every bookmark not uploaded yet as a document to the configured project.
Uploaded tweet IDs are tracked in a side file; --full uploads everything again and
rebuilds that file. RETRIEVER_PROJECT_ID and RETRIEVER_API_KEY are read from the
environment or the configured .env file.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationCredentials: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		full, _ := cmd.Flags().GetBool("full")
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		_, err := runUpload(ctx, full)
		return err
	},
}

// runUpload uploads pending bookmarks and reports the outcome on the console.
func runUpload(ctx context.Context, full bool) (*upload.Result, error) {
	uploader, err := upload.New(cfg.Upload, appClient.Transport(), logger, appClient.Metrics())
	if err != nil {
		return nil, err
	}
	tracker, err := upload.LoadTracker(cfg.Upload.TrackingFile)
	if err != nil {
		return nil, err
	}

	console.StartProgress("Loading bookmarks...")
	res, err := uploader.Run(ctx, database, tracker, full, console.ProgressFunc("Uploading"))
	console.StopProgress()
	if res != nil {
		console.Info("Found %d bookmarks in database", res.Found)
		if res.ToUpload == 0 {
			console.Success("No new bookmarks to upload")
		} else {
			if res.Interrupted {
				console.Warn("Upload interrupted, run again to continue")
			}
			console.Success("Done: %d uploaded, %d errors, %d total tracked", res.Uploaded, res.Errors, res.Tracked)
		}
	}
	if err != nil {
		return res, fmt.Errorf("upload failed: %w", err)
	}
	return res, nil
}

func init() {
	uploadCmd.Flags().Bool("full", false, "Upload all bookmarks and rebuild the tracking file")
}
