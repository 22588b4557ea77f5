package cmd

import (
	"github.com/spf13/cobra"
)

// indexCmd rebuilds the thread index from the datastore.
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rewrite thread_index.json from the database without fetching anything.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		threads, err := appClient.ExportThreadIndex()
		if err != nil {
			return err
		}
		console.Success("Wrote %d threads to %s", threads, cfg.ThreadIndexPath())
		return nil
	},
}
