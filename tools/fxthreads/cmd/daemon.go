package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/perpetuallyhorni/fxthreads/pkg/client"
)

// daemonCmd runs retrieval, and optionally upload, on a cron schedule until interrupted.
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Retrieve new bookmarks on a schedule until interrupted.",
	Long: `Runs the retrieval on the configured cron schedule (default "@every 6h"). A run that
is still in progress when the next one is due is not overlapped; the due run is skipped.
With --upload, new bookmarks are uploaded after each retrieval.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		schedule := cfg.Schedule
		if cmd.Flags().Changed("schedule") {
			schedule, _ = cmd.Flags().GetString("schedule")
		}
		withUpload, _ := cmd.Flags().GetBool("upload")
		now, _ := cmd.Flags().GetBool("now")
		if withUpload {
			if err := cfg.CheckCredentials(); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		job := scheduledRun{ctx: ctx, retrieve: retrieveAndReport, finish: writeMetrics, logger: logger}
		if withUpload {
			job.upload = uploadAndReport
		}
		cl := cronLogger{logger}
		c := cron.New(cron.WithLogger(cl), cron.WithChain(jobWrappers(cl)...))
		if _, err := c.AddJob(schedule, job); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", schedule, err)
		}
		c.Start()
		logger.Info().Str("schedule", schedule).Bool("upload", withUpload).Msg("daemon started")
		console.Info("Daemon running on schedule %s, press Ctrl+C to stop", console.Accent(schedule))
		if now {
			c.Entries()[0].WrappedJob.Run()
		}

		<-ctx.Done()
		console.Info("Stopping, waiting for the running job to finish...")
		<-c.Stop().Done()
		logger.Info().Msg("daemon stopped")
		return nil
	},
}

// scheduledRun is one daemon tick: a retrieval pass, then an upload when one is configured
// and the retrieval succeeded without being interrupted.
type scheduledRun struct {
	ctx      context.Context
	retrieve func(context.Context) (*client.Summary, error)
	upload   func(context.Context) error // nil without --upload
	finish   func()
	logger   zerolog.Logger
}

// Run implements cron.Job. Failures are logged and the daemon keeps running.
func (r scheduledRun) Run() {
	if r.ctx.Err() != nil {
		return
	}
	start := time.Now()
	_, err := r.retrieve(r.ctx)
	switch {
	case err != nil:
		r.logger.Error().Err(err).Msg("scheduled retrieval failed")
	case r.upload == nil:
	case r.ctx.Err() != nil:
		r.logger.Warn().Msg("retrieval interrupted, skipping upload")
	default:
		if err := r.upload(r.ctx); err != nil {
			r.logger.Error().Err(err).Msg("scheduled upload failed")
		}
	}
	if r.finish != nil {
		r.finish()
	}
	r.logger.Info().Dur("took", time.Since(start)).Msg("scheduled run finished")
}

// jobWrappers is the chain every scheduled job runs in. A tick that arrives while the
// previous run is still going is dropped.
func jobWrappers(l cron.Logger) []cron.JobWrapper {
	return []cron.JobWrapper{cron.Recover(l), cron.SkipIfStillRunning(l)}
}

func retrieveAndReport(ctx context.Context) (*client.Summary, error) {
	summary, err := retrieve(ctx)
	if summary != nil {
		printRetrieveSummary(summary)
	}
	if err != nil {
		console.Error("Retrieval failed: %v", err)
	}
	return summary, err
}

func uploadAndReport(ctx context.Context) error {
	_, err := runUpload(ctx, false)
	if err != nil {
		console.Error("%v", err)
	}
	return err
}

func writeMetrics() {
	if cfg.MetricsFile == "" || appClient == nil {
		return
	}
	if err := appClient.Metrics().WriteTextfile(cfg.MetricsFile); err != nil {
		logger.Warn().Err(err).Msg("failed to write metrics")
	}
}

// cronLogger routes scheduler messages to the application log.
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}

func init() {
	daemonCmd.Flags().String("schedule", "", `Cron schedule, e.g. "@every 1h" or "0 */6 * * *" (overrides config)`)
	daemonCmd.Flags().Bool("upload", false, "Upload new bookmarks after each retrieval")
	daemonCmd.Flags().Bool("now", false, "Run once immediately instead of waiting for the first tick")
}
