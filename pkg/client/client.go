package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	fxtwitter "github.com/perpetuallyhorni/fxthreads/internal"
	"github.com/perpetuallyhorni/fxthreads/internal/fs"
	"github.com/perpetuallyhorni/fxthreads/pkg/config"
	"github.com/perpetuallyhorni/fxthreads/pkg/metrics"
	"github.com/perpetuallyhorni/fxthreads/pkg/network"
	"github.com/perpetuallyhorni/fxthreads/pkg/ratelimiter"
	"github.com/perpetuallyhorni/fxthreads/pkg/storage"
)

// Client is the main entry point for retrieving bookmarked threads.
type Client struct {
	cfg        config.Config
	db         storage.Storer
	logger     zerolog.Logger
	transport  http.RoundTripper
	source     *fxtwitter.Source
	downloader *fxtwitter.Downloader
	metrics    *metrics.Metrics
}

// New creates a new Client. The configuration is copied and not observed afterwards.
func New(cfg config.Config, db storage.Storer, logger zerolog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if db == nil {
		return nil, fmt.Errorf("database cannot be nil")
	}
	transport, err := network.NewTransport(cfg.BindAddress)
	if err != nil {
		return nil, err
	}
	c := &Client{
		cfg:       cfg,
		db:        db,
		logger:    logger,
		transport: transport,
		metrics:   metrics.New(),
	}
	c.source = fxtwitter.NewSource(fxtwitter.SourceOpt{
		BaseURL:   cfg.APIURL,
		Transport: transport,
		Timeout:   cfg.RequestTimeout,
		UserAgent: cfg.UserAgent,
		Logger:    &c.logger,
	})
	c.downloader = fxtwitter.NewDownloader(&fxtwitter.DownloadOpt{
		Transport:    transport,
		Timeout:      cfg.DownloadTimeout,
		UserAgent:    cfg.UserAgent,
		MinFreeSpace: cfg.MinFreeSpace,
	})
	return c, nil
}

// Config returns the configuration the client was built with.
func (c *Client) Config() config.Config { return c.cfg }

// Metrics returns the counters updated by the client.
func (c *Client) Metrics() *metrics.Metrics { return c.metrics }

// Source returns the tweet source.
func (c *Client) Source() *fxtwitter.Source { return c.source }

// Transport returns the shared HTTP transport, honoring the bind address.
func (c *Client) Transport() http.RoundTripper { return c.transport }

// ProgressCallback defines the function signature for progress reporting.
type ProgressCallback func(current, total int, message string)

// noOpProgress is a default empty progress callback.
func noOpProgress(current, total int, message string) {}

// Walk follows the reply chain of (author, id) up to its root with the configured hop delay.
func (c *Client) Walk(ctx context.Context, author, id string) []fxtwitter.Tweet {
	pacer := ratelimiter.New(ctx, c.cfg.HopDelayMin, c.cfg.HopDelayMax)
	defer pacer.Stop()
	logger := c.logger.With().Str("bookmark", id).Logger()
	return fxtwitter.WalkThread(ctx, c.source, strings.TrimPrefix(author, "@"), id, &fxtwitter.WalkOpt{
		Pacer: pacer,
		OnFetch: func(t *fxtwitter.Tweet) {
			c.metrics.TweetsFetched.Inc()
			logger.Debug().Str("tweet", t.ID).Str("author", t.Author.ScreenName).Msg("fetched tweet")
		},
		OnError: func(tweetID string, err error) {
			c.metrics.FetchFailures.Inc()
			logger.Warn().Err(err).Str("tweet", tweetID).Msg("stopped walking thread")
		},
		OnCycle: func(tweetID string) {
			logger.Warn().Str("tweet", tweetID).Msg("reply chain loops back, stopping")
		},
	})
}

// ProcessBookmark walks the thread of one bookmark, persists every tweet and author,
// downloads missing photos and writes the conversation manifest. It does not record
// the bookmark in the retrieval ledger.
func (c *Client) ProcessBookmark(ctx context.Context, bm storage.Bookmark) Outcome {
	out := Outcome{BookmarkID: bm.TweetID}
	logger := c.logger.With().Str("bookmark", bm.TweetID).Logger()

	chain := c.Walk(ctx, bm.UserID, bm.TweetID)
	if len(chain) == 0 {
		out.Status = StatusNotFound
		logger.Info().Msg("bookmarked tweet could not be fetched")
		return out
	}
	conv := chain[0].ID
	out.ConversationID = conv
	threadDir := c.cfg.ThreadDir(conv)
	// #nosec G301
	if err := os.MkdirAll(threadDir, 0755); err != nil {
		return out.fail(fmt.Errorf("failed to create thread directory: %w", err))
	}

	for i := range chain {
		t := &chain[i]
		if err := c.db.UpsertUser(storage.UserRecord{
			UserID:      t.Author.ScreenName,
			Username:    "@" + t.Author.ScreenName,
			DisplayName: t.Author.Name,
		}); err != nil {
			return out.fail(fmt.Errorf("failed to save user %s: %w", t.Author.ScreenName, err))
		}
		if err := c.db.UpsertTweet(tweetRecord(t, conv)); err != nil {
			return out.fail(fmt.Errorf("failed to save tweet %s: %w", t.ID, err))
		}
		out.Tweets++

		n, err := c.saveImages(ctx, t, threadDir, logger)
		out.Images += n
		if err != nil {
			return out.fail(err)
		}
	}

	manifest := NewManifest(conv, chain)
	if err := fs.WriteJSON(filepath.Join(threadDir, ManifestName), manifest); err != nil {
		return out.fail(fmt.Errorf("failed to write manifest: %w", err))
	}
	out.Status = StatusRetrieved
	logger.Info().Str("conversation", conv).Int("tweets", out.Tweets).Int("images", out.Images).Msg("retrieved thread")
	return out
}

// saveImages downloads the photos of t that are not on disk yet. A failed download is
// logged and skipped, except for ErrDiskSpace which is returned.
func (c *Client) saveImages(ctx context.Context, t *fxtwitter.Tweet, threadDir string, logger zerolog.Logger) (int, error) {
	saved := 0
	for _, u := range t.PhotoURLs() {
		dest := fxtwitter.ImagePath(threadDir, t.ID, u)
		exists, err := fxtwitter.Exists(dest)
		if err != nil {
			return saved, fmt.Errorf("failed to check %s: %w", dest, err)
		}
		if exists {
			c.metrics.ImagesSkipped.Inc()
			logger.Debug().Str("path", dest).Msg("image already on disk")
			continue
		}
		if err := c.downloader.Download(ctx, u, dest); err != nil {
			if errors.Is(err, fxtwitter.ErrDiskSpace) {
				return saved, err
			}
			c.metrics.ImageFailures.Inc()
			logger.Warn().Err(err).Str("tweet", t.ID).Str("url", u).Msg("image download failed")
			continue
		}
		if err := c.db.SaveImage(storage.ImageRecord{
			TweetID:      t.ID,
			URL:          u,
			LocalPath:    c.relPath(dest),
			DownloadedAt: time.Now().UTC(),
		}); err != nil {
			return saved, fmt.Errorf("failed to record image %s: %w", dest, err)
		}
		c.metrics.ImagesDownloaded.Inc()
		saved++
	}
	return saved, nil
}

// relPath returns p relative to the output directory, slash separated.
func (c *Client) relPath(p string) string {
	rel, err := filepath.Rel(c.cfg.OutputPath, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}

// tweetRecord converts a fetched tweet into its row, tagged with the conversation root.
func tweetRecord(t *fxtwitter.Tweet, conversationID string) storage.TweetRecord {
	rec := storage.TweetRecord{
		ID:             t.ID,
		UserID:         t.Author.ScreenName,
		Text:           t.Text,
		Timestamp:      t.CreatedAt,
		URL:            t.URL,
		RepliesCount:   t.Replies,
		RetweetsCount:  t.Retweets,
		LikesCount:     t.Likes,
		HasMedia:       t.HasMedia(),
		MediaType:      t.MediaType(),
		IsReply:        t.IsReply(),
		ConversationID: &conversationID,
	}
	if parent := t.ParentID(); parent != "" {
		rec.ParentTweetID = &parent
	}
	return rec
}

// RetrieveBookmarks processes every bookmark without a retrieval record, oldest first.
// Each processed bookmark is recorded in the ledger whatever its outcome, so failures
// are not retried on the next run. Cancellation is honored between bookmarks: the one
// in flight completes and is recorded before the run stops. The thread index is
// exported at the end, including after an interruption.
func (c *Client) RetrieveBookmarks(ctx context.Context, progressCb ProgressCallback) (*Summary, error) {
	if progressCb == nil {
		progressCb = noOpProgress
	}
	bookmarks, err := c.db.UnprocessedBookmarks()
	if err != nil {
		return nil, err
	}
	summary := &Summary{Pending: len(bookmarks)}
	c.logger.Info().Int("pending", len(bookmarks)).Msg("starting retrieval")

	pacer := ratelimiter.New(ctx, c.cfg.BookmarkDelay, c.cfg.BookmarkDelay)
	defer pacer.Stop()

	var runErr error
	for i, bm := range bookmarks {
		if err := pacer.Wait(); err != nil {
			summary.Interrupted = true
			c.logger.Warn().Int("processed", summary.Processed).Int("remaining", len(bookmarks)-i).Msg("retrieval interrupted")
			break
		}
		progressCb(i+1, len(bookmarks), fmt.Sprintf("Bookmark %s", bm.TweetID))

		out := c.ProcessBookmark(context.WithoutCancel(ctx), bm)
		if out.Halts() {
			c.logger.Error().Err(out.Err).Str("bookmark", bm.TweetID).Msg("stopping retrieval")
			runErr = out.Err
			break
		}
		if out.Err != nil {
			c.logger.Error().Err(out.Err).Str("bookmark", bm.TweetID).Msg("failed to process bookmark")
		}
		if err := c.db.MarkRetrieved(bm.TweetID); err != nil {
			runErr = fmt.Errorf("failed to record bookmark %s: %w", bm.TweetID, err)
			break
		}
		summary.record(out)
		c.metrics.Bookmarks.WithLabelValues(out.Status.String()).Inc()
	}

	threads, err := c.ExportThreadIndex()
	if err != nil {
		runErr = errors.Join(runErr, err)
	}
	summary.Threads = threads
	c.logger.Info().
		Int("processed", summary.Processed).
		Int("retrieved", summary.Retrieved).
		Int("not_found", summary.NotFound).
		Int("failed", summary.Failed).
		Int("images", summary.Images).
		Bool("interrupted", summary.Interrupted).
		Msg("retrieval finished")
	return summary, runErr
}
