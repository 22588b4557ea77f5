package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/perpetuallyhorni/fxthreads/pkg/config"
	"github.com/perpetuallyhorni/fxthreads/pkg/metrics"
	"github.com/perpetuallyhorni/fxthreads/pkg/ratelimiter"
	"github.com/perpetuallyhorni/fxthreads/pkg/storage"
)

// KeyHeader carries the project key.
const KeyHeader = "X-Project-Key"

// StatusError is returned for a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upload failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("upload failed with status %d: %s", e.StatusCode, e.Body)
}

// IsRateLimited reports whether the service asked to slow down.
func (e *StatusError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// DocumentSource lists the bookmarks to upload.
type DocumentSource interface {
	BookmarkDocuments() ([]storage.BookmarkDocument, error)
}

// ProgressCallback defines the function signature for progress reporting.
type ProgressCallback func(current, total int, message string)

// Uploader posts documents to the indexing service.
type Uploader struct {
	cfg     config.UploadConfig
	client  *http.Client
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// New creates an Uploader. The settings are validated, including credentials.
func New(cfg config.UploadConfig, transport http.RoundTripper, logger zerolog.Logger, m *metrics.Metrics) (*Uploader, error) {
	if err := cfg.ValidateUpload(); err != nil {
		return nil, err
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	if m == nil {
		m = metrics.New()
	}
	return &Uploader{
		cfg:     cfg,
		client:  &http.Client{Transport: transport, Timeout: cfg.Timeout},
		logger:  logger,
		metrics: m,
	}, nil
}

// endpoint returns the documents URL of the configured project.
func (u *Uploader) endpoint() string {
	return fmt.Sprintf("%s/api/rag/projects/%s/documents", strings.TrimRight(u.cfg.BaseURL, "/"), url.PathEscape(u.cfg.ProjectID))
}

// Upload posts a single document.
func (u *Uploader) Upload(ctx context.Context, doc Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(KeyHeader, u.cfg.APIKey)

	resp, err := u.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// UploadWithRetry uploads doc and, if the service answers 429, waits the retry backoff
// and tries exactly once more.
func (u *Uploader) UploadWithRetry(ctx context.Context, doc Document) error {
	err := u.Upload(ctx, doc)
	var se *StatusError
	if !errors.As(err, &se) || !se.IsRateLimited() {
		return err
	}
	u.metrics.Documents.WithLabelValues(metrics.DocumentRateLimited).Inc()
	u.logger.Warn().Str("tweet", doc.Metadata.TweetID).Dur("backoff", u.cfg.RetryBackoff).Msg("rate limited, retrying once")

	timer := time.NewTimer(u.cfg.RetryBackoff)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := u.Upload(ctx, doc); err != nil {
		return fmt.Errorf("retry failed: %w", err)
	}
	return nil
}

// Result summarizes an upload run.
type Result struct {
	// Found is the number of bookmarks in the datastore.
	Found int
	// ToUpload is the number of bookmarks not yet tracked.
	ToUpload int
	Uploaded int
	Errors   int
	// Tracked is the tracker size at the end of the run.
	Tracked     int
	Interrupted bool
}

// Run uploads every bookmark not in tracker, or every bookmark when full is set, in which
// case the tracker is rebuilt from scratch. The tracker is saved every CheckpointEvery
// documents and once at the end, also when the run is interrupted.
func (u *Uploader) Run(ctx context.Context, src DocumentSource, tracker *Tracker, full bool, progressCb ProgressCallback) (*Result, error) {
	if progressCb == nil {
		progressCb = func(int, int, string) {}
	}
	bookmarks, err := src.BookmarkDocuments()
	if err != nil {
		return nil, err
	}
	res := &Result{Found: len(bookmarks)}

	if full {
		tracker.Reset()
	}
	var pending []storage.BookmarkDocument
	for _, b := range bookmarks {
		if !tracker.Has(b.TweetID) {
			pending = append(pending, b)
		}
	}
	res.ToUpload = len(pending)
	u.logger.Info().Int("found", res.Found).Int("to_upload", res.ToUpload).Bool("full", full).Msg("starting upload")
	if len(pending) == 0 {
		res.Tracked = tracker.Len()
		if full {
			return res, tracker.Save()
		}
		return res, nil
	}

	pacer := ratelimiter.New(ctx, u.cfg.Delay, u.cfg.Delay)
	defer pacer.Stop()
	for i, b := range pending {
		if err := pacer.Wait(); err != nil {
			res.Interrupted = true
			u.logger.Warn().Int("uploaded", res.Uploaded).Msg("upload interrupted")
			break
		}
		n := i + 1
		progressCb(n, len(pending), fmt.Sprintf("Uploading %s", b.TweetID))

		if err := u.UploadWithRetry(context.WithoutCancel(ctx), BuildDocument(b)); err != nil {
			res.Errors++
			u.metrics.Documents.WithLabelValues(metrics.DocumentFailed).Inc()
			u.logger.Error().Err(err).Str("tweet", b.TweetID).Msg("failed to upload document")
			continue
		}
		tracker.Add(b.TweetID)
		res.Uploaded++
		u.metrics.Documents.WithLabelValues(metrics.DocumentUploaded).Inc()
		if n%u.cfg.CheckpointEvery == 0 {
			u.logger.Info().Int("progress", n).Int("total", len(pending)).Msg("checkpointing upload tracker")
			if err := tracker.Save(); err != nil {
				return res, err
			}
		}
	}

	res.Tracked = tracker.Len()
	if err := tracker.Save(); err != nil {
		return res, err
	}
	u.logger.Info().Int("uploaded", res.Uploaded).Int("errors", res.Errors).Int("tracked", res.Tracked).Msg("upload finished")
	return res, nil
}
