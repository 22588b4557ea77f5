package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// AppName is used for default directories and the user agent.
const AppName = "fxthreads"

// Config holds the core, application-agnostic configuration. It is built once at
// startup and passed by value, so components never observe later changes.
type Config struct {
	APIURL          string        `koanf:"api_url"`          // Base URL of the fxtwitter API.
	OutputPath      string        `koanf:"output_path"`      // Directory holding threads/ and thread_index.json.
	RequestTimeout  time.Duration `koanf:"request_timeout"`  // Timeout of a single tweet request.
	DownloadTimeout time.Duration `koanf:"download_timeout"` // Timeout of a single image download.
	HopDelayMin     time.Duration `koanf:"hop_delay_min"`    // Lower bound of the delay between thread hops.
	HopDelayMax     time.Duration `koanf:"hop_delay_max"`    // Upper bound of the delay between thread hops.
	BookmarkDelay   time.Duration `koanf:"bookmark_delay"`   // Fixed delay between bookmarks.
	BindAddress     string        `koanf:"bind_address"`     // Outbound IP or interface name, empty for the system default.
	UserAgent       string        `koanf:"user_agent"`       // User agent for API and image requests.
	MinFreeSpace    uint64        `koanf:"min_free_space"`   // Bytes that must stay free before an image download.
	Upload          UploadConfig  `koanf:"upload"`           // Settings of the document upload.
}

// UploadConfig holds the settings of the document indexing upload.
type UploadConfig struct {
	BaseURL         string        `koanf:"base_url"`
	ProjectID       string        `koanf:"project_id"`
	APIKey          string        `koanf:"api_key"`
	TrackingFile    string        `koanf:"tracking_file"`
	Timeout         time.Duration `koanf:"timeout"`
	Delay           time.Duration `koanf:"delay"`
	RetryBackoff    time.Duration `koanf:"retry_backoff"`
	CheckpointEvery int           `koanf:"checkpoint_every"`
}

// DefaultOutputPath returns the default output directory.
func DefaultOutputPath() string {
	if xdg.DataHome != "" {
		return filepath.Join(xdg.DataHome, AppName, "output_data")
	}
	return "output_data"
}

// Default returns the default core configuration rooted at outputPath.
// An empty outputPath selects DefaultOutputPath.
func Default(outputPath string) Config {
	if outputPath == "" {
		outputPath = DefaultOutputPath()
	}
	return Config{
		APIURL:          "https://api.fxtwitter.com",
		OutputPath:      outputPath,
		RequestTimeout:  15 * time.Second,
		DownloadTimeout: 30 * time.Second,
		HopDelayMin:     800 * time.Millisecond,
		HopDelayMax:     2 * time.Second,
		BookmarkDelay:   time.Second,
		UserAgent:       AppName,
		MinFreeSpace:    16 << 20,
		Upload: UploadConfig{
			BaseURL:         "https://retriever.sh",
			TrackingFile:    filepath.Join(outputPath, ".uploaded_ids.json"),
			Timeout:         30 * time.Second,
			Delay:           100 * time.Millisecond,
			RetryBackoff:    5 * time.Second,
			CheckpointEvery: 50,
		},
	}
}

// ThreadsDir is the directory holding one subdirectory per conversation.
func (c Config) ThreadsDir() string {
	return filepath.Join(c.OutputPath, "threads")
}

// ThreadDir is the directory of a single conversation.
func (c Config) ThreadDir(conversationID string) string {
	return filepath.Join(c.ThreadsDir(), conversationID)
}

// ThreadIndexPath is the location of the global thread index.
func (c Config) ThreadIndexPath() string {
	return filepath.Join(c.OutputPath, "thread_index.json")
}

// Validate checks the configuration for values the retriever cannot work with.
func (c Config) Validate() error {
	var errs []error
	if c.APIURL == "" {
		errs = append(errs, errors.New("api_url must not be empty"))
	}
	if c.OutputPath == "" {
		errs = append(errs, errors.New("output_path must not be empty"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.DownloadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("download_timeout must be positive, got %s", c.DownloadTimeout))
	}
	if c.HopDelayMin < 0 || c.HopDelayMax < c.HopDelayMin {
		errs = append(errs, fmt.Errorf("hop delay range [%s, %s] is invalid", c.HopDelayMin, c.HopDelayMax))
	}
	if c.BookmarkDelay < 0 {
		errs = append(errs, fmt.Errorf("bookmark_delay must not be negative, got %s", c.BookmarkDelay))
	}
	return errors.Join(errs...)
}

// ValidateUpload checks the upload settings, including credentials.
func (u UploadConfig) ValidateUpload() error {
	var errs []error
	if u.BaseURL == "" {
		errs = append(errs, errors.New("upload.base_url must not be empty"))
	}
	if u.ProjectID == "" || u.APIKey == "" {
		errs = append(errs, errors.New("upload.project_id and upload.api_key must be set"))
	}
	if u.TrackingFile == "" {
		errs = append(errs, errors.New("upload.tracking_file must not be empty"))
	}
	if u.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("upload.timeout must be positive, got %s", u.Timeout))
	}
	if u.CheckpointEvery <= 0 {
		errs = append(errs, fmt.Errorf("upload.checkpoint_every must be positive, got %d", u.CheckpointEvery))
	}
	return errors.Join(errs...)
}
