package cliconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/perpetuallyhorni/fxthreads/pkg/config"
)

// File names placed in the output directory unless configured otherwise.
const (
	DatabaseName = "twitter_bookmarks.db"
	TrackingName = ".uploaded_ids.json"
)

// Names of the credential variables read from the .env file and the environment.
const (
	EnvProjectID = "RETRIEVER_PROJECT_ID"
	EnvAPIKey    = "RETRIEVER_API_KEY"
)

var (
	// ErrDatabaseMissing is returned when the bookmark database does not exist yet.
	ErrDatabaseMissing = errors.New("database not found")
	// ErrMissingCredentials is returned when the upload project ID or key is unset.
	ErrMissingCredentials = errors.New(EnvProjectID + " and " + EnvAPIKey + " must be set")
)

// Config extends the core config with CLI-specific options.
type Config struct {
	config.Config `koanf:",squash"`
	DatabasePath  string `koanf:"database_path"`
	EnvFile       string `koanf:"env_file"`
	Editor        string `koanf:"editor"`
	MetricsFile   string `koanf:"metrics_file"`
	Schedule      string `koanf:"schedule"`
}

// Default returns the default CLI configuration. Paths left empty are derived from
// output_path once the configuration is loaded.
func Default() *Config {
	core := config.Default("")
	core.Upload.TrackingFile = ""
	return &Config{
		Config:   core,
		EnvFile:  filepath.Join(xdg.ConfigHome, config.AppName, ".env"),
		Schedule: "@every 6h",
	}
}

// SetOutputPath changes the output directory. Database and tracking file paths that
// pointed inside the old directory by default move along.
func (c *Config) SetOutputPath(dir string) {
	if c.DatabasePath == filepath.Join(c.OutputPath, DatabaseName) {
		c.DatabasePath = ""
	}
	if c.Upload.TrackingFile == filepath.Join(c.OutputPath, TrackingName) {
		c.Upload.TrackingFile = ""
	}
	c.OutputPath = dir
	c.ResolvePaths()
}

// ResolvePaths fills the database and tracking file paths that were not set explicitly.
func (c *Config) ResolvePaths() {
	if c.DatabasePath == "" {
		c.DatabasePath = filepath.Join(c.OutputPath, DatabaseName)
	}
	if c.Upload.TrackingFile == "" {
		c.Upload.TrackingFile = filepath.Join(c.OutputPath, TrackingName)
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	p, err := xdg.ConfigFile(filepath.Join(config.AppName, "config.yaml"))
	if err != nil {
		return "", fmt.Errorf("failed to get default config path: %w", err)
	}
	return p, nil
}

// Load loads the configuration from the given path, creating it with defaults when missing,
// then reads upload credentials from the .env file and the environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfgPath := path
	if cfgPath == "" {
		var err error
		if cfgPath, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	cfg := Default()
	if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
		if err := createDefaultConfig(cfgPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}
	if err := k.Load(file.Provider(cfgPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.loadCredentials(); err != nil {
		return nil, err
	}
	cfg.ResolvePaths()
	return cfg, nil
}

// loadCredentials overrides the upload credentials with RETRIEVER_* variables. The process
// environment wins over the .env file, and empty values are ignored.
func (c *Config) loadCredentials() error {
	k := koanf.New(".")
	if c.EnvFile != "" {
		if _, err := os.Stat(c.EnvFile); err == nil {
			if err := k.Load(file.Provider(c.EnvFile), dotenv.Parser()); err != nil {
				return fmt.Errorf("failed to load env file %s: %w", c.EnvFile, err)
			}
		}
	}
	nonEmpty := func(key, value string) (string, interface{}) {
		if strings.TrimSpace(value) == "" {
			return "", nil
		}
		return key, value
	}
	if err := k.Load(env.ProviderWithValue("RETRIEVER_", ".", nonEmpty), nil); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	if v := k.String(EnvProjectID); v != "" {
		c.Upload.ProjectID = v
	}
	if v := k.String(EnvAPIKey); v != "" {
		c.Upload.APIKey = v
	}
	return nil
}

// CheckDatabase fails with ErrDatabaseMissing when the database file does not exist.
// The retriever only adds to a database created by the bookmark exporter.
func (c *Config) CheckDatabase() error {
	if _, err := os.Stat(c.DatabasePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w at %s", ErrDatabaseMissing, c.DatabasePath)
		}
		return fmt.Errorf("failed to check database %s: %w", c.DatabasePath, err)
	}
	return nil
}

// CheckCredentials fails with ErrMissingCredentials when the upload credentials are unset.
func (c *Config) CheckCredentials() error {
	if c.Upload.ProjectID == "" || c.Upload.APIKey == "" {
		return fmt.Errorf("%w (in %s or the environment)", ErrMissingCredentials, c.EnvFile)
	}
	return nil
}

// createDefaultConfig creates a default configuration file.
func createDefaultConfig(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	content := fmt.Sprintf(`# fxthreads CLI configuration file.
# Directory holding threads/, thread_index.json and, by default, the database.
output_path: "%s"
# SQLite database written by the bookmark exporter. Empty means output_path/twitter_bookmarks.db.
database_path: ""
# Base URL of the fxtwitter API.
api_url: "%s"
# Timeouts of a single tweet request and a single image download.
request_timeout: "%s"
download_timeout: "%s"
# Random delay between two hops of a thread walk.
hop_delay_min: "%s"
hop_delay_max: "%s"
# Fixed delay between two bookmarks.
bookmark_delay: "%s"
# Outbound IP address or interface name. Empty uses the system default.
bind_address: ""
# User agent for API and image requests.
user_agent: "%s"
# Bytes that must stay free on the output filesystem before an image is downloaded.
min_free_space: %d
# File holding RETRIEVER_PROJECT_ID and RETRIEVER_API_KEY. The environment takes precedence.
env_file: "%s"
# Prometheus textfile written after each command. Empty disables it.
metrics_file: ""
# Cron schedule of the daemon command.
schedule: "%s"
# Editor to use for the 'edit' command. If empty, it will check $EDITOR, then common editors.
editor: ""
upload:
  base_url: "%s"
  # Empty means output_path/.uploaded_ids.json.
  tracking_file: ""
  timeout: "%s"
  delay: "%s"
  retry_backoff: "%s"
  checkpoint_every: %d
`, cfg.OutputPath, cfg.APIURL, cfg.RequestTimeout, cfg.DownloadTimeout, cfg.HopDelayMin, cfg.HopDelayMax,
		cfg.BookmarkDelay, cfg.UserAgent, cfg.MinFreeSpace, cfg.EnvFile, cfg.Schedule,
		cfg.Upload.BaseURL, cfg.Upload.Timeout, cfg.Upload.Delay, cfg.Upload.RetryBackoff, cfg.Upload.CheckpointEvery)
	content = strings.ReplaceAll(content, "\\", "/")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write default config file: %w", err)
	}
	return nil
}
