package cliconfig

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %s", path, err)
	}
}

func TestLoadCreatesDefaultConfig(t *testing.T) {
	t.Setenv(EnvProjectID, "")
	t.Setenv(EnvAPIKey, "")
	path := filepath.Join(t.TempDir(), "fxthreads", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not created: %s", err)
	}
	def := Default()
	if cfg.RequestTimeout != def.RequestTimeout || cfg.HopDelayMax != def.HopDelayMax || cfg.Upload.CheckpointEvery != 50 {
		t.Errorf("defaults not round-tripped through the generated file: %+v", cfg)
	}
	if cfg.DatabasePath != filepath.Join(cfg.OutputPath, "twitter_bookmarks.db") {
		t.Errorf("database path = %s", cfg.DatabasePath)
	}
	if cfg.Upload.TrackingFile != filepath.Join(cfg.OutputPath, ".uploaded_ids.json") {
		t.Errorf("tracking file = %s", cfg.Upload.TrackingFile)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("generated config invalid: %s", err)
	}
}

func TestLoadOverridesAndCredentials(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	writeFile(t, envFile, "RETRIEVER_PROJECT_ID=from-dotenv\nRETRIEVER_API_KEY=dotenv-key\n")
	cfgPath := filepath.Join(dir, "config.yaml")
	writeFile(t, cfgPath, `output_path: "`+filepath.ToSlash(filepath.Join(dir, "out"))+`"
env_file: "`+filepath.ToSlash(envFile)+`"
hop_delay_min: "100ms"
hop_delay_max: "300ms"
upload:
  checkpoint_every: 10
`)
	t.Setenv(EnvProjectID, "")
	t.Setenv(EnvAPIKey, "env-key")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	if cfg.HopDelayMin != 100*time.Millisecond || cfg.HopDelayMax != 300*time.Millisecond {
		t.Errorf("hop delays = %s..%s", cfg.HopDelayMin, cfg.HopDelayMax)
	}
	if cfg.Upload.CheckpointEvery != 10 || cfg.Upload.BaseURL != "https://retriever.sh" {
		t.Errorf("upload = %+v", cfg.Upload)
	}
	// An empty environment value does not hide the .env file.
	if cfg.Upload.ProjectID != "from-dotenv" {
		t.Errorf("project id = %q", cfg.Upload.ProjectID)
	}
	if cfg.Upload.APIKey != "env-key" {
		t.Errorf("api key = %q, environment should win", cfg.Upload.APIKey)
	}
	if err := cfg.CheckCredentials(); err != nil {
		t.Errorf("CheckCredentials: %s", err)
	}
	if filepath.Dir(cfg.DatabasePath) != filepath.Join(dir, "out") {
		t.Errorf("database path not derived from output_path: %s", cfg.DatabasePath)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "output_path: [unterminated")
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestCheckDatabase(t *testing.T) {
	cfg := Default()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "missing.db")
	if err := cfg.CheckDatabase(); !errors.Is(err, ErrDatabaseMissing) {
		t.Errorf("err = %v, want ErrDatabaseMissing", err)
	}
	writeFile(t, cfg.DatabasePath, "")
	if err := cfg.CheckDatabase(); err != nil {
		t.Errorf("CheckDatabase on existing file: %s", err)
	}
}

func TestCheckCredentials(t *testing.T) {
	cfg := Default()
	cfg.Upload.ProjectID = "p"
	if err := cfg.CheckCredentials(); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("err = %v, want ErrMissingCredentials", err)
	}
}

func TestSetOutputPath(t *testing.T) {
	cfg := Default()
	cfg.OutputPath = "/data/old"
	cfg.ResolvePaths()
	cfg.Upload.TrackingFile = "/elsewhere/ids.json"

	cfg.SetOutputPath("/data/new")
	if cfg.DatabasePath != filepath.Join("/data/new", DatabaseName) {
		t.Errorf("derived database path did not move: %s", cfg.DatabasePath)
	}
	if cfg.Upload.TrackingFile != "/elsewhere/ids.json" {
		t.Errorf("explicit tracking file changed: %s", cfg.Upload.TrackingFile)
	}
}

func TestDefaultEnvFileInAppDir(t *testing.T) {
	want := filepath.Join("fxthreads", ".env")
	if got := Default().EnvFile; !strings.HasSuffix(got, want) {
		t.Errorf("env file = %s, want it under the fxthreads config dir", got)
	}
}
