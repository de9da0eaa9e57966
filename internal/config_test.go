package internal

import (
	"path/filepath"
	"testing"

	"github.com/sharedlm/sharedlm/testutil"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("SHAREDLM_API_URL", "")
	t.Setenv("SHAREDLM_DATA_DIR", "")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if config.APIBaseURL != "http://localhost:8000" {
		t.Errorf("APIBaseURL = %q, want default", config.APIBaseURL)
	}
	if config.DataDir == "" {
		t.Error("DataDir empty, want platform default")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SHAREDLM_API_URL", "https://api.example.com")
	t.Setenv("SHAREDLM_DATA_DIR", "/tmp/sharedlm-test")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if config.APIBaseURL != "https://api.example.com" {
		t.Errorf("APIBaseURL = %q, want env override", config.APIBaseURL)
	}
	if config.DataDir != "/tmp/sharedlm-test" {
		t.Errorf("DataDir = %q, want env override", config.DataDir)
	}
}

func TestConfig_Paths(t *testing.T) {
	config := &Config{DataDir: "/data/sharedlm"}
	if got := config.StorePath(); got != filepath.Join("/data/sharedlm", "state.db") {
		t.Errorf("StorePath() = %q", got)
	}
	if got := config.SettingsPath(); got != filepath.Join("/data/sharedlm", "config.yaml") {
		t.Errorf("SettingsPath() = %q", got)
	}
}

func TestSettings_RoundTrip(t *testing.T) {
	path := filepath.Join(testutil.CreateTempDir(t), "nested", "config.yaml")

	settings := &Settings{
		DefaultProvider: "anthropic",
		DefaultModel:    "claude-sonnet",
		InstallPath:     "/opt/sharedlm",
	}
	if err := SaveSettings(path, settings); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}

	loaded, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if *loaded != *settings {
		t.Errorf("round trip = %+v, want %+v", loaded, settings)
	}
}

func TestLoadSettings_Missing(t *testing.T) {
	settings, err := LoadSettings(filepath.Join(testutil.CreateTempDir(t), "config.yaml"))
	if err != nil {
		t.Fatalf("LoadSettings() on missing file error = %v", err)
	}
	if *settings != (Settings{}) {
		t.Errorf("LoadSettings() on missing file = %+v, want empty", settings)
	}
}

func TestDefaultDataDir(t *testing.T) {
	dir, err := DefaultDataDir()
	if err != nil {
		t.Fatalf("DefaultDataDir() error = %v", err)
	}
	if dir == "" {
		t.Error("DefaultDataDir() empty")
	}
}
