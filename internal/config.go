package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the environment-derived client configuration.
type Config struct {
	APIBaseURL string
	DataDir    string
}

// LoadConfig reads configuration from the environment, loading a .env file
// if one is present in the working directory.
func LoadConfig() (*Config, error) {
	godotenv.Load()

	dataDir := getEnv("SHAREDLM_DATA_DIR", "")
	if dataDir == "" {
		detected, err := DefaultDataDir()
		if err != nil {
			return nil, err
		}
		dataDir = detected
	}

	return &Config{
		APIBaseURL: getEnv("SHAREDLM_API_URL", "http://localhost:8000"),
		DataDir:    dataDir,
	}, nil
}

// StorePath returns the path of the persistent key-value store.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "state.db")
}

// SettingsPath returns the path of the persisted client settings file.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.DataDir, "config.yaml")
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

// DefaultDataDir returns the per-platform SharedLM data directory.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library/Application Support/SharedLM"), nil
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "SharedLM"), nil
		}
		return filepath.Join(home, "AppData", "Local", "SharedLM"), nil
	default:
		return filepath.Join(home, ".config/sharedlm"), nil
	}
}

// Settings are persisted client preferences, stored as YAML in the data dir.
type Settings struct {
	DefaultProvider string `yaml:"default_provider,omitempty"`
	DefaultModel    string `yaml:"default_model,omitempty"`
	InstallPath     string `yaml:"install_path,omitempty"`
}

// LoadSettings loads the settings file. A missing file yields empty settings.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Settings{}, nil
		}
		return nil, err
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	return &settings, nil
}

// SaveSettings writes the settings file, creating the data dir if needed.
func SaveSettings(path string, settings *Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}
