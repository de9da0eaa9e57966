package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InstallPhase makes illegal re-entrant installs an explicit, checkable
// condition instead of a bare boolean guard.
type InstallPhase int

const (
	InstallIdle InstallPhase = iota
	InstallRunning
	InstallDone
)

// InstallEvent is one progress report from a running installation. Done and
// Err are terminal: exactly one of them ends the stream, and a failure is
// distinct from a 100% progress report.
type InstallEvent struct {
	Percent int
	Status  string
	Done    bool
	Err     error
}

// OllamaIntegration is the local-runtime integration block persisted for
// the main application's first launch.
type OllamaIntegration struct {
	ShouldCreate bool   `json:"shouldCreate"`
	Name         string `json:"name"`
	BaseURL      string `json:"baseUrl"`
	APIType      string `json:"apiType"`
	ProviderID   string `json:"providerId"`
	APIKey       string `json:"apiKey"`
}

// InstallationConfig records what was installed. Written once at the end of
// a successful installation; read by the main application on first launch
// to auto-register the local runtime.
type InstallationConfig struct {
	InstallPath       string                     `json:"installPath"`
	Models            []string                   `json:"models"`
	ModelData         map[string]json.RawMessage `json:"modelData,omitempty"`
	InstalledAt       time.Time                  `json:"installedAt"`
	OllamaIntegration OllamaIntegration          `json:"ollamaIntegration"`
}

// InstallOptions configure an installation run.
type InstallOptions struct {
	InstallPath string
	Models      []string
	ModelData   map[string]json.RawMessage

	// AppSourceDirs are probed in order for the application files to
	// copy. All of them are reported on failure to aid manual recovery.
	AppSourceDirs []string

	// SkipRuntime disables runtime provisioning entirely.
	SkipRuntime bool
}

// Installer orchestrates a SharedLM installation. Copying the application
// files is the only fatal step; runtime provisioning and silencing are
// best-effort so the host application stays usable without them.
type Installer struct {
	provisioner *Provisioner

	mu          sync.Mutex
	phase       InstallPhase
	lastPercent int
}

// NewInstaller creates an installer in the idle phase.
func NewInstaller(provisioner *Provisioner) *Installer {
	return &Installer{provisioner: provisioner}
}

// Phase returns the current installation phase.
func (i *Installer) Phase() InstallPhase {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.phase
}

// Run starts the installation and returns its progress stream. Calling Run
// while an installation is running or after one completed is an error.
// The stream always ends with a terminal Done or Err event.
func (i *Installer) Run(ctx context.Context, opts InstallOptions) (<-chan InstallEvent, error) {
	i.mu.Lock()
	if i.phase != InstallIdle {
		i.mu.Unlock()
		return nil, fmt.Errorf("installation already %s", phaseName(i.phase))
	}
	i.phase = InstallRunning
	i.lastPercent = 0
	i.mu.Unlock()

	events := make(chan InstallEvent, 16)
	go i.run(ctx, opts, events)
	return events, nil
}

func phaseName(phase InstallPhase) string {
	switch phase {
	case InstallRunning:
		return "in progress"
	case InstallDone:
		return "completed"
	default:
		return "idle"
	}
}

func (i *Installer) run(ctx context.Context, opts InstallOptions, events chan<- InstallEvent) {
	defer close(events)

	fail := func(err error) {
		i.mu.Lock()
		i.phase = InstallDone
		percent := i.lastPercent
		i.mu.Unlock()
		events <- InstallEvent{Percent: percent, Status: "Installation failed", Err: err}
	}

	i.emit(events, 10, "Preparing installation directory...")
	if err := os.MkdirAll(opts.InstallPath, 0755); err != nil {
		fail(&InstallError{Step: "prepare directory", PathsTried: []string{opts.InstallPath}, Err: err})
		return
	}

	i.emit(events, 20, "Installing SharedLM application...")
	if err := copyAppFiles(opts.AppSourceDirs, filepath.Join(opts.InstallPath, "SharedLM")); err != nil {
		fail(err)
		return
	}

	if !opts.SkipRuntime {
		i.emit(events, 40, "Checking Ollama installation...")
		report, err := i.provisioner.Provision(ctx, func(percent int, status string) {
			// Map the provisioner's own 0-100 scale into the 40-90
			// band of the overall installation.
			i.emit(events, 40+percent/2, status)
		})
		if err != nil {
			// Runtime provisioning is best-effort: log and continue,
			// the host application works without the local runtime.
			LogWarn("runtime provisioning failed: %v", err)
			i.emit(events, 90, "Ollama setup incomplete, continuing...")
		}
		for _, w := range report.Warnings {
			LogWarn("provisioning warning [%s]: %s", w.Step, w.Message)
		}
	}

	i.emit(events, 95, "Writing installation config...")
	config := &InstallationConfig{
		InstallPath: opts.InstallPath,
		Models:      opts.Models,
		ModelData:   opts.ModelData,
		InstalledAt: time.Now().UTC(),
		OllamaIntegration: OllamaIntegration{
			ShouldCreate: !opts.SkipRuntime,
			Name:         "Ollama (Local)",
			BaseURL:      "http://localhost:11434",
			APIType:      "ollama",
			ProviderID:   "custom_" + uuid.NewString(),
			APIKey:       "ollama",
		},
	}
	if err := WriteInstallConfig(opts.InstallPath, config); err != nil {
		fail(&InstallError{Step: "write config", PathsTried: []string{configPath(opts.InstallPath)}, Err: err})
		return
	}

	i.emit(events, 98, "Finalizing installation...")

	i.mu.Lock()
	i.phase = InstallDone
	i.mu.Unlock()
	events <- InstallEvent{Percent: 100, Status: "Installation complete", Done: true}
}

// emit sends a progress event, clamping to keep percent monotonic.
func (i *Installer) emit(events chan<- InstallEvent, percent int, status string) {
	i.mu.Lock()
	if percent < i.lastPercent {
		percent = i.lastPercent
	}
	i.lastPercent = percent
	i.mu.Unlock()
	events <- InstallEvent{Percent: percent, Status: status}
}

// copyAppFiles copies the application tree from the first existing source
// directory. If none exists the error carries every path probed.
func copyAppFiles(sources []string, dest string) error {
	for _, source := range sources {
		info, err := os.Stat(source)
		if err != nil || !info.IsDir() {
			continue
		}
		if err := copyTree(source, dest); err != nil {
			return &InstallError{Step: "copy application", PathsTried: []string{source}, Err: err}
		}
		return nil
	}
	return &InstallError{Step: "copy application", PathsTried: sources, Err: fmt.Errorf("no application source directory found")}
}

func copyTree(source, dest string) error {
	return filepath.WalkDir(source, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		if entry.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return copyFile(path, target)
	})
}

func copyFile(source, dest string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func configPath(installPath string) string {
	return filepath.Join(installPath, "config.json")
}

// WriteInstallConfig persists config.json in the install directory.
func WriteInstallConfig(installPath string, config *InstallationConfig) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal install config: %w", err)
	}
	return os.WriteFile(configPath(installPath), data, 0644)
}

// ReadInstallConfig loads config.json from the install directory. The main
// application reads it once on first launch.
func ReadInstallConfig(installPath string) (*InstallationConfig, error) {
	data, err := os.ReadFile(configPath(installPath))
	if err != nil {
		return nil, err
	}

	var config InstallationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse install config: %w", err)
	}
	return &config, nil
}

// LaunchApplication starts the installed application, detached from the
// installer process.
func LaunchApplication(ctx context.Context, runner CommandRunner, goos, installPath string) error {
	appDir := filepath.Join(installPath, "SharedLM")

	var err error
	switch goos {
	case "windows":
		_, err = runner.Run(ctx, "cmd", "/C", "start", "", filepath.Join(appDir, "SharedLM.exe"))
	case "darwin":
		_, err = runner.Run(ctx, "open", filepath.Join(appDir, "SharedLM.app"))
	default:
		_, err = runner.Run(ctx, "sh", "-c", fmt.Sprintf("nohup %q > /dev/null 2>&1 &", filepath.Join(appDir, "sharedlm")))
	}
	if err != nil {
		return fmt.Errorf("failed to launch application: %w", err)
	}
	return nil
}
