package internal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sharedlm/sharedlm/testutil"
)

func newTestInstaller(t *testing.T) *Installer {
	t.Helper()
	runner := testutil.NewFakeRunner()
	provisioner := NewProvisionerWithRunner(runner, NewDownloader(), "linux", testutil.CreateTempDir(t))
	return NewInstaller(provisioner)
}

func appSourceDir(t *testing.T) string {
	t.Helper()
	dir := testutil.CreateTempDir(t)
	testutil.WriteFile(t, dir, "sharedlm", []byte("#!/bin/sh\n"))
	testutil.WriteFile(t, dir, filepath.Join("resources", "app.json"), []byte("{}"))
	return dir
}

func collectEvents(t *testing.T, events <-chan InstallEvent) []InstallEvent {
	t.Helper()
	var all []InstallEvent
	for event := range events {
		all = append(all, event)
	}
	return all
}

func TestInstaller_Run(t *testing.T) {
	installer := newTestInstaller(t)
	installPath := filepath.Join(testutil.CreateTempDir(t), "SharedLM")

	events, err := installer.Run(context.Background(), InstallOptions{
		InstallPath:   installPath,
		Models:        []string{"llama3.2:3b"},
		AppSourceDirs: []string{appSourceDir(t)},
		SkipRuntime:   true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	all := collectEvents(t, events)
	if len(all) == 0 {
		t.Fatal("no events emitted")
	}

	last := all[len(all)-1]
	if !last.Done {
		t.Errorf("last event = %+v, want terminal Done", last)
	}
	if last.Percent != 100 {
		t.Errorf("terminal percent = %d, want 100", last.Percent)
	}

	// Progress never goes backwards.
	prev := -1
	for _, event := range all {
		if event.Percent < prev {
			t.Errorf("progress regressed: %d after %d", event.Percent, prev)
		}
		prev = event.Percent
	}

	// The application tree was copied.
	if _, err := os.Stat(filepath.Join(installPath, "SharedLM", "sharedlm")); err != nil {
		t.Errorf("application file not copied: %v", err)
	}
	if _, err := os.Stat(filepath.Join(installPath, "SharedLM", "resources", "app.json")); err != nil {
		t.Errorf("nested application file not copied: %v", err)
	}

	if installer.Phase() != InstallDone {
		t.Errorf("Phase() = %v, want InstallDone", installer.Phase())
	}
}

func TestInstaller_WritesConfig(t *testing.T) {
	installer := newTestInstaller(t)
	installPath := filepath.Join(testutil.CreateTempDir(t), "SharedLM")

	events, err := installer.Run(context.Background(), InstallOptions{
		InstallPath:   installPath,
		Models:        []string{"llama3.2:3b", "qwen2.5:7b"},
		AppSourceDirs: []string{appSourceDir(t)},
		SkipRuntime:   true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	collectEvents(t, events)

	config, err := ReadInstallConfig(installPath)
	if err != nil {
		t.Fatalf("ReadInstallConfig() error = %v", err)
	}
	if config.InstallPath != installPath {
		t.Errorf("config.InstallPath = %q, want %q", config.InstallPath, installPath)
	}
	if len(config.Models) != 2 {
		t.Errorf("config.Models = %v, want 2 entries", config.Models)
	}
	if config.InstalledAt.IsZero() {
		t.Error("config.InstalledAt not set")
	}

	integration := config.OllamaIntegration
	if integration.ShouldCreate {
		t.Error("integration.ShouldCreate = true with SkipRuntime")
	}
	if integration.BaseURL != "http://localhost:11434" {
		t.Errorf("integration.BaseURL = %q", integration.BaseURL)
	}
	if integration.APIKey != "ollama" {
		t.Errorf("integration.APIKey = %q, want ollama", integration.APIKey)
	}
	if !strings.HasPrefix(integration.ProviderID, "custom_") {
		t.Errorf("integration.ProviderID = %q, want custom_ prefix", integration.ProviderID)
	}
}

func TestInstaller_RejectsReentrantRun(t *testing.T) {
	installer := newTestInstaller(t)
	installPath := filepath.Join(testutil.CreateTempDir(t), "SharedLM")
	opts := InstallOptions{
		InstallPath:   installPath,
		AppSourceDirs: []string{appSourceDir(t)},
		SkipRuntime:   true,
	}

	events, err := installer.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	collectEvents(t, events)

	// A completed installer does not restart.
	if _, err := installer.Run(context.Background(), opts); err == nil {
		t.Error("Run() after completion returned nil error")
	}
}

func TestInstaller_MissingAppSourceIsFatal(t *testing.T) {
	installer := newTestInstaller(t)
	installPath := filepath.Join(testutil.CreateTempDir(t), "SharedLM")
	sources := []string{"/nonexistent/a", "/nonexistent/b"}

	events, err := installer.Run(context.Background(), InstallOptions{
		InstallPath:   installPath,
		AppSourceDirs: sources,
		SkipRuntime:   true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	all := collectEvents(t, events)
	last := all[len(all)-1]
	if last.Err == nil {
		t.Fatal("stream did not end with a failure event")
	}
	if last.Done {
		t.Error("failure event marked Done")
	}

	var installErr *InstallError
	if !errors.As(last.Err, &installErr) {
		t.Fatalf("terminal error = %v, want InstallError", last.Err)
	}
	if len(installErr.PathsTried) != len(sources) {
		t.Errorf("PathsTried = %v, want all probed sources", installErr.PathsTried)
	}
}

func TestInstallConfig_RoundTrip(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	config := &InstallationConfig{
		InstallPath: dir,
		Models:      []string{"llama3.2:3b"},
		OllamaIntegration: OllamaIntegration{
			ShouldCreate: true,
			Name:         "Ollama (Local)",
			BaseURL:      "http://localhost:11434",
			APIType:      "ollama",
			ProviderID:   "custom_test",
			APIKey:       "ollama",
		},
	}

	if err := WriteInstallConfig(dir, config); err != nil {
		t.Fatalf("WriteInstallConfig() error = %v", err)
	}

	loaded, err := ReadInstallConfig(dir)
	if err != nil {
		t.Fatalf("ReadInstallConfig() error = %v", err)
	}
	if loaded.OllamaIntegration != config.OllamaIntegration {
		t.Errorf("round trip integration = %+v, want %+v", loaded.OllamaIntegration, config.OllamaIntegration)
	}
}

func TestReadInstallConfig_Missing(t *testing.T) {
	if _, err := ReadInstallConfig(testutil.CreateTempDir(t)); err == nil {
		t.Error("ReadInstallConfig() on empty dir returned nil error")
	}
}

func TestLaunchApplication(t *testing.T) {
	runner := testutil.NewFakeRunner()
	runner.Stub(`sh -c nohup "/opt/sharedlm/SharedLM/sharedlm" > /dev/null 2>&1 &`, "")

	if err := LaunchApplication(context.Background(), runner, "linux", "/opt/sharedlm"); err != nil {
		t.Fatalf("LaunchApplication() error = %v", err)
	}
	if runner.CallCount("nohup") != 1 {
		t.Errorf("launch command executed %d times, want 1", runner.CallCount("nohup"))
	}
}

func TestLaunchApplication_Failure(t *testing.T) {
	runner := testutil.NewFakeRunner()

	if err := LaunchApplication(context.Background(), runner, "darwin", "/opt/sharedlm"); err == nil {
		t.Error("LaunchApplication() with failing runner returned nil error")
	}
}
