package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Download endpoints for the Ollama runtime, per platform. Linux installs
// via the vendor's shell script instead of a binary artifact.
const (
	ollamaWindowsURL     = "https://ollama.com/download/OllamaSetup.exe"
	ollamaDarwinURL      = "https://ollama.com/download/Ollama-darwin.zip"
	ollamaLinuxInstaller = "https://ollama.com/install.sh"
)

const (
	verifyRetries = 10
	verifyBackoff = time.Second

	// cleanupGraceDelay lets any lingering file lock from the installer
	// release before the artifact is removed.
	cleanupGraceDelay = 2 * time.Second

	installCommandTimeout = 5 * time.Minute
)

// ProvisionWarning records a best-effort sub-step that failed without
// aborting provisioning.
type ProvisionWarning struct {
	Step    string
	Message string
}

// ProvisionReport aggregates the outcome of a provisioning run, making what
// failed silently inspectable.
type ProvisionReport struct {
	AlreadyInstalled bool
	Installed        bool
	Verified         bool
	Warnings         []ProvisionWarning
}

func (r *ProvisionReport) warn(step string, err error) {
	r.Warnings = append(r.Warnings, ProvisionWarning{Step: step, Message: err.Error()})
	LogWarn("%s: %v", step, err)
}

// ProgressFunc receives coarse-grained progress milestones.
type ProgressFunc func(percent int, status string)

// Provisioner installs the Ollama runtime unattended and immediately
// silences it so it does not compete with the host application.
type Provisioner struct {
	runner     CommandRunner
	downloader *Downloader
	goos       string
	tempDir    string
	sleep      func(time.Duration)
}

// NewProvisioner creates a provisioner for the current platform.
func NewProvisioner() *Provisioner {
	return &Provisioner{
		runner:     ExecRunner{},
		downloader: NewDownloader(),
		goos:       runtime.GOOS,
		tempDir:    os.TempDir(),
		sleep:      time.Sleep,
	}
}

// NewProvisionerWithRunner creates a provisioner with injected
// dependencies, for tests.
func NewProvisionerWithRunner(runner CommandRunner, downloader *Downloader, goos, tempDir string) *Provisioner {
	return &Provisioner{
		runner:     runner,
		downloader: downloader,
		goos:       goos,
		tempDir:    tempDir,
		sleep:      func(time.Duration) {},
	}
}

// IsInstalled reports whether the runtime responds to its version check.
func (p *Provisioner) IsInstalled(ctx context.Context) bool {
	_, err := runWithTimeout(ctx, p.runner, probeCommandTimeout, "ollama", "--version")
	return err == nil
}

// Provision runs the full state machine: detect, install if absent, stop
// the auto-started process, verify, and configure silent mode. Best-effort
// sub-steps are collected in the report; only acquire/install failures and
// verification exhaustion are hard errors.
func (p *Provisioner) Provision(ctx context.Context, progress ProgressFunc) (*ProvisionReport, error) {
	if progress == nil {
		progress = func(int, string) {}
	}
	report := &ProvisionReport{}

	progress(10, "Checking Ollama installation...")
	if p.IsInstalled(ctx) {
		report.AlreadyInstalled = true
		progress(60, "Ollama already installed, configuring...")
		p.configureSilent(ctx, report)
		progress(90, "Verifying Ollama...")
		if err := p.Verify(ctx); err != nil {
			return report, err
		}
		report.Verified = true
		progress(100, "Ollama ready")
		return report, nil
	}

	progress(20, "Downloading Ollama...")
	artifact, err := p.acquire(ctx)
	if err != nil {
		return report, err
	}

	progress(45, "Installing Ollama...")
	if err := p.install(ctx, artifact); err != nil {
		p.removeArtifact(artifact)
		return report, err
	}
	report.Installed = true

	// The installer may auto-launch the runtime; stop it right away.
	// Inherently racy, so absence of a running process is success.
	progress(60, "Stopping Ollama processes...")
	if err := p.StopRuntime(ctx); err != nil {
		report.warn("stop runtime", err)
	}

	p.cleanupArtifact(artifact)

	progress(75, "Verifying Ollama installation...")
	if err := p.Verify(ctx); err != nil {
		return report, err
	}
	report.Verified = true

	progress(90, "Configuring Ollama silent mode...")
	p.configureSilent(ctx, report)

	progress(100, "Ollama installed")
	return report, nil
}

// acquire downloads the platform artifact. Linux has no artifact: the
// vendor script is piped at install time, so acquire is a no-op there.
func (p *Provisioner) acquire(ctx context.Context) (string, error) {
	switch p.goos {
	case "windows":
		dest := filepath.Join(p.tempDir, "OllamaSetup.exe")
		if err := p.downloader.Download(ctx, ollamaWindowsURL, dest); err != nil {
			return "", err
		}
		return dest, nil
	case "darwin":
		dest := filepath.Join(p.tempDir, "Ollama-darwin.zip")
		if err := p.downloader.Download(ctx, ollamaDarwinURL, dest); err != nil {
			return "", err
		}
		return dest, nil
	default:
		return "", nil
	}
}

func (p *Provisioner) install(ctx context.Context, artifact string) error {
	switch p.goos {
	case "windows":
		return p.installWindows(ctx, artifact)
	case "darwin":
		return p.installDarwin(ctx, artifact)
	default:
		return p.installLinux(ctx)
	}
}

// installWindows runs the installer silently. If the shell invocation
// mechanism itself fails, fall back to a direct spawn; a "busy" failure
// there gets one more attempt after a short wait.
func (p *Provisioner) installWindows(ctx context.Context, installer string) error {
	silentArgs := []string{"/VERYSILENT", "/SUPPRESSMSGBOXES", "/NORESTART"}

	shellArgs := append([]string{"/C", "start", "/wait", "", installer}, silentArgs...)
	if _, err := runWithTimeout(ctx, p.runner, installCommandTimeout, "cmd", shellArgs...); err == nil {
		return nil
	}

	_, err := runWithTimeout(ctx, p.runner, installCommandTimeout, installer, silentArgs...)
	if err == nil {
		return nil
	}
	if isBusyError(err) {
		p.sleep(2 * time.Second)
		if _, retryErr := runWithTimeout(ctx, p.runner, installCommandTimeout, installer, silentArgs...); retryErr == nil {
			return nil
		}
	}
	return fmt.Errorf("silent install failed: %w", err)
}

func isBusyError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "resource temporarily unavailable") ||
		strings.Contains(msg, "text file busy") ||
		strings.Contains(msg, "busy")
}

// installDarwin unzips the app bundle and copies it into place, replacing
// any previous install.
func (p *Provisioner) installDarwin(ctx context.Context, archive string) error {
	scratch := filepath.Join(p.tempDir, "ollama-extract")
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	if _, err := runWithTimeout(ctx, p.runner, installCommandTimeout, "unzip", "-o", archive, "-d", scratch); err != nil {
		return fmt.Errorf("failed to extract archive: %w", err)
	}

	target := "/Applications/Ollama.app"
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("failed to remove previous install: %w", err)
	}
	if _, err := runWithTimeout(ctx, p.runner, installCommandTimeout, "cp", "-R", filepath.Join(scratch, "Ollama.app"), "/Applications/"); err != nil {
		return fmt.Errorf("failed to copy app bundle: %w", err)
	}
	return nil
}

// installLinux pipes the vendor's install script through a shell with all
// output discarded; no interactive prompts are expected.
func (p *Provisioner) installLinux(ctx context.Context) error {
	script := fmt.Sprintf("curl -fsSL %s | sh > /dev/null 2>&1", ollamaLinuxInstaller)
	if _, err := runWithTimeout(ctx, p.runner, installCommandTimeout, "sh", "-c", script); err != nil {
		return fmt.Errorf("install script failed: %w", err)
	}
	return nil
}

// StopRuntime kills any running runtime process or service. "Nothing was
// running" counts as success.
func (p *Provisioner) StopRuntime(ctx context.Context) error {
	switch p.goos {
	case "windows":
		_, _ = runWithTimeout(ctx, p.runner, killCommandTimeout, "taskkill", "/F", "/IM", "ollama app.exe")
		_, _ = runWithTimeout(ctx, p.runner, killCommandTimeout, "taskkill", "/F", "/IM", "ollama.exe")
		_, _ = runWithTimeout(ctx, p.runner, killCommandTimeout, "sc", "stop", "Ollama")
	case "darwin":
		_, _ = runWithTimeout(ctx, p.runner, killCommandTimeout, "pkill", "-x", "Ollama")
		_, _ = runWithTimeout(ctx, p.runner, killCommandTimeout, "pkill", "-f", "ollama")
	default:
		_, _ = runWithTimeout(ctx, p.runner, killCommandTimeout, "pkill", "-f", "ollama")
	}
	return nil
}

func (p *Provisioner) configureSilent(ctx context.Context, report *ProvisionReport) {
	for _, w := range p.ConfigureSilentMode(ctx) {
		report.Warnings = append(report.Warnings, w)
	}
}

// ConfigureSilentMode stops the runtime and disables its auto-start.
// Idempotent and safe to call standalone: absence of the thing being
// disabled is success, and no sub-step failure propagates upward.
func (p *Provisioner) ConfigureSilentMode(ctx context.Context) []ProvisionWarning {
	var warnings []ProvisionWarning
	record := func(step string, err error) {
		if err == nil {
			return
		}
		warnings = append(warnings, ProvisionWarning{Step: step, Message: err.Error()})
		LogWarn("%s: %v", step, err)
	}

	switch p.goos {
	case "windows":
		// Kill the GUI process and stop the service; either may simply
		// not exist.
		_, _ = runWithTimeout(ctx, p.runner, killCommandTimeout, "taskkill", "/F", "/IM", "ollama app.exe")
		_, _ = runWithTimeout(ctx, p.runner, killCommandTimeout, "sc", "stop", "Ollama")
		if _, err := runWithTimeout(ctx, p.runner, probeCommandTimeout, "sc", "config", "Ollama", "start=disabled"); err != nil {
			record("disable service auto-start", err)
		}
		_, _ = runWithTimeout(ctx, p.runner, probeCommandTimeout, "reg", "delete", `HKCU\Software\Microsoft\Windows\CurrentVersion\Run`, "/v", "Ollama", "/f")
		// Machine scope may fail without elevation; non-fatal.
		_, _ = runWithTimeout(ctx, p.runner, probeCommandTimeout, "reg", "delete", `HKLM\Software\Microsoft\Windows\CurrentVersion\Run`, "/v", "Ollama", "/f")
	case "darwin":
		_, _ = runWithTimeout(ctx, p.runner, killCommandTimeout, "pkill", "-x", "Ollama")
		home, err := os.UserHomeDir()
		if err != nil {
			record("locate launch agent", err)
			break
		}
		plist := filepath.Join(home, "Library/LaunchAgents/com.ollama.ollama.plist")
		if _, statErr := os.Stat(plist); statErr == nil {
			if _, err := runWithTimeout(ctx, p.runner, probeCommandTimeout, "launchctl", "unload", plist); err != nil {
				record("unload launch agent", err)
			}
		}
	default:
		// Deployment varies between user and system units; try both.
		_, _ = runWithTimeout(ctx, p.runner, probeCommandTimeout, "systemctl", "--user", "stop", "ollama")
		_, _ = runWithTimeout(ctx, p.runner, probeCommandTimeout, "systemctl", "stop", "ollama")
		_, _ = runWithTimeout(ctx, p.runner, probeCommandTimeout, "systemctl", "--user", "disable", "ollama")
		_, _ = runWithTimeout(ctx, p.runner, probeCommandTimeout, "systemctl", "disable", "ollama")
		_, _ = runWithTimeout(ctx, p.runner, killCommandTimeout, "pkill", "-f", "ollama")
	}

	return warnings
}

// Verify polls the version check until the runtime responds. Exhausting
// retries is a hard failure for the installation flow; callers downgrade it
// to a warning and continue setup.
func (p *Provisioner) Verify(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < verifyRetries; attempt++ {
		if attempt > 0 {
			p.sleep(verifyBackoff)
		}
		if _, err := runWithTimeout(ctx, p.runner, probeCommandTimeout, "ollama", "--version"); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("ollama not responding after %d attempts: %w (install manually from https://ollama.com)", verifyRetries, lastErr)
}

// ListModels returns the names of locally available runtime models.
func (p *Provisioner) ListModels(ctx context.Context) ([]string, error) {
	out, err := runWithTimeout(ctx, p.runner, probeCommandTimeout, "ollama", "list")
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	var models []string
	for i, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		// First line is the column header.
		if i == 0 && strings.EqualFold(fields[0], "NAME") {
			continue
		}
		models = append(models, fields[0])
	}
	return models, nil
}

func (p *Provisioner) removeArtifact(artifact string) {
	if artifact == "" {
		return
	}
	if err := os.Remove(artifact); err != nil && !os.IsNotExist(err) {
		LogDebug("failed to remove artifact %s: %v", artifact, err)
	}
}

func (p *Provisioner) cleanupArtifact(artifact string) {
	if artifact == "" {
		return
	}
	p.sleep(cleanupGraceDelay)
	p.removeArtifact(artifact)
}
