package internal

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sharedlm/sharedlm/testutil"
)

func newTestProvisioner(t *testing.T, goos string) (*Provisioner, *testutil.FakeRunner) {
	t.Helper()
	runner := testutil.NewFakeRunner()
	return NewProvisionerWithRunner(runner, NewDownloader(), goos, testutil.CreateTempDir(t)), runner
}

func TestProvisioner_IsInstalled(t *testing.T) {
	p, runner := newTestProvisioner(t, "linux")

	if p.IsInstalled(context.Background()) {
		t.Error("IsInstalled() = true with no runtime present")
	}

	runner.Stub("ollama --version", "ollama version 0.5.1")
	if !p.IsInstalled(context.Background()) {
		t.Error("IsInstalled() = false with runtime responding")
	}
}

func TestProvisioner_ProvisionAlreadyInstalled(t *testing.T) {
	p, runner := newTestProvisioner(t, "linux")
	runner.Stub("ollama --version", "ollama version 0.5.1")

	var percents []int
	report, err := p.Provision(context.Background(), func(percent int, status string) {
		percents = append(percents, percent)
	})
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	if !report.AlreadyInstalled {
		t.Error("report.AlreadyInstalled = false")
	}
	if report.Installed {
		t.Error("report.Installed = true on already-installed path")
	}
	if !report.Verified {
		t.Error("report.Verified = false")
	}
	if len(percents) == 0 || percents[len(percents)-1] != 100 {
		t.Errorf("progress percents = %v, want final 100", percents)
	}
	// Silent mode still runs on the already-installed path.
	if runner.CallCount("systemctl") == 0 {
		t.Error("silent mode configuration skipped on already-installed path")
	}
}

func TestProvisioner_ProvisionFreshInstallLinux(t *testing.T) {
	p, runner := newTestProvisioner(t, "linux")

	// Absent before install, responding afterwards.
	runner.StubError("ollama --version", errors.New("command not found"))
	runner.Stub("ollama --version", "ollama version 0.5.1")
	runner.Stub("sh -c curl -fsSL https://ollama.com/install.sh | sh > /dev/null 2>&1", "")

	report, err := p.Provision(context.Background(), nil)
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if report.AlreadyInstalled {
		t.Error("report.AlreadyInstalled = true on fresh install")
	}
	if !report.Installed {
		t.Error("report.Installed = false after install")
	}
	if !report.Verified {
		t.Error("report.Verified = false after install")
	}
	if runner.CallCount("install.sh") != 1 {
		t.Errorf("install script executed %d times, want 1", runner.CallCount("install.sh"))
	}
}

func TestProvisioner_ProvisionInstallFailure(t *testing.T) {
	p, runner := newTestProvisioner(t, "linux")
	runner.StubError("ollama --version", errors.New("command not found"))
	runner.StubError("sh -c curl -fsSL https://ollama.com/install.sh | sh > /dev/null 2>&1", errors.New("exit status 1"))

	report, err := p.Provision(context.Background(), nil)
	if err == nil {
		t.Fatal("Provision() with failing install returned nil error")
	}
	if report.Installed {
		t.Error("report.Installed = true after failed install")
	}
}

func TestProvisioner_VerifyPolls(t *testing.T) {
	p, runner := newTestProvisioner(t, "linux")
	runner.StubError("ollama --version", errors.New("not ready"))
	runner.StubError("ollama --version", errors.New("not ready"))
	runner.Stub("ollama --version", "ollama version 0.5.1")

	if err := p.Verify(context.Background()); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got := runner.CallCount("ollama --version"); got != 3 {
		t.Errorf("Verify() probed %d times, want 3", got)
	}
}

func TestProvisioner_VerifyExhaustsRetries(t *testing.T) {
	p, runner := newTestProvisioner(t, "linux")
	runner.StubError("ollama --version", errors.New("not ready"))

	err := p.Verify(context.Background())
	if err == nil {
		t.Fatal("Verify() with unresponsive runtime returned nil error")
	}
	if !strings.Contains(err.Error(), "install manually") {
		t.Errorf("Verify() error = %q, want manual-install hint", err)
	}
	if got := runner.CallCount("ollama --version"); got != verifyRetries {
		t.Errorf("Verify() probed %d times, want %d", got, verifyRetries)
	}
}

func TestProvisioner_ConfigureSilentModeWindows(t *testing.T) {
	p, runner := newTestProvisioner(t, "windows")
	runner.Stub("taskkill /F /IM ollama app.exe", "")
	runner.Stub("sc stop Ollama", "")

	// The service config step fails; it is the only recorded warning, the
	// kill and registry steps are fire-and-forget.
	warnings := p.ConfigureSilentMode(context.Background())
	if len(warnings) != 1 {
		t.Fatalf("ConfigureSilentMode() warnings = %v, want 1", warnings)
	}
	if warnings[0].Step != "disable service auto-start" {
		t.Errorf("warning step = %q, want %q", warnings[0].Step, "disable service auto-start")
	}
}

func TestProvisioner_ConfigureSilentModeIdempotent(t *testing.T) {
	p, runner := newTestProvisioner(t, "linux")

	// Nothing is installed or running; both passes succeed with no warnings.
	for i := 0; i < 2; i++ {
		if warnings := p.ConfigureSilentMode(context.Background()); len(warnings) != 0 {
			t.Errorf("ConfigureSilentMode() pass %d warnings = %v, want none", i+1, warnings)
		}
	}
	if runner.CallCount("systemctl") == 0 {
		t.Error("systemctl never invoked")
	}
}

func TestProvisioner_ListModels(t *testing.T) {
	p, runner := newTestProvisioner(t, "linux")
	runner.Stub("ollama list", "NAME            ID        SIZE   MODIFIED\nllama3.2:3b     abc123    2.0GB  2 days ago\nqwen2.5:7b      def456    4.7GB  5 days ago\n")

	models, err := p.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	want := []string{"llama3.2:3b", "qwen2.5:7b"}
	if len(models) != len(want) {
		t.Fatalf("ListModels() = %v, want %v", models, want)
	}
	for i := range want {
		if models[i] != want[i] {
			t.Errorf("ListModels()[%d] = %q, want %q", i, models[i], want[i])
		}
	}
}

func TestProvisioner_ListModelsError(t *testing.T) {
	p, _ := newTestProvisioner(t, "linux")

	if _, err := p.ListModels(context.Background()); err == nil {
		t.Error("ListModels() with no runtime returned nil error")
	}
}
