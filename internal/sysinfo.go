package internal

import (
	"context"
	"math"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// RAMInfo reports memory in GB, rounded to one decimal.
type RAMInfo struct {
	TotalGB float64 `json:"total_gb"`
	FreeGB  float64 `json:"free_gb"`
	UsedGB  float64 `json:"used_gb"`
}

// CPUInfo reports logical core count and the first core's identity.
type CPUInfo struct {
	Cores    int    `json:"cores"`
	Model    string `json:"model"`
	SpeedMHz int    `json:"speed_mhz"`
}

// SystemInfo is a snapshot of host hardware, used for model-recommendation
// UI. Advisory, not load-bearing: probing degrades instead of failing.
type SystemInfo struct {
	RAM             RAMInfo  `json:"ram"`
	CPU             CPUInfo  `json:"cpu"`
	GPU             []string `json:"gpu"`
	HasDedicatedGPU bool     `json:"has_dedicated_gpu"`
	Platform        string   `json:"platform"`
	Arch            string   `json:"arch"`
}

// DiskSpace reports free and total space in GB for a volume.
type DiskSpace struct {
	FreeGB  float64 `json:"free_gb"`
	TotalGB float64 `json:"total_gb"`
}

// Probe detects host hardware via OS shell commands. The snapshot is
// memoized after the first successful probe.
type Probe struct {
	runner CommandRunner
	goos   string

	mu     sync.Mutex
	cached *SystemInfo
}

// NewProbe creates a probe for the current platform.
func NewProbe() *Probe {
	return &Probe{runner: ExecRunner{}, goos: runtime.GOOS}
}

// NewProbeWithRunner creates a probe with an injected runner and platform.
func NewProbeWithRunner(runner CommandRunner, goos string) *Probe {
	return &Probe{runner: runner, goos: goos}
}

// SystemInfo returns the hardware snapshot, computing it on first call.
// Probe failures degrade to best-effort defaults, never an error.
func (p *Probe) SystemInfo(ctx context.Context) SystemInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil {
		return *p.cached
	}

	info := SystemInfo{
		RAM:      p.probeRAM(ctx),
		CPU:      p.probeCPU(ctx),
		Platform: p.goos,
		Arch:     runtime.GOARCH,
	}
	info.GPU, info.HasDedicatedGPU = p.probeGPU(ctx)

	p.cached = &info
	return info
}

func (p *Probe) probeRAM(ctx context.Context) RAMInfo {
	fallback := RAMInfo{TotalGB: 8, FreeGB: 4, UsedGB: 4}

	var total, free int64
	switch p.goos {
	case "windows":
		out, err := runWithTimeout(ctx, p.runner, probeCommandTimeout, "wmic", "OS", "get", "FreePhysicalMemory,TotalVisibleMemorySize", "/value")
		if err != nil {
			return fallback
		}
		// wmic reports KB.
		free = parseWmicValue(out, "FreePhysicalMemory") * 1024
		total = parseWmicValue(out, "TotalVisibleMemorySize") * 1024
	case "darwin":
		out, err := runWithTimeout(ctx, p.runner, probeCommandTimeout, "sysctl", "-n", "hw.memsize")
		if err != nil {
			return fallback
		}
		total, _ = strconv.ParseInt(strings.TrimSpace(out), 10, 64)
		free = p.darwinFreeMemory(ctx)
	default:
		out, err := runWithTimeout(ctx, p.runner, probeCommandTimeout, "free", "-b")
		if err != nil {
			return fallback
		}
		total, free = parseFreeOutput(out)
	}

	if total <= 0 {
		return fallback
	}
	used := total - free
	if used < 0 {
		used = 0
	}
	return RAMInfo{
		TotalGB: roundGB(total),
		FreeGB:  roundGB(free),
		UsedGB:  roundGB(used),
	}
}

// darwinFreeMemory derives free bytes from vm_stat page counts.
func (p *Probe) darwinFreeMemory(ctx context.Context) int64 {
	out, err := runWithTimeout(ctx, p.runner, probeCommandTimeout, "vm_stat")
	if err != nil {
		return 0
	}

	pageSize := int64(4096)
	var freePages int64
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "page size of") {
			fields := strings.Fields(line)
			for _, f := range fields {
				if n, err := strconv.ParseInt(f, 10, 64); err == nil && n > 0 {
					pageSize = n
				}
			}
		}
		if strings.HasPrefix(line, "Pages free:") {
			value := strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(line, "Pages free:")), ".")
			freePages, _ = strconv.ParseInt(value, 10, 64)
		}
	}
	return freePages * pageSize
}

func (p *Probe) probeCPU(ctx context.Context) CPUInfo {
	info := CPUInfo{Cores: runtime.NumCPU(), Model: "Unknown"}

	switch p.goos {
	case "windows":
		out, err := runWithTimeout(ctx, p.runner, probeCommandTimeout, "wmic", "cpu", "get", "Name,MaxClockSpeed", "/value")
		if err != nil {
			return info
		}
		if model := parseWmicString(out, "Name"); model != "" {
			info.Model = model
		}
		info.SpeedMHz = int(parseWmicValue(out, "MaxClockSpeed"))
	case "darwin":
		out, err := runWithTimeout(ctx, p.runner, probeCommandTimeout, "sysctl", "-n", "machdep.cpu.brand_string")
		if err != nil {
			return info
		}
		if model := strings.TrimSpace(out); model != "" {
			info.Model = model
		}
	default:
		out, err := runWithTimeout(ctx, p.runner, probeCommandTimeout, "lscpu")
		if err != nil {
			return info
		}
		for _, line := range strings.Split(out, "\n") {
			key, value, found := strings.Cut(line, ":")
			if !found {
				continue
			}
			value = strings.TrimSpace(value)
			switch strings.TrimSpace(key) {
			case "Model name":
				info.Model = value
			case "CPU max MHz", "CPU MHz":
				if mhz, err := strconv.ParseFloat(value, 64); err == nil && info.SpeedMHz == 0 {
					info.SpeedMHz = int(mhz)
				}
			}
		}
	}
	return info
}

// probeGPU runs the per-platform detection chain. Every stage degrades; the
// ultimate fallback is a literal "Unknown" entry.
func (p *Probe) probeGPU(ctx context.Context) ([]string, bool) {
	switch p.goos {
	case "windows":
		return p.gpuWindows(ctx)
	case "darwin":
		return p.gpuDarwin(ctx)
	default:
		return p.gpuLinux(ctx)
	}
}

func (p *Probe) gpuWindows(ctx context.Context) ([]string, bool) {
	out, err := runWithTimeout(ctx, p.runner, probeCommandTimeout, "wmic", "path", "win32_VideoController", "get", "name")
	if err != nil {
		return []string{"Unknown"}, false
	}

	var gpus []string
	dedicated := false
	for _, line := range strings.Split(out, "\n") {
		name := strings.TrimSpace(line)
		if name == "" || strings.EqualFold(name, "Name") {
			continue
		}
		gpus = append(gpus, name)
		if !isIntegratedGPU(name) {
			dedicated = true
		}
	}
	if len(gpus) == 0 {
		return []string{"Unknown"}, false
	}
	return gpus, dedicated
}

func (p *Probe) gpuDarwin(ctx context.Context) ([]string, bool) {
	out, err := runWithTimeout(ctx, p.runner, probeCommandTimeout, "system_profiler", "SPDisplaysDataType")
	if err == nil {
		var gpus []string
		dedicated := false
		for _, line := range strings.Split(out, "\n") {
			line = strings.TrimSpace(line)
			if name, ok := strings.CutPrefix(line, "Chipset Model:"); ok {
				name = strings.TrimSpace(name)
				gpus = append(gpus, name)
				lower := strings.ToLower(name)
				if !strings.Contains(lower, "intel") && !strings.Contains(lower, "apple") {
					dedicated = true
				}
			}
		}
		if len(gpus) > 0 {
			return gpus, dedicated
		}
	}

	// Nothing parsed; a generic label from the hardware report is still
	// better than nothing.
	if _, err := runWithTimeout(ctx, p.runner, probeCommandTimeout, "system_profiler", "SPHardwareDataType"); err == nil {
		return []string{"Apple GPU"}, false
	}
	return []string{"Apple GPU"}, false
}

func (p *Probe) gpuLinux(ctx context.Context) ([]string, bool) {
	// NVIDIA's own tool is the authoritative dedicated-GPU signal.
	out, err := runWithTimeout(ctx, p.runner, probeCommandTimeout, "nvidia-smi", "--query-gpu=name", "--format=csv,noheader")
	if err == nil {
		var gpus []string
		for _, line := range strings.Split(out, "\n") {
			if name := strings.TrimSpace(line); name != "" {
				gpus = append(gpus, name)
			}
		}
		if len(gpus) > 0 {
			return gpus, true
		}
	}

	out, err = runWithTimeout(ctx, p.runner, probeCommandTimeout, "lspci")
	if err == nil {
		var gpus []string
		dedicated := false
		for _, line := range strings.Split(out, "\n") {
			lower := strings.ToLower(line)
			if !strings.Contains(lower, "vga") && !strings.Contains(lower, "3d controller") && !strings.Contains(lower, "display controller") {
				continue
			}
			gpus = append(gpus, strings.TrimSpace(line))
			if strings.Contains(lower, "nvidia") || strings.Contains(lower, "amd") || strings.Contains(lower, "radeon") {
				dedicated = true
			}
		}
		if len(gpus) > 0 {
			return gpus, dedicated
		}
	}

	out, err = runWithTimeout(ctx, p.runner, probeCommandTimeout, "sh", "-c", "lspci | grep -i vga")
	if err == nil {
		var gpus []string
		for _, line := range strings.Split(out, "\n") {
			if name := strings.TrimSpace(line); name != "" {
				gpus = append(gpus, name)
			}
		}
		if len(gpus) > 0 {
			return gpus, false
		}
	}

	return []string{"Unknown"}, false
}

// isIntegratedGPU matches integrated-graphics naming on Windows.
func isIntegratedGPU(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "intel") ||
		strings.Contains(lower, "amd radeon graphics") ||
		strings.Contains(lower, "integrated")
}

// DiskSpace reports space for the volume containing path. Any failure
// returns zeros so the UI can render a "space unknown" state.
func (p *Probe) DiskSpace(ctx context.Context, path string) DiskSpace {
	switch p.goos {
	case "windows":
		if len(path) < 2 {
			return DiskSpace{}
		}
		drive := path[:2]
		out, err := runWithTimeout(ctx, p.runner, probeCommandTimeout, "wmic", "logicaldisk", "where", "DeviceID='"+drive+"'", "get", "FreeSpace,Size", "/value")
		if err != nil {
			return DiskSpace{}
		}
		free := parseWmicValue(out, "FreeSpace")
		total := parseWmicValue(out, "Size")
		return DiskSpace{FreeGB: roundGB(free), TotalGB: roundGB(total)}
	case "darwin":
		out, err := runWithTimeout(ctx, p.runner, probeCommandTimeout, "df", "-g", path)
		if err != nil {
			return DiskSpace{}
		}
		return parseDfOutput(out)
	default:
		out, err := runWithTimeout(ctx, p.runner, probeCommandTimeout, "df", "-BG", path)
		if err != nil {
			return DiskSpace{}
		}
		return parseDfOutput(out)
	}
}

// parseDfOutput reads the total (field 2) and available (field 4) columns
// of the last df output line, in GB units.
func parseDfOutput(out string) DiskSpace {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 {
		return DiskSpace{}
	}
	fields := strings.Fields(lines[len(lines)-1])
	if len(fields) < 4 {
		return DiskSpace{}
	}
	total, _ := strconv.ParseFloat(strings.TrimSuffix(fields[1], "G"), 64)
	free, _ := strconv.ParseFloat(strings.TrimSuffix(fields[3], "G"), 64)
	return DiskSpace{FreeGB: free, TotalGB: total}
}

// parseWmicValue extracts a numeric Key=Value entry from wmic /value output.
func parseWmicValue(out, key string) int64 {
	value := parseWmicString(out, key)
	n, _ := strconv.ParseInt(value, 10, 64)
	return n
}

func parseWmicString(out, key string) string {
	for _, line := range strings.Split(out, "\n") {
		k, v, found := strings.Cut(strings.TrimSpace(line), "=")
		if found && k == key {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// roundGB converts bytes to GB rounded to one decimal.
func roundGB(bytes int64) float64 {
	gb := float64(bytes) / (1024 * 1024 * 1024)
	return math.Round(gb*10) / 10
}

// parseFreeOutput reads total and available bytes from `free -b` output.
func parseFreeOutput(out string) (total, free int64) {
	for _, line := range strings.Split(out, "\n") {
		if !strings.HasPrefix(line, "Mem:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 7 {
			total, _ = strconv.ParseInt(fields[1], 10, 64)
			// "available" is a better free signal than "free".
			free, _ = strconv.ParseInt(fields[6], 10, 64)
		} else if len(fields) >= 4 {
			total, _ = strconv.ParseInt(fields[1], 10, 64)
			free, _ = strconv.ParseInt(fields[3], 10, 64)
		}
	}
	return total, free
}
