package steps

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/zoro11031/browser-setup/internal/system"
	"github.com/zoro11031/browser-setup/internal/ui"
)

// Tools probed on every run
const (
	ToolDocker  = "docker"
	ToolCompose = "docker compose"
	ToolCurl    = "curl"
	ToolGPG     = "gpg"
)

// HostCapability is what the host offers right now. It is recomputed on
// every run and never persisted.
type HostCapability struct {
	ToolPresent   map[string]bool
	ToolVersion   map[string]string
	// CheckedPorts were probed; FreePorts is the subset nothing listened on
	CheckedPorts  []int
	FreePorts     []int
	Timezone      string
	PublicAddress string
}

// HasPort reports whether port was free when probed
func (h HostCapability) HasPort(port int) bool {
	return slices.Contains(h.FreePorts, port)
}

// PortBusy reports whether port was probed and found in use. Ports that
// were never probed are not busy.
func (h HostCapability) PortBusy(port int) bool {
	return slices.Contains(h.CheckedPorts, port) && !h.HasPort(port)
}

// Prober detects host state. All of its operations are reads.
type Prober struct {
	runner   system.CommandRunner
	network  *system.Network
	timezone *system.TimezoneProbe
	logger   *slog.Logger
	// lookPath is swapped in tests
	lookPath func(string) bool
}

// NewProber creates a prober over the given runner
func NewProber(runner system.CommandRunner, network *system.Network, timezone *system.TimezoneProbe, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		runner:   runner,
		network:  network,
		timezone: timezone,
		logger:   logger,
		lookPath: system.CommandExists,
	}
}

// Probe gathers tool presence, free candidate ports, the timezone and the
// public address. It never fails; missing facts get fallback values.
func (p *Prober) Probe(ctx context.Context, candidatePorts []int) HostCapability {
	caps := HostCapability{
		ToolPresent: make(map[string]bool),
		ToolVersion: make(map[string]string),
	}

	for _, tool := range []string{ToolDocker, ToolCompose, ToolCurl, ToolGPG} {
		present, version := p.probeTool(ctx, tool)
		caps.ToolPresent[tool] = present
		if present {
			caps.ToolVersion[tool] = version
		}
	}

	caps.CheckedPorts = slices.Clone(candidatePorts)
	caps.FreePorts = p.network.FreePorts(ctx, candidatePorts)
	caps.Timezone = p.CurrentTimezone(ctx)
	caps.PublicAddress = p.network.PublicAddress(ctx)

	p.logger.Debug("host probed",
		"tools", caps.ToolPresent,
		"free_ports", caps.FreePorts,
		"timezone", caps.Timezone,
		"public_address", caps.PublicAddress)

	return caps
}

// IsPortFree reports whether nothing listens on port
func (p *Prober) IsPortFree(ctx context.Context, port int) bool {
	return p.network.IsPortFree(ctx, port)
}

// CurrentTimezone returns the host timezone, falling back to UTC
func (p *Prober) CurrentTimezone(ctx context.Context) string {
	return p.timezone.Detect(ctx)
}

func (p *Prober) probeTool(ctx context.Context, tool string) (bool, string) {
	if tool == ToolCompose {
		if !p.lookPath(ToolDocker) {
			return false, ""
		}
		version, err := system.ComposeVersion(ctx, p.runner)
		if err != nil {
			return false, ""
		}
		return true, version
	}

	if !p.lookPath(tool) {
		return false, ""
	}
	output, err := p.runner.Run(ctx, tool, "--version")
	if err != nil {
		// Present on PATH but broken; report it without a version
		return true, ""
	}
	return true, firstLine(output)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}

// ReportCapabilities prints the probe results
func ReportCapabilities(caps HostCapability, out *ui.UI) {
	out.Step("Host Environment")
	for _, tool := range []string{ToolDocker, ToolCompose, ToolCurl, ToolGPG} {
		if caps.ToolPresent[tool] {
			version := caps.ToolVersion[tool]
			if version == "" {
				version = "version unknown"
			}
			out.Successf("  ✓ %s (%s)", tool, version)
		} else {
			out.Infof("  - %s is not installed", tool)
		}
	}
	out.Infof("Timezone: %s", caps.Timezone)
	out.Infof("Public address: %s", caps.PublicAddress)
}

// CheckSudoAccess validates that privileged commands can run. Root needs
// nothing; otherwise passwordless sudo is preferred and a one-time sudo -v
// caches credentials.
func CheckSudoAccess(ctx context.Context, runner system.CommandRunner, isRoot bool, out *ui.UI) error {
	out.Info("Checking sudo access...")

	if isRoot {
		out.Success("Running as root")
		return nil
	}

	if _, err := runner.Run(ctx, "sudo", "-n", "true"); err == nil {
		out.Success("Passwordless sudo is configured")
		return nil
	}

	out.Warning("Sudo requires password authentication")
	out.Info("For unattended operation, configure passwordless sudo")
	out.Print("")
	out.Info("Validating sudo access (you may be prompted for password)...")

	// sudo prompts on the controlling terminal, not on the captured pipes
	if _, err := runner.Run(ctx, "sudo", "-v"); err != nil {
		out.Error("Failed to authenticate with sudo")
		return fmt.Errorf("sudo authentication failed: %w", err)
	}
	out.Success("Sudo access validated (credentials cached)")
	return nil
}
