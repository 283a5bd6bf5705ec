package steps

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zoro11031/browser-setup/internal/system"
	"github.com/zoro11031/browser-setup/internal/ui"
)

// ToolSpec is one idempotent step of the host baseline
type ToolSpec struct {
	Name    string
	Check   func(ctx context.Context) (bool, error)
	Install func(ctx context.Context) error
	// InvalidatesCache marks steps that register a repository or key
	InvalidatesCache bool
	// NeedsCache marks steps that read the package index
	NeedsCache bool
}

// InstallError names the baseline step that failed
type InstallError struct {
	Tool string
	Err  error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("failed to install %s: %v", e.Tool, e.Err)
}

func (e *InstallError) Unwrap() error {
	return e.Err
}

// Installer brings the host to the baseline
type Installer struct {
	pm     system.PackageManager
	ui     *ui.UI
	logger *slog.Logger
}

// NewInstaller creates an installer refreshing pm's cache as needed
func NewInstaller(pm system.PackageManager, out *ui.UI, logger *slog.Logger) *Installer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Installer{pm: pm, ui: out, logger: logger}
}

// EnsureBaseline installs every missing tool in list order. Present tools
// are skipped, so a re-run performs only what is left. The package cache is
// refreshed once before the first install that needs it and again after
// any step that adds a repository or key. The first failure aborts.
func (i *Installer) EnsureBaseline(ctx context.Context, required []ToolSpec) error {
	i.ui.Step("Installing Dependencies")

	cacheFresh := false
	installed := 0

	for _, spec := range required {
		present, err := spec.Check(ctx)
		if err != nil {
			return &InstallError{Tool: spec.Name, Err: fmt.Errorf("check failed: %w", err)}
		}
		if present {
			i.ui.Successf("  ✓ %s", spec.Name)
			continue
		}

		if spec.NeedsCache && !cacheFresh {
			i.ui.Infof("Refreshing %s package index...", i.pm.Name())
			if err := i.pm.Refresh(ctx); err != nil {
				return &InstallError{Tool: spec.Name, Err: err}
			}
			cacheFresh = true
		}

		i.ui.Infof("Installing %s...", spec.Name)
		i.logger.Debug("install step", "tool", spec.Name)
		if err := spec.Install(ctx); err != nil {
			i.ui.Errorf("  ✗ %s", spec.Name)
			return &InstallError{Tool: spec.Name, Err: err}
		}

		if ok, err := spec.Check(ctx); err != nil || !ok {
			if err == nil {
				err = fmt.Errorf("still missing after install")
			}
			return &InstallError{Tool: spec.Name, Err: err}
		}

		if spec.InvalidatesCache {
			cacheFresh = false
		}
		installed++
		i.ui.Successf("  ✓ %s installed", spec.Name)
	}

	if installed == 0 {
		i.ui.Success("All dependencies already present")
	} else {
		i.ui.Successf("Installed %d missing dependenc%s", installed, plural(installed, "y", "ies"))
	}
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// BaselinePaths are the files the docker repository steps create
type BaselinePaths struct {
	KeyringDir    string
	DockerKey     string
	AptSourceList string
	DnfRepoFile   string
}

// DefaultBaselinePaths returns the standard system locations
func DefaultBaselinePaths() BaselinePaths {
	return BaselinePaths{
		KeyringDir:    "/etc/apt/keyrings",
		DockerKey:     "/etc/apt/keyrings/docker.asc",
		AptSourceList: "/etc/apt/sources.list.d/docker.list",
		DnfRepoFile:   "/etc/yum.repos.d/docker-ce.repo",
	}
}

// DockerPackages make up the engine and compose plugin on both families
var DockerPackages = []string{"docker-ce", "docker-ce-cli", "containerd.io", "docker-compose-plugin"}

// BaselineDeps are the collaborators DefaultBaseline wires into its steps
type BaselineDeps struct {
	Release *system.OSRelease
	PM      system.PackageManager
	FS      *system.FileSystem
	Query   system.CommandRunner // unprivileged reads
	Admin   system.CommandRunner // privileged writes
	Paths   BaselinePaths
}

// DefaultBaseline returns the ordered steps for the detected package manager
func DefaultBaseline(deps BaselineDeps) []ToolSpec {
	var specs []ToolSpec
	if deps.PM.Name() == "dnf" {
		specs = append(specs,
			packagesSpec(deps, "dnf-plugins-core", "dnf-plugins-core"),
			dnfRepoSpec(deps),
		)
	} else {
		specs = append(specs,
			packagesSpec(deps, "prerequisites (ca-certificates curl gnupg)", "ca-certificates", "curl", "gnupg"),
			aptKeySpec(deps),
			aptRepoSpec(deps),
		)
	}

	specs = append(specs, packagesSpec(deps, "docker engine ("+strings.Join(DockerPackages, " ")+")", DockerPackages...))
	return append(specs, ServiceBaseline(deps)...)
}

// ServiceBaseline returns the steps that keep the docker daemon enabled and
// active. They only need the Query and Admin runners.
func ServiceBaseline(deps BaselineDeps) []ToolSpec {
	return []ToolSpec{serviceSpec(deps, "docker")}
}

func packagesSpec(deps BaselineDeps, name string, pkgs ...string) ToolSpec {
	return ToolSpec{
		Name: name,
		Check: func(ctx context.Context) (bool, error) {
			for _, pkg := range pkgs {
				ok, err := deps.PM.IsInstalled(ctx, pkg)
				if err != nil {
					return false, err
				}
				if !ok {
					return false, nil
				}
			}
			return true, nil
		},
		Install: func(ctx context.Context) error {
			return deps.PM.Install(ctx, pkgs...)
		},
		NeedsCache: true,
	}
}

func fileCheck(fs *system.FileSystem, path string) func(context.Context) (bool, error) {
	return func(context.Context) (bool, error) {
		return fs.FileExists(path)
	}
}

func aptKeySpec(deps BaselineDeps) ToolSpec {
	distro, _ := deps.Release.DockerRepoDistro()
	keyURL := fmt.Sprintf("https://download.docker.com/linux/%s/gpg", distro)

	return ToolSpec{
		Name:  "docker apt key",
		Check: fileCheck(deps.FS, deps.Paths.DockerKey),
		Install: func(ctx context.Context) error {
			steps := [][]string{
				{"install", "-m", "0755", "-d", deps.Paths.KeyringDir},
				{"curl", "-fsSL", keyURL, "-o", deps.Paths.DockerKey},
				{"chmod", "a+r", deps.Paths.DockerKey},
			}
			for _, step := range steps {
				if output, err := deps.Admin.Run(ctx, step[0], step[1:]...); err != nil {
					return fmt.Errorf("%s: %w\nOutput: %s", strings.Join(step, " "), err, strings.TrimSpace(output))
				}
			}
			return nil
		},
		InvalidatesCache: true,
	}
}

func aptRepoSpec(deps BaselineDeps) ToolSpec {
	return ToolSpec{
		Name:  "docker apt repository",
		Check: fileCheck(deps.FS, deps.Paths.AptSourceList),
		Install: func(ctx context.Context) error {
			output, err := deps.Query.Run(ctx, "dpkg", "--print-architecture")
			if err != nil {
				return fmt.Errorf("failed to detect architecture: %w", err)
			}
			arch := strings.TrimSpace(output)

			distro, codename := deps.Release.DockerRepoDistro()
			if codename == "" {
				return fmt.Errorf("os-release has no VERSION_CODENAME")
			}

			line := fmt.Sprintf("deb [arch=%s signed-by=%s] https://download.docker.com/linux/%s %s stable\n",
				arch, deps.Paths.DockerKey, distro, codename)
			return deps.FS.WriteSystemFile(ctx, deps.Paths.AptSourceList, []byte(line), 0644)
		},
		InvalidatesCache: true,
	}
}

func dnfRepoSpec(deps BaselineDeps) ToolSpec {
	repoURL := deps.Release.DockerRepoFile()

	return ToolSpec{
		Name:  "docker-ce repository",
		Check: fileCheck(deps.FS, deps.Paths.DnfRepoFile),
		Install: func(ctx context.Context) error {
			// dnf4 and dnf5 spell config-manager differently
			if _, err := deps.Admin.Run(ctx, "dnf", "config-manager", "--add-repo", repoURL); err == nil {
				return nil
			}
			output, err := deps.Admin.Run(ctx, "dnf", "config-manager", "addrepo", "--from-repofile="+repoURL)
			if err != nil {
				return fmt.Errorf("dnf config-manager: %w\nOutput: %s", err, strings.TrimSpace(output))
			}
			return nil
		},
		InvalidatesCache: true,
	}
}

func serviceSpec(deps BaselineDeps, service string) ToolSpec {
	return ToolSpec{
		Name: service + " service",
		Check: func(ctx context.Context) (bool, error) {
			// systemctl is-active returns non-zero if inactive
			_, err := deps.Query.Run(ctx, "systemctl", "is-active", "--quiet", service)
			return err == nil, nil
		},
		Install: func(ctx context.Context) error {
			if output, err := deps.Admin.Run(ctx, "systemctl", "enable", "--now", service); err != nil {
				return fmt.Errorf("systemctl enable --now %s: %w\nOutput: %s", service, err, strings.TrimSpace(output))
			}
			return nil
		},
	}
}
