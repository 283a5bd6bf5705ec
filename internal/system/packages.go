package system

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// DefaultOSReleasePath is where systemd distributions describe themselves
const DefaultOSReleasePath = "/etc/os-release"

// PackageManager abstracts the host's package tool.
type PackageManager interface {
	Name() string
	IsInstalled(ctx context.Context, pkg string) (bool, error)
	Install(ctx context.Context, pkgs ...string) error
	Refresh(ctx context.Context) error
}

// OSRelease holds the fields of /etc/os-release the installer cares about
type OSRelease struct {
	ID             string
	IDLike         []string
	VersionID      string
	Codename       string
	UbuntuCodename string
}

// ReadOSRelease parses an os-release file. The format is shell-style
// KEY=value, which viper's env decoder reads as is.
func ReadOSRelease(path string) (*OSRelease, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return &OSRelease{
		ID:             strings.ToLower(v.GetString("ID")),
		IDLike:         strings.Fields(strings.ToLower(v.GetString("ID_LIKE"))),
		VersionID:      v.GetString("VERSION_ID"),
		Codename:       v.GetString("VERSION_CODENAME"),
		UbuntuCodename: v.GetString("UBUNTU_CODENAME"),
	}, nil
}

// Is reports whether the distribution is id or derives from it
func (o *OSRelease) Is(id string) bool {
	if o.ID == id {
		return true
	}
	for _, like := range o.IDLike {
		if like == id {
			return true
		}
	}
	return false
}

// DockerRepoDistro returns the download.docker.com path segment and
// release codename for apt hosts.
func (o *OSRelease) DockerRepoDistro() (string, string) {
	switch {
	case o.ID == "ubuntu":
		return "ubuntu", o.Codename
	case o.ID == "debian":
		return "debian", o.Codename
	case o.Is("ubuntu"):
		codename := o.UbuntuCodename
		if codename == "" {
			codename = o.Codename
		}
		return "ubuntu", codename
	default:
		return "debian", o.Codename
	}
}

// DockerRepoFile returns the upstream .repo URL for dnf hosts
func (o *OSRelease) DockerRepoFile() string {
	if o.Is("fedora") {
		return "https://download.docker.com/linux/fedora/docker-ce.repo"
	}
	return "https://download.docker.com/linux/centos/docker-ce.repo"
}

// DetectPackageManager picks apt or dnf from the os-release family.
// query runs unprivileged lookups; admin runs installs.
func DetectPackageManager(release *OSRelease, query, admin CommandRunner) (PackageManager, error) {
	switch {
	case release.Is("debian") || release.Is("ubuntu"):
		return NewApt(query, admin), nil
	case release.Is("fedora") || release.Is("rhel") || release.Is("centos"):
		return NewDnf(query, admin), nil
	default:
		return nil, fmt.Errorf("unsupported distribution %q (need an apt or dnf based host)", release.ID)
	}
}

// Apt drives apt-get and dpkg
type Apt struct {
	query CommandRunner
	admin CommandRunner
}

// NewApt creates an apt package manager
func NewApt(query, admin CommandRunner) *Apt {
	return &Apt{query: query, admin: admin}
}

// Name returns the manager name
func (a *Apt) Name() string { return "apt" }

// IsInstalled checks if a package is installed
func (a *Apt) IsInstalled(ctx context.Context, pkg string) (bool, error) {
	output, err := a.query.Run(ctx, "dpkg-query", "-W", "-f=${Status}", pkg)
	if err != nil {
		// dpkg-query exits non-zero for unknown packages
		return false, nil
	}
	return strings.Contains(output, "install ok installed"), nil
}

// Install installs packages non-interactively
func (a *Apt) Install(ctx context.Context, pkgs ...string) error {
	args := append([]string{"DEBIAN_FRONTEND=noninteractive", "apt-get", "install", "-y"}, pkgs...)
	if output, err := a.admin.Run(ctx, "env", args...); err != nil {
		return fmt.Errorf("apt-get install %s: %w\nOutput: %s", strings.Join(pkgs, " "), err, strings.TrimSpace(output))
	}
	return nil
}

// Refresh updates the package index
func (a *Apt) Refresh(ctx context.Context) error {
	if output, err := a.admin.Run(ctx, "apt-get", "update"); err != nil {
		return fmt.Errorf("apt-get update: %w\nOutput: %s", err, strings.TrimSpace(output))
	}
	return nil
}

// Dnf drives dnf and rpm
type Dnf struct {
	query CommandRunner
	admin CommandRunner
}

// NewDnf creates a dnf package manager
func NewDnf(query, admin CommandRunner) *Dnf {
	return &Dnf{query: query, admin: admin}
}

// Name returns the manager name
func (d *Dnf) Name() string { return "dnf" }

// IsInstalled checks if a package is installed
func (d *Dnf) IsInstalled(ctx context.Context, pkg string) (bool, error) {
	// rpm -q returns exit code 1 if package is not installed
	if _, err := d.query.Run(ctx, "rpm", "-q", pkg); err != nil {
		return false, nil
	}
	return true, nil
}

// Install installs packages non-interactively
func (d *Dnf) Install(ctx context.Context, pkgs ...string) error {
	args := append([]string{"install", "-y"}, pkgs...)
	if output, err := d.admin.Run(ctx, "dnf", args...); err != nil {
		return fmt.Errorf("dnf install %s: %w\nOutput: %s", strings.Join(pkgs, " "), err, strings.TrimSpace(output))
	}
	return nil
}

// Refresh rebuilds the metadata cache
func (d *Dnf) Refresh(ctx context.Context) error {
	if output, err := d.admin.Run(ctx, "dnf", "makecache"); err != nil {
		return fmt.Errorf("dnf makecache: %w\nOutput: %s", err, strings.TrimSpace(output))
	}
	return nil
}
