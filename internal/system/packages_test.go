package system

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeOSRelease(t *testing.T, content string) *OSRelease {
	t.Helper()
	path := filepath.Join(t.TempDir(), "os-release")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	release, err := ReadOSRelease(path)
	if err != nil {
		t.Fatalf("ReadOSRelease() error: %v", err)
	}
	return release
}

func TestReadOSRelease(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		wantManager  string
		wantDistro   string
		wantCodename string
	}{
		{
			name:         "ubuntu",
			content:      "NAME=\"Ubuntu\"\nID=ubuntu\nID_LIKE=debian\nVERSION_ID=\"24.04\"\nVERSION_CODENAME=noble\nUBUNTU_CODENAME=noble\n",
			wantManager:  "apt",
			wantDistro:   "ubuntu",
			wantCodename: "noble",
		},
		{
			name:         "debian",
			content:      "PRETTY_NAME=\"Debian GNU/Linux 12 (bookworm)\"\nID=debian\nVERSION_CODENAME=bookworm\n",
			wantManager:  "apt",
			wantDistro:   "debian",
			wantCodename: "bookworm",
		},
		{
			name:         "mint uses the ubuntu base",
			content:      "ID=linuxmint\nID_LIKE=\"ubuntu debian\"\nVERSION_CODENAME=wilma\nUBUNTU_CODENAME=noble\n",
			wantManager:  "apt",
			wantDistro:   "ubuntu",
			wantCodename: "noble",
		},
		{
			name:        "fedora",
			content:     "ID=fedora\nVERSION_ID=40\n",
			wantManager: "dnf",
		},
		{
			name:        "rocky",
			content:     "ID=\"rocky\"\nID_LIKE=\"rhel centos fedora\"\n",
			wantManager: "dnf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			release := writeOSRelease(t, tt.content)

			pm, err := DetectPackageManager(release, &fakeCommandRunner{}, &fakeCommandRunner{})
			if err != nil {
				t.Fatalf("DetectPackageManager() error: %v", err)
			}
			if pm.Name() != tt.wantManager {
				t.Errorf("manager = %s, want %s", pm.Name(), tt.wantManager)
			}

			if tt.wantManager == "apt" {
				distro, codename := release.DockerRepoDistro()
				if distro != tt.wantDistro || codename != tt.wantCodename {
					t.Errorf("DockerRepoDistro() = %s, %s, want %s, %s", distro, codename, tt.wantDistro, tt.wantCodename)
				}
			}
		})
	}
}

func TestDetectPackageManagerUnsupported(t *testing.T) {
	release := writeOSRelease(t, "ID=alpine\n")
	if _, err := DetectPackageManager(release, &fakeCommandRunner{}, &fakeCommandRunner{}); err == nil {
		t.Error("DetectPackageManager(alpine) error = nil, want error")
	}
}

func TestDockerRepoFile(t *testing.T) {
	if got := (&OSRelease{ID: "fedora"}).DockerRepoFile(); got != "https://download.docker.com/linux/fedora/docker-ce.repo" {
		t.Errorf("DockerRepoFile(fedora) = %s", got)
	}
	if got := (&OSRelease{ID: "rocky", IDLike: []string{"rhel"}}).DockerRepoFile(); got != "https://download.docker.com/linux/centos/docker-ce.repo" {
		t.Errorf("DockerRepoFile(rocky) = %s", got)
	}
}

func TestAptCommands(t *testing.T) {
	ctx := context.Background()
	query := &fakeCommandRunner{outputs: map[string]string{
		"dpkg-query -W -f=${Status} curl": "install ok installed",
	}}
	admin := &fakeCommandRunner{}
	apt := NewApt(query, admin)

	if ok, _ := apt.IsInstalled(ctx, "curl"); !ok {
		t.Error("IsInstalled(curl) = false, want true")
	}
	if ok, _ := apt.IsInstalled(ctx, "gnupg"); ok {
		t.Error("IsInstalled(gnupg) = true, want false")
	}

	if err := apt.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if err := apt.Install(ctx, "ca-certificates", "curl"); err != nil {
		t.Fatal(err)
	}
	if !admin.ran("apt-get update") {
		t.Errorf("commands = %v, want apt-get update", admin.commands)
	}
	if !admin.ran("env DEBIAN_FRONTEND=noninteractive apt-get install -y ca-certificates curl") {
		t.Errorf("commands = %v, want non-interactive install", admin.commands)
	}

	failing := NewApt(query, &fakeCommandRunner{failCommand: "env"})
	if err := failing.Install(ctx, "docker-ce"); err == nil {
		t.Error("Install() error = nil, want error")
	}
}

func TestDnfCommands(t *testing.T) {
	ctx := context.Background()
	query := &fakeCommandRunner{failCommand: "rpm -q docker-ce"}
	admin := &fakeCommandRunner{}
	dnf := NewDnf(query, admin)

	if ok, _ := dnf.IsInstalled(ctx, "curl"); !ok {
		t.Error("IsInstalled(curl) = false, want true")
	}
	if ok, _ := dnf.IsInstalled(ctx, "docker-ce"); ok {
		t.Error("IsInstalled(docker-ce) = true, want false")
	}

	if err := dnf.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if err := dnf.Install(ctx, "docker-ce", "docker-ce-cli"); err != nil {
		t.Fatal(err)
	}
	if !admin.ran("dnf makecache") || !admin.ran("dnf install -y docker-ce docker-ce-cli") {
		t.Errorf("commands = %v", admin.commands)
	}
}
