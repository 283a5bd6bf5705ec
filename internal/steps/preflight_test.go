package steps

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoro11031/browser-setup/internal/system"
	"github.com/zoro11031/browser-setup/internal/ui"
)

func newTestProber(t *testing.T, runner *fakeRunner, onPath map[string]bool) *Prober {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "203.0.113.7")
	}))
	t.Cleanup(server.Close)

	network := system.NewNetwork(runner).WithEchoEndpoints(server.URL)
	prober := NewProber(runner, network, system.NewTimezoneProbe(runner), nil)
	prober.lookPath = func(tool string) bool { return onPath[tool] }
	return prober
}

func TestProberProbe(t *testing.T) {
	runner := &fakeRunner{handler: func(cmd string) (string, error) {
		switch cmd {
		case "ss -Htln":
			return "LISTEN 0 4096 0.0.0.0:3010 0.0.0.0:*\nLISTEN 0 128 [::]:22 [::]:*\n", nil
		case "timedatectl show --property=Timezone --value":
			return "Europe/Berlin\n", nil
		case "docker --version":
			return "Docker version 27.3.1, build ce12230\n", nil
		case "docker compose version --short":
			return "2.29.7\n", nil
		case "curl --version":
			return "", fmt.Errorf("broken install")
		}
		return "", fmt.Errorf("unexpected command %s", cmd)
	}}
	prober := newTestProber(t, runner, map[string]bool{"docker": true, "curl": true})

	caps := prober.Probe(context.Background(), []int{3010, 3011})

	assert.True(t, caps.ToolPresent[ToolDocker])
	assert.Equal(t, "Docker version 27.3.1, build ce12230", caps.ToolVersion[ToolDocker])
	assert.True(t, caps.ToolPresent[ToolCompose])
	assert.Equal(t, "2.29.7", caps.ToolVersion[ToolCompose])
	assert.True(t, caps.ToolPresent[ToolCurl])
	assert.Empty(t, caps.ToolVersion[ToolCurl])
	assert.False(t, caps.ToolPresent[ToolGPG])

	assert.Equal(t, []int{3011}, caps.FreePorts)
	assert.False(t, caps.HasPort(3010))
	assert.True(t, caps.HasPort(3011))
	assert.True(t, caps.PortBusy(3010))
	assert.False(t, caps.PortBusy(3011))
	assert.False(t, caps.PortBusy(3012), "unprobed ports are not busy")
	assert.Equal(t, "Europe/Berlin", caps.Timezone)
	assert.Equal(t, "203.0.113.7", caps.PublicAddress)
}

func TestProberComposeNeedsDocker(t *testing.T) {
	runner := &fakeRunner{}
	prober := newTestProber(t, runner, map[string]bool{})

	caps := prober.Probe(context.Background(), nil)
	assert.False(t, caps.ToolPresent[ToolDocker])
	assert.False(t, caps.ToolPresent[ToolCompose])
	assert.False(t, runner.ran("docker compose version --short"))
}

func TestReportCapabilities(t *testing.T) {
	var out bytes.Buffer
	ReportCapabilities(HostCapability{
		ToolPresent:   map[string]bool{ToolDocker: true},
		ToolVersion:   map[string]string{},
		Timezone:      "UTC",
		PublicAddress: system.UnknownAddress,
	}, ui.NewWithWriter(&out))

	assert.Contains(t, out.String(), "docker (version unknown)")
	assert.Contains(t, out.String(), "gpg is not installed")
	assert.Contains(t, out.String(), "Public address: unknown")
}

func TestCheckSudoAccess(t *testing.T) {
	tests := []struct {
		name     string
		isRoot   bool
		handler  func(cmd string) (string, error)
		wantErr  bool
		wantCmds int
	}{
		{"root", true, nil, false, 0},
		{"passwordless", false, nil, false, 1},
		{
			name:   "cached after prompt",
			isRoot: false,
			handler: func(cmd string) (string, error) {
				if cmd == "sudo -n true" {
					return "", fmt.Errorf("a password is required")
				}
				return "", nil
			},
			wantCmds: 2,
		},
		{
			name:     "denied",
			isRoot:   false,
			handler:  func(cmd string) (string, error) { return "", fmt.Errorf("denied") },
			wantErr:  true,
			wantCmds: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{handler: tt.handler}
			err := CheckSudoAccess(context.Background(), runner, tt.isRoot, ui.NewWithWriter(&bytes.Buffer{}))
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Len(t, runner.commands, tt.wantCmds)
		})
	}
}
