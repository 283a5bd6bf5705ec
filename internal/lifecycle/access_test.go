package lifecycle

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zoro11031/browser-setup/internal/deploy"
	"github.com/zoro11031/browser-setup/internal/ui"
)

func TestAccessInfoShowMasksSecrets(t *testing.T) {
	cfg := deploy.DeploymentConfig{
		WorkDir:     "/home/op/chromium",
		Ports:       deploy.Ports{Primary: 3010, Secondary: 3011},
		Timezone:    "UTC",
		Credentials: &deploy.Credentials{Username: "alice", Password: "hunter2hunter2"},
		Proxy:       &deploy.Proxy{Scheme: "http", Host: "proxy.lan", Port: 3128, AuthUser: "bob", AuthPass: "proxypass"},
	}

	var out bytes.Buffer
	NewAccessInfo(cfg, "203.0.113.7").Show(ui.NewWithWriter(&out))
	text := out.String()

	assert.Contains(t, text, "http://203.0.113.7:3010")
	assert.Contains(t, text, "https://203.0.113.7:3011")
	assert.Contains(t, text, "alice")
	assert.NotContains(t, text, "hunter2hunter2")
	assert.NotContains(t, text, "proxypass")
	assert.Contains(t, text, "http://proxy.lan:3128 (user bob")
	assert.Contains(t, text, "docker compose -p chromium logs -f")
}

func TestAccessInfoWithoutLogin(t *testing.T) {
	info := AccessInfoFromDeployed(&deploy.Deployed{Ports: deploy.Ports{Primary: 4000, Secondary: 4001}}, "unknown", "/srv/chromium")

	var out bytes.Buffer
	info.Show(ui.NewWithWriter(&out))

	assert.Contains(t, out.String(), "Login:          disabled")
	assert.Contains(t, out.String(), "Proxy:          none")
	assert.Equal(t, "configured", AccessInfo{ProxyFlag: "--proxy-server=http://p:1"}.ProxySummary())
}
