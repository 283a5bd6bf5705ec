package lifecycle

import (
	"fmt"

	"github.com/zoro11031/browser-setup/internal/deploy"
	"github.com/zoro11031/browser-setup/internal/ui"
)

// AccessInfo is what the operator needs to reach and manage the browser
type AccessInfo struct {
	Address  string
	Ports    deploy.Ports
	Username string
	Password string
	// PasswordSet is used when only the descriptor is known
	PasswordSet bool
	Proxy       *deploy.Proxy
	ProxyFlag   string
	WorkDir     string
	Unit        string
}

// NewAccessInfo builds access info for a freshly collected configuration
func NewAccessInfo(cfg deploy.DeploymentConfig, address string) AccessInfo {
	info := AccessInfo{
		Address: address,
		Ports:   cfg.Ports,
		Proxy:   cfg.Proxy,
		WorkDir: cfg.WorkDir,
		Unit:    deploy.ProjectName,
	}
	if cfg.Credentials != nil {
		info.Username = cfg.Credentials.Username
		info.Password = cfg.Credentials.Password
		info.PasswordSet = cfg.Credentials.Password != ""
	}
	return info
}

// AccessInfoFromDeployed builds access info from a descriptor read back from disk
func AccessInfoFromDeployed(d *deploy.Deployed, address, workDir string) AccessInfo {
	return AccessInfo{
		Address:     address,
		Ports:       d.Ports,
		Username:    d.Username,
		PasswordSet: d.PasswordSet,
		ProxyFlag:   d.ProxyFlag,
		WorkDir:     workDir,
		Unit:        deploy.ProjectName,
	}
}

// URLs returns the web UI addresses
func (a AccessInfo) URLs() (string, string) {
	return fmt.Sprintf("http://%s:%d", a.Address, a.Ports.Primary),
		fmt.Sprintf("https://%s:%d", a.Address, a.Ports.Secondary)
}

// ProxySummary describes the proxy with its password masked
func (a AccessInfo) ProxySummary() string {
	switch {
	case a.Proxy != nil:
		auth := ""
		if a.Proxy.HasAuth() {
			auth = fmt.Sprintf(" (user %s, password %s)", a.Proxy.AuthUser, ui.Mask(a.Proxy.AuthPass))
		}
		return fmt.Sprintf("%s://%s%s", a.Proxy.Scheme, a.Proxy.Address(), auth)
	case a.ProxyFlag != "":
		return "configured"
	default:
		return "none"
	}
}

// Show prints the access and management information
func (a AccessInfo) Show(out *ui.UI) {
	httpURL, httpsURL := a.URLs()

	out.Print("")
	out.Info("Browser Access Information:")
	out.Separator()
	out.Printf("  Web UI (HTTP):  %s", httpURL)
	out.Printf("  Web UI (HTTPS): %s", httpsURL)
	if a.Username != "" {
		password := "********"
		if a.Password != "" {
			password = ui.Mask(a.Password)
		} else if !a.PasswordSet {
			password = "(none)"
		}
		out.Printf("  Username:       %s", a.Username)
		out.Printf("  Password:       %s", password)
	} else {
		out.Printf("  Login:          disabled")
	}
	out.Printf("  Proxy:          %s", a.ProxySummary())
	out.Print("")

	out.Info("Service Management:")
	out.Separator()
	descriptor := fmt.Sprintf("%s/%s", a.WorkDir, deploy.DescriptorName)
	out.Printf("  Logs:    docker compose -p %s logs -f", a.Unit)
	out.Printf("  Stop:    docker compose -p %s stop", a.Unit)
	out.Printf("  Start:   docker compose -p %s -f %s up -d", a.Unit, descriptor)
	out.Printf("  Remove:  browser-setup remove")
	out.Print("")
}
