// Package deploy turns a validated deployment configuration into the
// compose descriptor the container engine runs, and reads it back.
package deploy

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/zoro11031/browser-setup/internal/common"
)

// Fixed identity of the browser service
const (
	Image             = "lscr.io/linuxserver/chromium:latest"
	ServiceName       = "chromium"
	ContainerName     = "chromium"
	ProjectName       = "chromium"
	DescriptorName    = "docker-compose.yml"
	ConfigDirName     = "config"
	ConfigMountTarget = "/config"
	InternalHTTPPort  = 3000
	InternalHTTPSPort = 3001
	DefaultShmSize    = "1gb"
	RestartPolicy     = "unless-stopped"
	SeccompOption     = "seccomp:unconfined"
)

// Default host ports for the web UI
const (
	DefaultPrimaryPort   = 3010
	DefaultSecondaryPort = 3011
)

// HintShmSize is the ResourceHints key for the shared-memory size
const HintShmSize = "shm_size"

// Credentials protect the web UI with a login
type Credentials struct {
	Username string `validate:"required"`
	Password string
}

// Ports are the host ports bound to the fixed internal ports
type Ports struct {
	Primary   int `validate:"min=1,max=65535"`
	Secondary int `validate:"min=1,max=65535,nefield=Primary"`
}

// Proxy routes browser traffic through an upstream proxy
type Proxy struct {
	Scheme   string `validate:"oneof=http socks5"`
	Host     string `validate:"required"`
	Port     int    `validate:"min=1,max=65535"`
	AuthUser string
	AuthPass string
}

// Address returns host:port
func (p *Proxy) Address() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// HasAuth reports whether proxy credentials are set
func (p *Proxy) HasAuth() bool {
	return p.AuthUser != "" || p.AuthPass != ""
}

// DeploymentConfig is the validated record the collector produces. It is
// passed explicitly through rendering and deployment.
type DeploymentConfig struct {
	WorkDir       string       `validate:"required"`
	Credentials   *Credentials `validate:"omitempty"`
	Ports         Ports
	Timezone      string `validate:"required,timezone"`
	Proxy         *Proxy `validate:"omitempty"`
	ResourceHints map[string]string
	PUID          int `validate:"gte=0"`
	PGID          int `validate:"gte=0"`
}

// DescriptorPath is where the compose file lives inside WorkDir
func (c *DeploymentConfig) DescriptorPath() string {
	return filepath.Join(c.WorkDir, DescriptorName)
}

// ShmSize returns the shared-memory hint or its default
func (c *DeploymentConfig) ShmSize() string {
	if size := strings.TrimSpace(c.ResourceHints[HintShmSize]); size != "" {
		return size
	}
	return DefaultShmSize
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Validate re-checks the range, enum and required invariants before
// anything is rendered.
func (c *DeploymentConfig) Validate() error {
	if err := structValidator().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("invalid deployment config: %s failed %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid deployment config: %w", err)
	}

	if err := common.ValidatePath(c.WorkDir); err != nil {
		return fmt.Errorf("invalid deployment config: work dir %w", err)
	}
	if err := common.ValidateShmSize(c.ShmSize()); err != nil {
		return fmt.Errorf("invalid deployment config: %w", err)
	}
	if c.Proxy != nil {
		if _, _, err := common.ValidateProxyAddress(c.Proxy.Address()); err != nil {
			return fmt.Errorf("invalid deployment config: %w", err)
		}
	}
	return nil
}

// Sensitive reports whether rendering embeds a secret
func (c *DeploymentConfig) Sensitive() bool {
	if c.Credentials != nil {
		return true
	}
	return c.Proxy != nil && c.Proxy.HasAuth()
}
