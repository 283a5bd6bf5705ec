package steps

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/zoro11031/browser-setup/internal/common"
	"github.com/zoro11031/browser-setup/internal/deploy"
	"github.com/zoro11031/browser-setup/internal/ui"
)

// Strictness selects how much the collector demands of operator input
type Strictness string

const (
	StrictnessBasic    Strictness = "basic"
	StrictnessHardened Strictness = "hardened"
)

// ParseStrictness accepts basic or hardened; empty means basic
func ParseStrictness(value string) (Strictness, error) {
	switch Strictness(strings.ToLower(strings.TrimSpace(value))) {
	case "", StrictnessBasic:
		return StrictnessBasic, nil
	case StrictnessHardened:
		return StrictnessHardened, nil
	}
	return "", fmt.Errorf("strictness must be basic or hardened, got: %q", value)
}

// RecoveryFileName holds a generated password under the operator's home
const RecoveryFileName = ".browser-setup-credentials"

const generatedPasswordLength = 20

// portSearchSpan bounds how far above a busy default a free port is sought
const portSearchSpan = 20

const passwordAlphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Prompter asks the operator for input. *ui.UI implements it.
type Prompter interface {
	PromptYesNo(prompt string, defaultYes bool) (bool, error)
	PromptInput(prompt, defaultValue string) (string, error)
	PromptPassword(prompt string) (string, error)
	PromptSelect(prompt string, options []string, defaultIndex int) (int, error)
}

// PortChecker reports whether a host port is free
type PortChecker interface {
	IsPortFree(ctx context.Context, port int) bool
}

// SecretWriter stores the recovery file
type SecretWriter interface {
	WritePrivateFile(path string, content []byte) error
}

// CollectDefaults seed the prompts, usually from the answers file
type CollectDefaults struct {
	WorkDir       string
	PrimaryPort   int
	SecondaryPort int
	LoginUser     string
	ProxyScheme   string
	ProxyAddress  string
	Timezone      string
	ShmSize       string
	PUID          int
	PGID          int
}

// Collector gathers and validates everything a deployment needs. Invalid
// answers are reported and asked again; only an aborted prompt fails.
type Collector struct {
	prompt       Prompter
	ui           *ui.UI
	ports        PortChecker
	secrets      SecretWriter
	strictness   Strictness
	defaults     CollectDefaults
	recoveryPath string
	random       io.Reader
	// GeneratedPassword is set when hardened mode created the password
	GeneratedPassword bool
}

// NewCollector creates a collector. recoveryDir is where the recovery file
// goes when a password is generated (normally the operator's home).
func NewCollector(prompt Prompter, out *ui.UI, ports PortChecker, secrets SecretWriter, strictness Strictness, defaults CollectDefaults, recoveryDir string) *Collector {
	return &Collector{
		prompt:       prompt,
		ui:           out,
		ports:        ports,
		secrets:      secrets,
		strictness:   strictness,
		defaults:     defaults,
		recoveryPath: filepath.Join(recoveryDir, RecoveryFileName),
		random:       rand.Reader,
	}
}

// RecoveryPath returns where a generated password is written
func (c *Collector) RecoveryPath() string {
	return c.recoveryPath
}

// Collect runs every prompt and returns a validated configuration
func (c *Collector) Collect(ctx context.Context, caps HostCapability) (deploy.DeploymentConfig, error) {
	cfg := deploy.DeploymentConfig{
		WorkDir: c.defaults.WorkDir,
		PUID:    c.defaults.PUID,
		PGID:    c.defaults.PGID,
	}

	c.ui.Step("Browser Ports")
	primaryDefault := orDefault(c.defaults.PrimaryPort, deploy.DefaultPrimaryPort)
	secondaryDefault := orDefault(c.defaults.SecondaryPort, deploy.DefaultSecondaryPort)

	primary, err := c.askPort(ctx, "HTTP port", c.suggestPort(ctx, caps, primaryDefault, 0), 0)
	if err != nil {
		return cfg, err
	}
	secondary, err := c.askPort(ctx, "HTTPS port", c.suggestPort(ctx, caps, secondaryDefault, primary), primary)
	if err != nil {
		return cfg, err
	}
	cfg.Ports = deploy.Ports{Primary: primary, Secondary: secondary}

	c.ui.Step("Login")
	creds, err := c.askCredentials()
	if err != nil {
		return cfg, err
	}
	cfg.Credentials = creds

	c.ui.Step("Proxy")
	proxy, err := c.askProxy()
	if err != nil {
		return cfg, err
	}
	cfg.Proxy = proxy

	c.ui.Step("Timezone")
	tzDefault := c.defaults.Timezone
	if tzDefault == "" {
		tzDefault = caps.Timezone
	}
	tz, err := c.askTimezone(tzDefault)
	if err != nil {
		return cfg, err
	}
	cfg.Timezone = tz

	c.ui.Step("Resources")
	shm, err := c.askShmSize()
	if err != nil {
		return cfg, err
	}
	cfg.ResourceHints = map[string]string{deploy.HintShmSize: shm}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func orDefault(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

// suggestPort keeps preferred unless the probe found it busy or it is
// taken, then offers the next free port above it.
func (c *Collector) suggestPort(ctx context.Context, caps HostCapability, preferred, taken int) int {
	if preferred != taken && !caps.PortBusy(preferred) {
		return preferred
	}
	for port := preferred + 1; port <= preferred+portSearchSpan && port <= 65535; port++ {
		if port == taken || caps.PortBusy(port) {
			continue
		}
		if c.ports.IsPortFree(ctx, port) {
			c.ui.Warningf("Port %d is not available, offering %d instead", preferred, port)
			return port
		}
	}
	return preferred
}

// askPort re-asks until the answer is a free port in range that differs from taken
func (c *Collector) askPort(ctx context.Context, label string, defaultPort, taken int) (int, error) {
	for {
		answer, err := c.prompt.PromptInput(label, fmt.Sprintf("%d", defaultPort))
		if err != nil {
			return 0, err
		}

		port, err := common.ParsePort(answer)
		if err != nil {
			c.ui.Error(err.Error())
			continue
		}
		if taken != 0 && port == taken {
			c.ui.Errorf("Port %d is already chosen for the other listener", port)
			continue
		}
		if !c.ports.IsPortFree(ctx, port) {
			c.ui.Errorf("Port %d is already in use on this host", port)
			continue
		}
		return port, nil
	}
}

func (c *Collector) askCredentials() (*deploy.Credentials, error) {
	hardened := c.strictness == StrictnessHardened

	if hardened {
		c.ui.Info("Hardened mode: a login is required")
	} else {
		protect, err := c.prompt.PromptYesNo("Protect the browser with a username and password?", true)
		if err != nil {
			return nil, err
		}
		if !protect {
			c.ui.Warning("The browser will be reachable without a login")
			return nil, nil
		}
	}

	username, err := c.askUsername(hardened)
	if err != nil {
		return nil, err
	}
	password, err := c.askPassword(hardened)
	if err != nil {
		return nil, err
	}

	if c.GeneratedPassword {
		if err := c.writeRecovery(username, password); err != nil {
			return nil, err
		}
	}

	return &deploy.Credentials{Username: username, Password: password}, nil
}

func (c *Collector) askUsername(hardened bool) (string, error) {
	for {
		answer, err := c.prompt.PromptInput("Username", c.defaults.LoginUser)
		if err != nil {
			return "", err
		}

		username := common.SanitizeUsername(answer)
		if username == "" {
			c.ui.Error("Username cannot be empty")
			continue
		}
		if hardened {
			if err := common.ValidateUsername(username); err != nil {
				c.ui.Error(err.Error())
				continue
			}
		}
		return username, nil
	}
}

func (c *Collector) askPassword(hardened bool) (string, error) {
	for {
		password, err := c.prompt.PromptPassword("Password")
		if err != nil {
			return "", err
		}

		if password == "" {
			if hardened {
				generated, err := c.generatePassword()
				if err != nil {
					return "", err
				}
				c.GeneratedPassword = true
				c.ui.Info("Generated a random password")
				return generated, nil
			}
			c.ui.Error("Password cannot be empty")
			continue
		}

		if hardened {
			if err := common.ValidatePassword(password); err != nil {
				c.ui.Error(err.Error())
				continue
			}
		}

		confirm, err := c.prompt.PromptPassword("Confirm password")
		if err != nil {
			return "", err
		}
		if password != confirm {
			c.ui.Error("Passwords do not match, try again")
			continue
		}
		return password, nil
	}
}

func (c *Collector) generatePassword() (string, error) {
	max := big.NewInt(int64(len(passwordAlphabet)))
	out := make([]byte, generatedPasswordLength)
	for i := range out {
		n, err := rand.Int(c.random, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}

func (c *Collector) writeRecovery(username, password string) error {
	content := fmt.Sprintf("# browser-setup generated login\nusername=%s\npassword=%s\n", username, password)
	if err := c.secrets.WritePrivateFile(c.recoveryPath, []byte(content)); err != nil {
		return fmt.Errorf("failed to write recovery file: %w", err)
	}
	c.ui.Warningf("The generated password was saved to %s", c.recoveryPath)
	c.ui.Warning("That file is the only backup copy. Store it somewhere safe, then delete it.")
	return nil
}

func (c *Collector) askProxy() (*deploy.Proxy, error) {
	useProxy, err := c.prompt.PromptYesNo("Route browser traffic through a proxy?", c.defaults.ProxyAddress != "")
	if err != nil {
		return nil, err
	}
	if !useProxy {
		return nil, nil
	}

	schemes := []string{"http", "socks5"}
	defaultIndex := 0
	if saved := c.defaults.ProxyScheme; saved != "" {
		if err := common.ValidateProxyScheme(saved); err != nil {
			c.ui.Warningf("Ignoring saved proxy type: %v", err)
		} else if saved == schemes[1] {
			defaultIndex = 1
		}
	}
	idx, err := c.prompt.PromptSelect("Proxy type", schemes, defaultIndex)
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(schemes) {
		return nil, fmt.Errorf("invalid proxy type selection: %d", idx)
	}

	proxy := &deploy.Proxy{Scheme: schemes[idx]}

	for {
		answer, err := c.prompt.PromptInput("Proxy address (host:port)", c.defaults.ProxyAddress)
		if err != nil {
			return nil, err
		}
		host, port, err := common.ValidateProxyAddress(strings.TrimSpace(answer))
		if err != nil {
			c.ui.Error(err.Error())
			continue
		}
		if c.strictness == StrictnessHardened {
			if err := common.ValidateHost(host); err != nil {
				c.ui.Error(err.Error())
				continue
			}
		}
		proxy.Host = host
		proxy.Port = port
		break
	}

	needsAuth, err := c.prompt.PromptYesNo("Does the proxy require authentication?", false)
	if err != nil {
		return nil, err
	}
	if needsAuth {
		if proxy.AuthUser, err = c.prompt.PromptInput("Proxy username", ""); err != nil {
			return nil, err
		}
		proxy.AuthUser = strings.TrimSpace(proxy.AuthUser)
		if proxy.AuthPass, err = c.prompt.PromptPassword("Proxy password"); err != nil {
			return nil, err
		}
	}

	return proxy, nil
}

func (c *Collector) askTimezone(defaultTZ string) (string, error) {
	if defaultTZ == "" {
		defaultTZ = "UTC"
	}
	for {
		answer, err := c.prompt.PromptInput("Timezone", defaultTZ)
		if err != nil {
			return "", err
		}
		tz := strings.TrimSpace(answer)
		if err := common.ValidateTimezone(tz); err != nil {
			c.ui.Error(err.Error())
			continue
		}
		return tz, nil
	}
}

func (c *Collector) askShmSize() (string, error) {
	defaultSize := c.defaults.ShmSize
	if defaultSize == "" {
		defaultSize = deploy.DefaultShmSize
	}
	for {
		answer, err := c.prompt.PromptInput("Shared memory size", defaultSize)
		if err != nil {
			return "", err
		}
		size := strings.ToLower(strings.TrimSpace(answer))
		if err := common.ValidateShmSize(size); err != nil {
			c.ui.Error(err.Error())
			continue
		}
		return size, nil
	}
}

// RecoveryDir returns the operator's home for the recovery file
func RecoveryDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return home
}
