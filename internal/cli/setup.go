// Package cli wires the browser setup operations together and exposes them
// to the command line and the interactive menu.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/zoro11031/browser-setup/internal/config"
	"github.com/zoro11031/browser-setup/internal/deploy"
	"github.com/zoro11031/browser-setup/internal/lifecycle"
	"github.com/zoro11031/browser-setup/internal/steps"
	"github.com/zoro11031/browser-setup/internal/system"
	"github.com/zoro11031/browser-setup/internal/ui"
)

// DefaultLogLines is how much container output status shows when asked
const DefaultLogLines = 50

// Options come from the persistent command-line flags
type Options struct {
	ConfigPath string
	LogLevel   string
	Strictness string
}

// SetupContext holds all dependencies needed for the operations
type SetupContext struct {
	Config     *config.Config
	UI         *ui.UI
	Logger     *slog.Logger
	Prompter   steps.Prompter
	Strictness steps.Strictness
	Identity   *system.Identity
	IsRoot     bool

	// Runner executes unprivileged reads; Admin prefixes sudo when needed
	Runner system.CommandRunner
	Admin  system.CommandRunner

	FS         *system.FileSystem
	Network    *system.Network
	Prober     *steps.Prober
	Controller *lifecycle.Controller

	// Out receives machine-readable output such as container logs
	Out io.Writer
}

// NewSetupContext creates a SetupContext with all dependencies initialized
func NewSetupContext(opts Options) (*SetupContext, error) {
	cfg := config.New(opts.ConfigPath)
	if err := cfg.Load(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logLevel := opts.LogLevel
	if logLevel == "" {
		logLevel = cfg.GetOrDefault(config.KeyLogLevel, "warn")
	}
	logger := ui.NewLogger(logLevel)

	strictnessValue := opts.Strictness
	if strictnessValue == "" {
		strictnessValue = cfg.GetOrDefault(config.KeyStrictness, string(steps.StrictnessBasic))
	}
	strictness, err := steps.ParseStrictness(strictnessValue)
	if err != nil {
		return nil, err
	}

	identity, err := system.CurrentIdentity()
	if err != nil {
		return nil, err
	}

	out := ui.New()
	isRoot := system.IsRoot()
	runner := system.NewCommandRunner(logger)
	admin := system.NewPrivilegedRunner(runner, isRoot)
	fs := system.NewFileSystem(admin)
	network := system.NewNetwork(runner)
	prober := steps.NewProber(runner, network, system.NewTimezoneProbe(runner), logger)

	var docker system.DockerAPI
	if dockerClient, err := system.NewDockerClient(); err != nil {
		logger.Debug("docker API unavailable, using compose CLI for status", "error", err)
	} else {
		docker = dockerClient
	}
	engine := system.NewComposeEngine(admin, docker, deploy.ContainerName, logger)

	workDir := cfg.GetOrDefault(config.KeyWorkDir, filepath.Join(identity.Home, "chromium"))
	settle := time.Duration(cfg.GetInt(config.KeySettleSeconds, 5)) * time.Second
	controller := lifecycle.NewController(engine, fs, out, logger, workDir, settle)

	return &SetupContext{
		Config:     cfg,
		UI:         out,
		Logger:     logger,
		Prompter:   out,
		Strictness: strictness,
		Identity:   identity,
		IsRoot:     isRoot,
		Runner:     runner,
		Admin:      admin,
		FS:         fs,
		Network:    network,
		Prober:     prober,
		Controller: controller,
		Out:        os.Stdout,
	}, nil
}

func (ctx *SetupContext) collectDefaults() steps.CollectDefaults {
	defaults := steps.CollectDefaults{
		WorkDir:       ctx.Controller.WorkDir(),
		PrimaryPort:   ctx.Config.GetInt(config.KeyHTTPPort, deploy.DefaultPrimaryPort),
		SecondaryPort: ctx.Config.GetInt(config.KeyHTTPSPort, deploy.DefaultSecondaryPort),
		LoginUser:     ctx.Config.GetOrDefault(config.KeyLoginUser, ""),
		ProxyScheme:   ctx.Config.GetOrDefault(config.KeyProxyScheme, ""),
		ProxyAddress:  ctx.Config.GetOrDefault(config.KeyProxyAddress, ""),
		Timezone:      ctx.Config.GetOrDefault(config.KeyTimezone, ""),
		ShmSize:       ctx.Config.GetOrDefault(config.KeyShmSize, deploy.DefaultShmSize),
	}
	if ctx.Identity != nil {
		defaults.PUID = ctx.Identity.UID
		defaults.PGID = ctx.Identity.GID
		if defaults.LoginUser == "" {
			defaults.LoginUser = ctx.Identity.Username
		}
	}
	return defaults
}

// accessAddress picks the address shown in the access URLs
func (ctx *SetupContext) accessAddress(public string) string {
	if public != "" && public != system.UnknownAddress {
		return public
	}
	if local, err := ctx.Network.GetLocalIP(); err == nil && local != "" {
		return local
	}
	return "localhost"
}

// ensureBaseline installs docker and the compose plugin when missing. With
// both present only the daemon steps run.
func (ctx *SetupContext) ensureBaseline(c context.Context, caps steps.HostCapability) error {
	if caps.ToolPresent[steps.ToolDocker] && caps.ToolPresent[steps.ToolCompose] {
		ctx.UI.Success("Docker and the compose plugin are already installed")
		// no step here reads the package index
		installer := steps.NewInstaller(nil, ctx.UI, ctx.Logger)
		return installer.EnsureBaseline(c, steps.ServiceBaseline(steps.BaselineDeps{
			Query: ctx.Runner,
			Admin: ctx.Admin,
		}))
	}

	release, err := system.ReadOSRelease(system.DefaultOSReleasePath)
	if err != nil {
		return err
	}
	pm, err := system.DetectPackageManager(release, ctx.Runner, ctx.Admin)
	if err != nil {
		return err
	}

	installer := steps.NewInstaller(pm, ctx.UI, ctx.Logger)
	return installer.EnsureBaseline(c, steps.DefaultBaseline(steps.BaselineDeps{
		Release: release,
		PM:      pm,
		FS:      ctx.FS,
		Query:   ctx.Runner,
		Admin:   ctx.Admin,
		Paths:   steps.DefaultBaselinePaths(),
	}))
}

// saveAnswers remembers the non-secret answers as next-run defaults
func (ctx *SetupContext) saveAnswers(cfg deploy.DeploymentConfig) {
	values := map[string]string{
		config.KeyHTTPPort:  strconv.Itoa(cfg.Ports.Primary),
		config.KeyHTTPSPort: strconv.Itoa(cfg.Ports.Secondary),
		config.KeyTimezone:  cfg.Timezone,
		config.KeyShmSize:   cfg.ShmSize(),
	}
	if cfg.Credentials != nil {
		values[config.KeyLoginUser] = cfg.Credentials.Username
	}
	if cfg.Proxy != nil {
		values[config.KeyProxyScheme] = cfg.Proxy.Scheme
		values[config.KeyProxyAddress] = cfg.Proxy.Address()
	}

	if err := ctx.Config.SetMany(values); err != nil {
		ctx.UI.Warningf("Failed to save answers to %s: %v", ctx.Config.FilePath(), err)
		return
	}
	ctx.Logger.Debug("answers saved", "path", ctx.Config.FilePath())
}

// RunDeploy probes the host, installs missing dependencies, collects the
// configuration and starts the browser.
func RunDeploy(c context.Context, ctx *SetupContext) error {
	ctx.UI.Header("Browser Setup: Deploy")

	if err := steps.CheckSudoAccess(c, ctx.Runner, ctx.IsRoot, ctx.UI); err != nil {
		return err
	}

	defaults := ctx.collectDefaults()
	caps := ctx.Prober.Probe(c, []int{defaults.PrimaryPort, defaults.SecondaryPort})
	steps.ReportCapabilities(caps, ctx.UI)

	if err := ctx.ensureBaseline(c, caps); err != nil {
		return err
	}

	ports := ownedPorts{PortChecker: ctx.Prober, owned: map[int]bool{}}
	if deployed, err := ctx.Controller.Deployed(c); err == nil && deployed != nil {
		// BringDown frees these before the new unit binds them
		ports.owned[deployed.Ports.Primary] = true
		ports.owned[deployed.Ports.Secondary] = true
	}
	caps = ports.release(caps)

	collector := steps.NewCollector(ctx.Prompter, ctx.UI, ports, ctx.FS, ctx.Strictness, defaults, ctx.recoveryDir())
	cfg, err := collector.Collect(c, caps)
	if err != nil {
		return err
	}
	ctx.saveAnswers(cfg)

	return deployConfig(c, ctx, cfg, caps.PublicAddress)
}

// ownedPorts treats the ports of the current deployment as free
type ownedPorts struct {
	steps.PortChecker
	owned map[int]bool
}

func (o ownedPorts) IsPortFree(ctx context.Context, port int) bool {
	return o.owned[port] || o.PortChecker.IsPortFree(ctx, port)
}

// release marks the owned ports free in caps
func (o ownedPorts) release(caps steps.HostCapability) steps.HostCapability {
	for port := range o.owned {
		if !caps.HasPort(port) {
			caps.FreePorts = append(caps.FreePorts, port)
		}
	}
	return caps
}

func (ctx *SetupContext) recoveryDir() string {
	if ctx.Identity != nil && ctx.Identity.Home != "" {
		return ctx.Identity.Home
	}
	return steps.RecoveryDir()
}

// deployConfig renders cfg, starts it and verifies the launch
func deployConfig(c context.Context, ctx *SetupContext, cfg deploy.DeploymentConfig, publicAddress string) error {
	desc, err := deploy.Render(cfg)
	if err != nil {
		return err
	}

	if err := ctx.Controller.Deploy(c, desc); err != nil {
		return err
	}
	if _, err := ctx.Controller.Verify(c); err != nil {
		return err
	}

	lifecycle.NewAccessInfo(cfg, ctx.accessAddress(publicAddress)).Show(ctx.UI)
	ctx.UI.Success("Browser deployment completed")
	return nil
}

// RunRemove stops the browser and deletes its work directory. Without force
// the operator is asked first; declining is not an error.
func RunRemove(c context.Context, ctx *SetupContext, force bool) error {
	ctx.UI.Header("Browser Setup: Remove")

	confirm := force
	if !force {
		ctx.UI.Warning("This stops the browser container and deletes its data:")
		ctx.UI.Warningf("  %s", ctx.Controller.WorkDir())
		answer, err := ctx.Prompter.PromptYesNo("Remove the browser?", false)
		if err != nil {
			return err
		}
		confirm = answer
	}

	if err := ctx.Controller.Remove(c, confirm); err != nil {
		if errors.Is(err, lifecycle.ErrCancelled) {
			return nil
		}
		return err
	}
	return nil
}

// RunStatus reports the service state and, when logLines > 0, the tail of
// the container output on Out.
func RunStatus(c context.Context, ctx *SetupContext, logLines int) error {
	ctx.UI.Header("Browser Setup: Status")

	state, err := ctx.Controller.Current(c)
	if err != nil {
		return err
	}
	ctx.UI.Infof("State: %s", state.Label())

	deployed, err := ctx.Controller.Deployed(c)
	if err != nil {
		ctx.UI.Warningf("Could not read %s: %v", ctx.Controller.DescriptorPath(), err)
	} else if deployed == nil {
		ctx.UI.Info("Nothing is deployed. Run: browser-setup deploy")
	} else {
		lifecycle.AccessInfoFromDeployed(deployed, ctx.accessAddress(""), ctx.Controller.WorkDir()).Show(ctx.UI)
	}

	if ctx.Config != nil {
		if _, err := os.Stat(ctx.Config.FilePath()); err == nil {
			ctx.UI.Infof("Configuration file: %s", ctx.Config.FilePath())
		}
	}

	if logLines <= 0 || state == lifecycle.StateAbsent || state == lifecycle.StateRemoved {
		return nil
	}

	logs, err := ctx.Controller.Logs(c, logLines)
	if err != nil {
		return err
	}
	ctx.UI.Step(fmt.Sprintf("Last %d log lines", logLines))
	fmt.Fprint(ctx.Out, logs)
	return nil
}
