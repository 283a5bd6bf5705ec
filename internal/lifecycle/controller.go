package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/zoro11031/browser-setup/internal/deploy"
	"github.com/zoro11031/browser-setup/internal/system"
	"github.com/zoro11031/browser-setup/internal/ui"
)

// DefaultSettle is how long Verify waits before the single status query
const DefaultSettle = 5 * time.Second

var (
	// ErrLaunchFailed means the unit was brought up but is not running
	ErrLaunchFailed = errors.New("browser container is not running")
	// ErrCancelled means the operator declined a destructive action
	ErrCancelled = errors.New("cancelled by operator")
)

// Engine runs compose units. *system.ComposeEngine implements it.
type Engine interface {
	BringDown(ctx context.Context, unit string) error
	BringUp(ctx context.Context, descriptorPath, unit string) error
	Status(ctx context.Context, unit string) (system.UnitStatus, error)
	Logs(ctx context.Context, unit string, lines int) (string, error)
}

// FileStore holds the work directory. *system.FileSystem implements it.
type FileStore interface {
	EnsurePrivateDir(path string) error
	WritePrivateFile(path string, content []byte) error
	ReadFile(path string) ([]byte, error)
	FileExists(path string) (bool, error)
	RemoveDirectory(ctx context.Context, path string) error
}

// Controller drives the browser service through its states
type Controller struct {
	engine  Engine
	fs      FileStore
	ui      *ui.UI
	logger  *slog.Logger
	workDir string
	unit    string
	settle  time.Duration
	state   ServiceState
}

// NewController creates a controller for the unit living in workDir. A zero
// settle uses DefaultSettle.
func NewController(engine Engine, fs FileStore, out *ui.UI, logger *slog.Logger, workDir string, settle time.Duration) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Controller{
		engine:  engine,
		fs:      fs,
		ui:      out,
		logger:  logger,
		workDir: workDir,
		unit:    deploy.ProjectName,
		settle:  settle,
		state:   StateAbsent,
	}
}

// State returns the last state the controller moved to
func (c *Controller) State() ServiceState {
	return c.state
}

// WorkDir returns the directory holding the descriptor and config mount
func (c *Controller) WorkDir() string {
	return c.workDir
}

// DescriptorPath returns where the compose descriptor is written
func (c *Controller) DescriptorPath() string {
	return filepath.Join(c.workDir, deploy.DescriptorName)
}

// Unit returns the compose project name
func (c *Controller) Unit() string {
	return c.unit
}

func (c *Controller) moveTo(next ServiceState) {
	if !CanTransition(c.state, next) {
		c.logger.Debug("unexpected state transition", "from", c.state, "to", next)
	}
	c.logger.Debug("state", "from", c.state, "to", next)
	c.state = next
}

// Deploy writes desc into the work directory and starts the unit, replacing
// any previous one. The controller moves to Starting right away and stays
// there on success; any failure leaves it Failed.
func (c *Controller) Deploy(ctx context.Context, desc deploy.Descriptor) error {
	c.ui.Step("Deploying Browser")
	c.moveTo(StateStarting)

	if err := c.deploy(ctx, desc); err != nil {
		c.moveTo(StateFailed)
		return err
	}

	c.ui.Success("Browser container started")
	return nil
}

func (c *Controller) deploy(ctx context.Context, desc deploy.Descriptor) error {
	if err := c.fs.EnsurePrivateDir(c.workDir); err != nil {
		return err
	}
	if err := c.fs.EnsurePrivateDir(filepath.Join(c.workDir, deploy.ConfigDirName)); err != nil {
		return err
	}

	// The descriptor is always written 0600; Sensitive only changes the notice
	if err := c.fs.WritePrivateFile(c.DescriptorPath(), desc.Content); err != nil {
		return fmt.Errorf("failed to write descriptor: %w", err)
	}
	if desc.Sensitive {
		c.ui.Infof("Wrote %s (contains credentials, mode 0600)", c.DescriptorPath())
	} else {
		c.ui.Infof("Wrote %s", c.DescriptorPath())
	}

	c.ui.Info("Stopping any previous browser container...")
	if err := c.engine.BringDown(ctx, c.unit); err != nil {
		return fmt.Errorf("failed to stop previous deployment: %w", err)
	}

	c.ui.Info("Starting browser container...")
	if err := c.engine.BringUp(ctx, c.DescriptorPath(), c.unit); err != nil {
		return fmt.Errorf("failed to start browser container: %w", err)
	}
	return nil
}

// Verify waits for the settle delay once and then asks the engine. It is not
// retried: a unit that is not running by then is Failed.
func (c *Controller) Verify(ctx context.Context) (ServiceState, error) {
	c.ui.Infof("Waiting %s for the container to settle...", c.settle)

	timer := time.NewTimer(c.settle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return c.state, ctx.Err()
	case <-timer.C:
	}

	status, err := c.engine.Status(ctx, c.unit)
	if err != nil {
		c.moveTo(StateFailed)
		return c.state, fmt.Errorf("%w: status query failed: %v", ErrLaunchFailed, err)
	}

	if status != system.UnitRunning {
		c.moveTo(StateFailed)
		return c.state, fmt.Errorf("%w (status: %s); inspect with: docker compose -p %s logs", ErrLaunchFailed, status, c.unit)
	}

	c.moveTo(StateRunning)
	c.ui.Success("Browser container is running")
	return c.state, nil
}

// Remove stops the unit and deletes the work directory. Without confirm
// nothing changes and ErrCancelled is returned. Missing pieces are skipped.
func (c *Controller) Remove(ctx context.Context, confirm bool) error {
	if !confirm {
		c.ui.Info("Removal cancelled, nothing was changed")
		return ErrCancelled
	}

	c.ui.Step("Removing Browser")

	c.ui.Info("Stopping browser container...")
	if err := c.engine.BringDown(ctx, c.unit); err != nil {
		if stopErr := c.confirmStopped(ctx, err); stopErr != nil {
			return stopErr
		}
	}

	c.ui.Infof("Deleting %s...", c.workDir)
	if err := c.fs.RemoveDirectory(ctx, c.workDir); err != nil {
		return err
	}

	c.moveTo(StateRemoved)
	c.ui.Success("Browser removed")
	return nil
}

// confirmStopped decides whether removal may go on after BringDown failed.
// An engine that cannot be reached runs nothing, so the unit counts as
// absent. A unit that still reports running stops the removal.
func (c *Controller) confirmStopped(ctx context.Context, downErr error) error {
	status, err := c.engine.Status(ctx, c.unit)
	switch {
	case err != nil:
		c.logger.Debug("engine unreachable during removal", "down_error", downErr, "status_error", err)
		c.ui.Warningf("Container engine is unreachable (%v); treating the browser container as already gone", downErr)
		return nil
	case status == system.UnitRunning:
		return fmt.Errorf("failed to stop browser container: %w", downErr)
	default:
		c.ui.Warningf("Stopping the browser container failed (%v) but it is not running; continuing", downErr)
		return nil
	}
}

// Current derives the state from the descriptor on disk and the engine
func (c *Controller) Current(ctx context.Context) (ServiceState, error) {
	present, err := c.fs.FileExists(c.DescriptorPath())
	if err != nil {
		return c.state, err
	}

	status, err := c.engine.Status(ctx, c.unit)
	if err != nil {
		return c.state, fmt.Errorf("failed to query container status: %w", err)
	}

	switch {
	case status == system.UnitRunning:
		c.state = StateRunning
	case present || status == system.UnitStopped:
		c.state = StateFailed
	case c.state == StateRemoved:
		// nothing on disk or in the engine after a removal in this session
	default:
		c.state = StateAbsent
	}
	return c.state, nil
}

// Deployed reads back the descriptor on disk. It returns nil when there is none.
func (c *Controller) Deployed(ctx context.Context) (*deploy.Deployed, error) {
	present, err := c.fs.FileExists(c.DescriptorPath())
	if err != nil || !present {
		return nil, err
	}
	data, err := c.fs.ReadFile(c.DescriptorPath())
	if err != nil {
		return nil, err
	}
	return deploy.Parse(ctx, data)
}

// Logs returns the last lines of the container output
func (c *Controller) Logs(ctx context.Context, lines int) (string, error) {
	return c.engine.Logs(ctx, c.unit, lines)
}
