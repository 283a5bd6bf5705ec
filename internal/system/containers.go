// Package system provides low-level host operations for the browser setup
// tool: command execution, package management, filesystem helpers, network
// probes and the container engine. All operations that interact with the OS
// are encapsulated here.
package system

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// ComposeProjectLabel is set by compose on every container it creates
const ComposeProjectLabel = "com.docker.compose.project"

// UnitStatus is the engine's view of a compose unit
type UnitStatus string

const (
	UnitRunning UnitStatus = "running"
	UnitStopped UnitStatus = "stopped"
	UnitAbsent  UnitStatus = "absent"
)

// ErrNameConflict is returned when the container name is held by a
// container outside the unit.
var ErrNameConflict = errors.New("container name already in use")

// DockerAPI is the part of the Docker Engine API the compose engine reads
type DockerAPI interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
}

// NewDockerClient connects to the daemon named by DOCKER_HOST or the default socket
func NewDockerClient() (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return cli, nil
}

// ComposeEngine runs compose units with the docker compose plugin and
// reads their state from the Engine API.
type ComposeEngine struct {
	runner        CommandRunner
	docker        DockerAPI
	containerName string
	logger        *slog.Logger
}

// NewComposeEngine creates an engine. runner should be privileged when the
// operator is not in the docker group. docker may be nil, in which case
// status comes from `docker compose ps`.
func NewComposeEngine(runner CommandRunner, docker DockerAPI, containerName string, logger *slog.Logger) *ComposeEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &ComposeEngine{
		runner:        runner,
		docker:        docker,
		containerName: containerName,
		logger:        logger,
	}
}

// BringDown stops and removes the unit. An absent unit is not an error.
func (e *ComposeEngine) BringDown(ctx context.Context, unit string) error {
	status, err := e.Status(ctx, unit)
	if err == nil && status == UnitAbsent {
		e.logger.Debug("bring down skipped, unit absent", "unit", unit)
		return nil
	}

	output, err := e.runner.Run(ctx, "docker", "compose", "-p", unit, "down", "--remove-orphans")
	if err != nil {
		return fmt.Errorf("docker compose down %s: %w\nOutput: %s", unit, err, strings.TrimSpace(output))
	}
	return nil
}

// BringUp starts the unit described by descriptorPath in the background
func (e *ComposeEngine) BringUp(ctx context.Context, descriptorPath, unit string) error {
	if err := e.checkNameFree(ctx, unit); err != nil {
		return err
	}

	output, err := e.runner.Run(ctx, "docker", "compose", "-p", unit, "-f", descriptorPath, "up", "-d")
	if err != nil {
		return fmt.Errorf("docker compose up %s: %w\nOutput: %s", unit, err, strings.TrimSpace(output))
	}
	return nil
}

// checkNameFree fails when another project's container holds our name;
// compose would otherwise fail with a less helpful conflict message.
func (e *ComposeEngine) checkNameFree(ctx context.Context, unit string) error {
	if e.docker == nil || e.containerName == "" {
		return nil
	}

	info, err := e.docker.ContainerInspect(ctx, e.containerName)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		// Unreachable daemon: let compose report the real problem
		e.logger.Debug("container inspect failed", "name", e.containerName, "error", err)
		return nil
	}

	owner := ""
	if info.Config != nil {
		owner = info.Config.Labels[ComposeProjectLabel]
	}
	if owner != unit {
		return fmt.Errorf("%w: %s (remove it with: docker rm -f %s)", ErrNameConflict, e.containerName, e.containerName)
	}
	return nil
}

// Status reports whether the unit's containers are running
func (e *ComposeEngine) Status(ctx context.Context, unit string) (UnitStatus, error) {
	if e.docker != nil {
		status, err := e.statusFromAPI(ctx, unit)
		if err == nil {
			return status, nil
		}
		e.logger.Debug("engine API unavailable, falling back to compose ps", "error", err)
	}
	return e.statusFromCLI(ctx, unit)
}

func (e *ComposeEngine) statusFromAPI(ctx context.Context, unit string) (UnitStatus, error) {
	containers, err := e.docker.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", ComposeProjectLabel+"="+unit)),
	})
	if err != nil {
		return "", fmt.Errorf("list containers for %s: %w", unit, err)
	}

	states := make([]string, 0, len(containers))
	for _, c := range containers {
		states = append(states, string(c.State))
	}
	return summarize(states), nil
}

func (e *ComposeEngine) statusFromCLI(ctx context.Context, unit string) (UnitStatus, error) {
	output, err := e.runner.Run(ctx, "docker", "compose", "-p", unit, "ps", "-a", "--format", "{{.State}}")
	if err != nil {
		return "", fmt.Errorf("docker compose ps %s: %w\nOutput: %s", unit, err, strings.TrimSpace(output))
	}
	return summarize(strings.Fields(output)), nil
}

// summarize folds per-container states into a unit status
func summarize(states []string) UnitStatus {
	if len(states) == 0 {
		return UnitAbsent
	}
	for _, state := range states {
		if state == "running" {
			return UnitRunning
		}
	}
	return UnitStopped
}

// Logs returns the last lines of the unit's output
func (e *ComposeEngine) Logs(ctx context.Context, unit string, lines int) (string, error) {
	output, err := e.runner.Run(ctx, "docker", "compose", "-p", unit, "logs", "--no-color", "--tail", strconv.Itoa(lines))
	if err != nil {
		return "", fmt.Errorf("docker compose logs %s: %w\nOutput: %s", unit, err, strings.TrimSpace(output))
	}
	return output, nil
}

// ComposeVersion returns the compose plugin version, or an error when the
// plugin is missing.
func ComposeVersion(ctx context.Context, runner CommandRunner) (string, error) {
	output, err := runner.Run(ctx, "docker", "compose", "version", "--short")
	if err != nil {
		return "", fmt.Errorf("docker compose plugin not available: %w", err)
	}
	return strings.TrimSpace(output), nil
}
