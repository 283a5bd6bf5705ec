package system

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// ErrPrivilegeRequired is returned when a command needed root and sudo
// could not run it without a password.
var ErrPrivilegeRequired = errors.New("root privileges required (run as root or configure passwordless sudo)")

// CommandRunner defines an interface for running system commands.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecCommandRunner executes commands using the local shell.
type ExecCommandRunner struct {
	logger *slog.Logger
}

// NewCommandRunner returns a default command runner implementation.
func NewCommandRunner(logger *slog.Logger) CommandRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecCommandRunner{logger: logger}
}

// Run executes a command and returns its combined output.
func (r *ExecCommandRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	r.logger.Debug("exec", "cmd", name, "args", redactArgs(args))

	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		r.logger.Debug("exec failed", "cmd", name, "error", err)
	}
	return string(output), err
}

// redactArgs keeps secrets that reach the command line out of the debug log.
func redactArgs(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		if key, _, ok := strings.Cut(arg, "="); ok && strings.Contains(strings.ToUpper(key), "PASSWORD") {
			out[i] = key + "=****"
			continue
		}
		out[i] = arg
	}
	return out
}

// PrivilegedRunner runs commands as root, prefixing them with
// non-interactive sudo when the current user is not root.
type PrivilegedRunner struct {
	inner CommandRunner
	root  bool
}

// NewPrivilegedRunner wraps inner. isRoot is usually os.Geteuid() == 0.
func NewPrivilegedRunner(inner CommandRunner, isRoot bool) *PrivilegedRunner {
	return &PrivilegedRunner{inner: inner, root: isRoot}
}

// IsRoot reports whether the effective user is root
func IsRoot() bool {
	return os.Geteuid() == 0
}

// Run executes the command with root privileges.
func (p *PrivilegedRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	if p.root {
		return p.inner.Run(ctx, name, args...)
	}

	output, err := p.inner.Run(ctx, "sudo", append([]string{"-n", name}, args...)...)
	if err != nil && strings.Contains(output, "a password is required") {
		return output, fmt.Errorf("%s: %w", name, ErrPrivilegeRequired)
	}
	return output, err
}

// CommandExists checks if a command is available in PATH
func CommandExists(command string) bool {
	_, err := exec.LookPath(command)
	return err == nil
}
