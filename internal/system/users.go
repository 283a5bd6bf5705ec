package system

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
)

// Identity describes the operator the container's files are owned by
type Identity struct {
	Username string
	UID      int
	GID      int
	Home     string
}

// CurrentIdentity returns the invoking user. Under sudo the original user
// from SUDO_USER is reported so the workdir lands in their home.
func CurrentIdentity() (*Identity, error) {
	u, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}

	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" && u.Uid == "0" {
		if original, err := user.Lookup(sudoUser); err == nil {
			u = original
		}
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return nil, fmt.Errorf("invalid UID for %s: %w", u.Username, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return nil, fmt.Errorf("invalid GID for %s: %w", u.Username, err)
	}

	return &Identity{
		Username: u.Username,
		UID:      uid,
		GID:      gid,
		Home:     u.HomeDir,
	}, nil
}

// DefaultTimezone is used when no source reports a zone
const DefaultTimezone = "UTC"

// TimezoneProbe reads the host timezone from the usual places
type TimezoneProbe struct {
	runner        CommandRunner
	TimezoneFile  string
	LocaltimeLink string
}

// NewTimezoneProbe creates a probe reading the standard system locations
func NewTimezoneProbe(runner CommandRunner) *TimezoneProbe {
	return &TimezoneProbe{
		runner:        runner,
		TimezoneFile:  "/etc/timezone",
		LocaltimeLink: "/etc/localtime",
	}
}

// Detect returns the first timezone found: timedatectl, /etc/timezone,
// the /etc/localtime symlink, then UTC.
func (p *TimezoneProbe) Detect(ctx context.Context) string {
	if output, err := p.runner.Run(ctx, "timedatectl", "show", "--property=Timezone", "--value"); err == nil {
		if tz := strings.TrimSpace(output); tz != "" {
			return tz
		}
	}

	if data, err := os.ReadFile(p.TimezoneFile); err == nil {
		if tz := strings.TrimSpace(string(data)); tz != "" {
			return tz
		}
	}

	if target, err := os.Readlink(p.LocaltimeLink); err == nil {
		if tz := zoneFromPath(target); tz != "" {
			return tz
		}
	}

	return DefaultTimezone
}

// zoneFromPath extracts Region/City from a .../zoneinfo/Region/City path
func zoneFromPath(target string) string {
	target = filepath.ToSlash(target)
	idx := strings.LastIndex(target, "zoneinfo/")
	if idx < 0 {
		return ""
	}
	return strings.TrimPrefix(target[idx+len("zoneinfo/"):], "posix/")
}
