package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Permissions for files that may hold credentials
const (
	PrivateDirPerm  os.FileMode = 0700
	PrivateFilePerm os.FileMode = 0600
)

// FileSystem handles file system operations
type FileSystem struct {
	// admin runs privileged fallbacks; nil disables them
	admin CommandRunner
}

// NewFileSystem creates a new FileSystem instance
func NewFileSystem(admin CommandRunner) *FileSystem {
	return &FileSystem{admin: admin}
}

// EnsurePrivateDir creates path with 0700 and tightens an existing one
func (fs *FileSystem) EnsurePrivateDir(path string) error {
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return fmt.Errorf("%s exists but is not a directory", path)
	}

	if err := os.MkdirAll(path, PrivateDirPerm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	// MkdirAll leaves an existing directory's mode alone
	if err := os.Chmod(path, PrivateDirPerm); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	return nil
}

// WritePrivateFile atomically replaces path with content. The temp file is
// restricted to 0600 before any byte is written, so secrets are never
// readable by other users even briefly.
func (fs *FileSystem) WritePrivateFile(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath) // Cleanup on error

	if err := tmpFile.Chmod(PrivateFilePerm); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to set permissions on temp file: %w", err)
	}

	if _, err := tmpFile.Write(content); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to move file to %s: %w", path, err)
	}
	return nil
}

// WriteSystemFile installs content at a root-owned path such as an apt
// source list, using install(1) through the privileged runner.
func (fs *FileSystem) WriteSystemFile(ctx context.Context, path string, content []byte, perms os.FileMode) error {
	if fs.admin == nil {
		return fmt.Errorf("cannot write %s: no privileged runner", path)
	}

	tmpFile, err := os.CreateTemp("", "browser-setup-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(content); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	tmpFile.Close()

	mode := fmt.Sprintf("%04o", perms.Perm())
	output, err := fs.admin.Run(ctx, "install", "-m", mode, "-o", "root", "-g", "root", tmpPath, path)
	if err != nil {
		return fmt.Errorf("failed to install file to %s: %w\nOutput: %s", path, err, strings.TrimSpace(output))
	}
	return nil
}

// FileExists checks if a file exists
func (fs *FileSystem) FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		return !info.IsDir(), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check file %s: %w", path, err)
}

// ReadFile returns the content of path; a missing file yields os.ErrNotExist
func (fs *FileSystem) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// ResolveRealPath follows symlinks in the existing prefix of path. Missing
// trailing components are appended unchanged.
func ResolveRealPath(path string) (string, error) {
	cleaned := filepath.Clean(path)

	resolved, err := filepath.EvalSymlinks(cleaned)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	parent := filepath.Dir(cleaned)
	if parent == cleaned {
		return cleaned, nil
	}
	resolvedParent, err := ResolveRealPath(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(cleaned)), nil
}

// System trees whose contents are never removed
var protectedTrees = []string{
	"/bin",
	"/boot",
	"/dev",
	"/etc",
	"/lib",
	"/lib64",
	"/proc",
	"/sbin",
	"/sys",
	"/usr",
	"/var",
}

// Directories that hold user data; children may be removed, the directory itself may not
var protectedRoots = []string{"/", "/home", "/root", "/tmp"}

// checkRemovable refuses paths whose removal would damage the host
func checkRemovable(path string) error {
	if path == "" {
		return fmt.Errorf("refusing to remove empty path")
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("refusing to remove relative path: %s (must be absolute)", path)
	}

	resolved, err := ResolveRealPath(path)
	if err != nil {
		return err
	}

	for _, candidate := range []string{filepath.Clean(path), resolved} {
		for _, root := range protectedRoots {
			if candidate == root {
				return fmt.Errorf("refusing to remove critical system path: %s", path)
			}
		}
		for _, tree := range protectedTrees {
			if candidate == tree || strings.HasPrefix(candidate, tree+"/") {
				return fmt.Errorf("refusing to remove critical system path: %s", path)
			}
		}
		if home, err := os.UserHomeDir(); err == nil && candidate == filepath.Clean(home) {
			return fmt.Errorf("refusing to remove home directory: %s", path)
		}
	}
	return nil
}

// RemoveDirectory removes a directory and all its contents. A missing
// directory is not an error. Files the container created as another user
// are removed through the privileged runner.
func (fs *FileSystem) RemoveDirectory(ctx context.Context, path string) error {
	if err := checkRemovable(path); err != nil {
		return err
	}

	err := os.RemoveAll(path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrPermission) || fs.admin == nil {
		return fmt.Errorf("failed to remove directory %s: %w", path, err)
	}

	if output, err := fs.admin.Run(ctx, "rm", "-rf", "--", path); err != nil {
		return fmt.Errorf("failed to remove directory %s: %w\nOutput: %s", path, err, strings.TrimSpace(output))
	}
	return nil
}
