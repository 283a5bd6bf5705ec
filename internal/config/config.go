// Package config manages the installer's answers file: a key=value file in
// the operator's home directory that remembers non-secret choices between
// runs. Values are read through viper so every key can be overridden by an
// environment variable of the same name. All operations are safe for
// concurrent use.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

const fileName = ".browser-setup.conf"

// Config manages installer configuration with thread-safe operations
type Config struct {
	filePath string
	v        *viper.Viper
	data     map[string]string // values persisted in the file only
	loaded   bool
	mu       sync.RWMutex
}

// DefaultPath returns the answers file location in the user's home directory
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, fileName)
}

// New creates a new Config instance. An empty filePath selects DefaultPath.
func New(filePath string) *Config {
	if filePath == "" {
		filePath = DefaultPath()
	}

	return &Config{
		filePath: filePath,
		v:        newViper(),
		data:     make(map[string]string),
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("env")
	for _, key := range Keys {
		_ = v.BindEnv(key)
	}
	return v
}

// ensureLoaded loads configuration data from disk once. Callers must hold c.mu.
func (c *Config) ensureLoaded() error {
	if c.loaded {
		return nil
	}
	return c.load()
}

// Load reads configuration from file
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load()
}

func (c *Config) load() error {
	// A missing file is fine, it is created on first save
	if _, err := os.Stat(c.filePath); os.IsNotExist(err) {
		c.loaded = true
		return nil
	}

	file := viper.New()
	file.SetConfigFile(c.filePath)
	file.SetConfigType("env")
	if err := file.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", c.filePath, err)
	}

	for _, key := range file.AllKeys() {
		c.data[strings.ToUpper(key)] = file.GetString(key)
	}
	if err := c.refresh(); err != nil {
		return err
	}

	c.loaded = true
	return nil
}

// refresh rebuilds the viper instance from the persisted values. File values
// sit in the config layer, below the bound environment variables.
func (c *Config) refresh() error {
	v := newViper()
	values := make(map[string]any, len(c.data))
	for key, value := range c.data {
		values[key] = value
	}
	if err := v.MergeConfigMap(values); err != nil {
		return fmt.Errorf("failed to merge config values: %w", err)
	}
	c.v = v
	return nil
}

// Save writes configuration to file using atomic write pattern
func (c *Config) save() error {
	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, fileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath) // Cleanup on error

	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to set permissions on temp file: %w", err)
	}

	fmt.Fprintln(tmpFile, "# browser-setup answers (no secrets are stored here)")
	fmt.Fprintf(tmpFile, "# Updated: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintln(tmpFile, "")

	keys := make([]string, 0, len(c.data))
	for key := range c.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(tmpFile, "%s=%s\n", key, c.data[key])
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, c.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file to config: %w", err)
	}

	return nil
}

// Get retrieves a configuration value, honouring environment overrides
func (c *Config) Get(key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoaded(); err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	if !c.v.IsSet(key) {
		return "", fmt.Errorf("config key not found: %s", key)
	}
	return c.v.GetString(key), nil
}

// GetOrDefault retrieves a value or returns default if not found.
// Environment and file values win, then the Defaults table, then defaultValue.
func (c *Config) GetOrDefault(key, defaultValue string) string {
	if value, err := c.Get(key); err == nil && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	if tableDefault, exists := Defaults[key]; exists {
		return tableDefault
	}
	return defaultValue
}

// GetInt retrieves an integer value, falling back when unset or malformed
func (c *Config) GetInt(key string, defaultValue int) int {
	raw := c.GetOrDefault(key, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return n
}

// SetMany stores several values with a single write. The environment still
// overrides what is stored.
func (c *Config) SetMany(values map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoaded(); err != nil {
		return fmt.Errorf("failed to load existing config before set: %w", err)
	}

	// Newlines would corrupt the key=value format
	strip := strings.NewReplacer("\n", "", "\r", "")
	for key, value := range values {
		c.data[key] = strip.Replace(value)
	}
	if err := c.refresh(); err != nil {
		return err
	}
	return c.save()
}

// FilePath returns the configuration file path
func (c *Config) FilePath() string {
	return c.filePath
}
