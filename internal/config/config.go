package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains file locations and the HTTP bind address.
type Paths struct {
	DataDir         string `toml:"data_dir"`
	LogDir          string `toml:"log_dir"`
	SettingsFile    string `toml:"settings_file"`
	Database        string `toml:"database"`
	ReportFile      string `toml:"report_file"`
	LateMarkerImage string `toml:"late_marker_image"`
	BackupDir       string `toml:"backup_dir"`
	APIBind         string `toml:"api_bind"`
	APIToken        string `toml:"api_token"`
}

// Camera contains capture device settings that are not user-facing settings.
type Camera struct {
	DevicePattern      string `toml:"device_pattern"`
	Width              int    `toml:"width"`
	Height             int    `toml:"height"`
	JoinTimeoutSeconds int    `toml:"join_timeout_seconds"`
	FrameStride        int    `toml:"frame_stride"`
	Hotplug            bool   `toml:"hotplug"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	LateArrivals   bool   `toml:"late_arrivals"`
	NewDay         bool   `toml:"new_day"`
	Reports        bool   `toml:"reports"`
	Errors         bool   `toml:"errors"`
}

// Workflow contains configuration for daemon timers.
type Workflow struct {
	RolloverInterval    int `toml:"rollover_interval"`
	BackupRetentionDays int `toml:"backup_retention_days"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates the process configuration of the attendance daemon.
//
// User-facing preferences (late cutoff, formats, camera index and so on) live in
// the settings file managed by the settings package; this file only covers
// deployment concerns:
//   - Paths: data, database, report and log locations plus the API bind address
//   - Camera: capture device pattern, resolution and loop tuning
//   - Notifications: ntfy push notification settings
//   - Workflow: rollover and backup timers
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Camera        Camera        `toml:"camera"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/sam/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("sam.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// The report directory is created on a best-effort basis because the report
// usually lives on a share that may be offline.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.DataDir,
		c.Paths.LogDir,
		c.Paths.BackupDir,
		filepath.Dir(c.Paths.SettingsFile),
		filepath.Dir(c.Paths.Database),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.ReportFile) != "" {
		_ = os.MkdirAll(filepath.Dir(c.Paths.ReportFile), 0o755)
	}
	return nil
}

// SocketPath returns the IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "sam.sock")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "sam.lock")
}

// PIDPath returns the daemon pid file.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.LogDir, "sam.pid")
}

// DevicePath renders the capture device path for a camera index.
func (c *Config) DevicePath(index int) string {
	return fmt.Sprintf(c.Camera.DevicePattern, index)
}

// JoinTimeout bounds how long a capture stop waits for the loop to exit.
func (c *Config) JoinTimeout() time.Duration {
	return time.Duration(c.Camera.JoinTimeoutSeconds) * time.Second
}

// RolloverInterval is the period of the day rollover check.
func (c *Config) RolloverInterval() time.Duration {
	return time.Duration(c.Workflow.RolloverInterval) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
