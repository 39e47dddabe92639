package testsupport

import (
	"path/filepath"
	"testing"

	"sam/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.SettingsFile = filepath.Join(base, "config", "settings.json")
	cfgVal.Paths.Database = filepath.Join(base, "data", "attendance.db")
	cfgVal.Paths.ReportFile = filepath.Join(base, "reports", "SF2 Automated.xlsx")
	cfgVal.Paths.LateMarkerImage = filepath.Join(base, "data", "late.png")
	cfgVal.Paths.BackupDir = filepath.Join(base, "data", "backups")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Camera.JoinTimeoutSeconds = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithAPIToken sets the bearer token required by the HTTP API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithNtfyTopic points notifications at a topic URL (usually an httptest server).
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithoutHotplug disables the udev camera monitor.
func WithoutHotplug() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Camera.Hotplug = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
