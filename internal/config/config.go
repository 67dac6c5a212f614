package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"
)

// Config is the on-disk TOML configuration of the engine host.
type Config struct {
	Logging    LoggingConfig    `toml:"logging"`
	Journal    JournalConfig    `toml:"journal"`
	Server     ServerConfig     `toml:"server"`
	Engine     EngineConfig     `toml:"engine"`
	Manifest   ManifestConfig   `toml:"manifest"`
	Activities []ActivityConfig `toml:"activities"`
}

// LoggingConfig holds log level and dev-file sink settings.
type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

// DevFileConfig controls the local logfmt dev log.
type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// JournalConfig locates the sqlite lifecycle journal.
type JournalConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// ServerConfig holds the serve bind address and endpoint paths.
type ServerConfig struct {
	HTTP            string `toml:"http"`
	APIEndpoint     string `toml:"api_endpoint"`
	MCPEndpoint     string `toml:"mcp_endpoint"`
	MetricsEndpoint string `toml:"metrics_endpoint"`
}

// EngineConfig tunes event fan-out and caller-side waits.
type EngineConfig struct {
	EventBuffer    int `toml:"event_buffer"`
	PollIntervalMS int `toml:"poll_interval_ms"`
	WaitTimeoutMS  int `toml:"wait_timeout_ms"`
}

// ManifestConfig holds manifest-wide defaults.
type ManifestConfig struct {
	DefaultAffinity string `toml:"default_affinity"`
}

// ActivityConfig declares one component of the manifest.
type ActivityConfig struct {
	Component            string   `toml:"component"`
	Label                string   `toml:"label"`
	LaunchMode           string   `toml:"launch_mode"`
	TaskAffinity         string   `toml:"task_affinity"`
	AllowTaskReparenting bool     `toml:"allow_task_reparenting"`
	FinishOnLaunchOf     []string `toml:"finish_on_launch_of"`
	ClearTaskOnRelaunch  bool     `toml:"clear_task_on_relaunch"`
}

// Default returns the built-in configuration for journalPath.
func Default(journalPath string) Config {
	return Config{
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: false,
			},
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    journalPath,
		},
		Server: ServerConfig{
			HTTP:            "127.0.0.1:7311",
			APIEndpoint:     "/api/v1",
			MCPEndpoint:     "/mcp",
			MetricsEndpoint: "/metrics",
		},
		Engine: EngineConfig{
			EventBuffer:    256,
			PollIntervalMS: 50,
			WaitTimeoutMS:  5000,
		},
		Manifest: ManifestConfig{
			DefaultAffinity: DemoDefaultAffinity,
		},
	}
}

// Load reads path over defaults. A missing or empty file yields defaults.
func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks every section and the declared manifest.
func (c Config) Validate() error {
	if _, err := log.ParseLevel(strings.TrimSpace(strings.ToLower(c.Logging.Level))); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	if c.Journal.Enabled && strings.TrimSpace(c.Journal.Path) == "" {
		return errors.New("journal.path is required when the journal is enabled")
	}
	if strings.TrimSpace(c.Server.HTTP) == "" {
		return errors.New("server.http is required")
	}
	for name, endpoint := range map[string]string{
		"server.api_endpoint":     c.Server.APIEndpoint,
		"server.mcp_endpoint":     c.Server.MCPEndpoint,
		"server.metrics_endpoint": c.Server.MetricsEndpoint,
	} {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" && !strings.HasPrefix(endpoint, "/") {
			return fmt.Errorf("%s must start with /: %q", name, endpoint)
		}
	}
	if c.Engine.EventBuffer < 0 {
		return fmt.Errorf("engine.event_buffer must be >= 0")
	}
	if c.Engine.PollIntervalMS < 0 || c.Engine.WaitTimeoutMS < 0 {
		return fmt.Errorf("engine wait settings must be >= 0")
	}
	if strings.TrimSpace(c.Manifest.DefaultAffinity) == "" {
		return errors.New("manifest.default_affinity is required")
	}
	if _, err := c.Descriptors(); err != nil {
		return err
	}
	return nil
}

// EnsureConfigDir creates the parent directory of path.
func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
