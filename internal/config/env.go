package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ATASK"

// Bootstrap holds settings read from the environment before any file is loaded.
type Bootstrap struct {
	ConfigPath string `envconfig:"CONFIG"`
	AppName    string `envconfig:"APP_NAME" default:"atask"`
	DevMode    bool   `envconfig:"DEV_MODE" default:"false"`
}

// Overrides holds environment values applied on top of the loaded file.
type Overrides struct {
	LogLevel       string `envconfig:"LOG_LEVEL"`
	LogDevFile     *bool  `envconfig:"LOG_DEV_FILE"`
	JournalPath    string `envconfig:"JOURNAL_PATH"`
	JournalEnabled *bool  `envconfig:"JOURNAL_ENABLED"`
	HTTP           string `envconfig:"HTTP"`
}

// LoadBootstrap reads bootstrap settings for prefix.
func LoadBootstrap(prefix string) (Bootstrap, error) {
	var b Bootstrap
	if err := envconfig.Process(prefix, &b); err != nil {
		return Bootstrap{}, fmt.Errorf("read bootstrap env: %w", err)
	}
	b.ConfigPath = strings.TrimSpace(b.ConfigPath)
	b.AppName = strings.TrimSpace(b.AppName)
	return b, nil
}

// ApplyEnv overlays environment overrides for prefix and revalidates.
func (c Config) ApplyEnv(prefix string) (Config, error) {
	var o Overrides
	if err := envconfig.Process(prefix, &o); err != nil {
		return Config{}, fmt.Errorf("read env overrides: %w", err)
	}
	if v := strings.TrimSpace(o.LogLevel); v != "" {
		c.Logging.Level = v
	}
	if o.LogDevFile != nil {
		c.Logging.DevFile.Enabled = *o.LogDevFile
	}
	if v := strings.TrimSpace(o.JournalPath); v != "" {
		c.Journal.Path = v
	}
	if o.JournalEnabled != nil {
		c.Journal.Enabled = *o.JournalEnabled
	}
	if v := strings.TrimSpace(o.HTTP); v != "" {
		c.Server.HTTP = v
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
