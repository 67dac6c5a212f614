package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hylla/activitytask/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/journal.db")
	if cfg.Journal.Path != "/tmp/journal.db" || !cfg.Journal.Enabled {
		t.Fatalf("unexpected journal config %#v", cfg.Journal)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("unexpected log level %q", cfg.Logging.Level)
	}
	if cfg.Manifest.DefaultAffinity != DemoDefaultAffinity {
		t.Fatalf("unexpected default affinity %q", cfg.Manifest.DefaultAffinity)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestDefaultManifestIsDemo(t *testing.T) {
	descs, err := Default("/tmp/journal.db").Descriptors()
	if err != nil {
		t.Fatalf("Descriptors() error = %v", err)
	}
	if len(descs) != len(DemoActivities()) {
		t.Fatalf("expected demo manifest, got %d descriptors", len(descs))
	}
	byComponent := map[domain.ComponentID]domain.ActivityDescriptor{}
	for _, d := range descs {
		byComponent[d.Component] = d
	}
	checks := []struct {
		component domain.ComponentID
		mode      domain.LaunchMode
		affinity  string
	}{
		{"Main", domain.LaunchModeStandard, DemoDefaultAffinity},
		{"Standard2", domain.LaunchModeStandard, DemoTask2Affinity},
		{"SingleTop3", domain.LaunchModeSingleTop, DemoDefaultAffinity},
		{"SingleTask3", domain.LaunchModeSingleTask, DemoTask2Affinity},
		{"SingleInstance1", domain.LaunchModeSingleInstance, DemoDefaultAffinity},
	}
	for _, c := range checks {
		d, ok := byComponent[c.component]
		if !ok {
			t.Fatalf("missing %s", c.component)
		}
		if d.LaunchMode != c.mode || d.TaskAffinity != c.affinity {
			t.Fatalf("%s = %s/%s, want %s/%s", c.component, d.LaunchMode, d.TaskAffinity, c.mode, c.affinity)
		}
	}
	if !byComponent["Reparenting"].AllowTaskReparenting {
		t.Fatal("expected Reparenting to allow reparenting")
	}
	if !byComponent["FinishOnLaunch"].FinishesOnLaunchOf("SingleTask2") {
		t.Fatal("expected FinishOnLaunch triggered by SingleTask2")
	}
	if !byComponent["ClearOnLaunch"].ClearTaskOnRelaunch {
		t.Fatal("expected ClearOnLaunch to clear on relaunch")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	defaults := Default("/tmp/journal.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Journal.Path != defaults.Journal.Path {
		t.Fatalf("expected default journal path, got %q", cfg.Journal.Path)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[logging]
level = "debug"

[journal]
enabled = false

[server]
http = "0.0.0.0:9000"

[manifest]
default_affinity = "com.example.app"

[[activities]]
component = "Home"

[[activities]]
component = "Viewer"
launch_mode = "singleTask"
task_affinity = "com.example.viewer"

[[activities]]
component = "Splash"
finish_on_launch_of = ["Home"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path, Default("/tmp/journal.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "debug" || cfg.Journal.Enabled || cfg.Server.HTTP != "0.0.0.0:9000" {
		t.Fatalf("unexpected overrides %#v", cfg)
	}
	if cfg.Server.APIEndpoint != "/api/v1" {
		t.Fatalf("expected untouched default api endpoint, got %q", cfg.Server.APIEndpoint)
	}
	descs, err := cfg.Descriptors()
	if err != nil {
		t.Fatalf("Descriptors() error = %v", err)
	}
	if len(descs) != 3 {
		t.Fatalf("expected declared manifest only, got %d", len(descs))
	}
	if descs[0].TaskAffinity != "com.example.app" {
		t.Fatalf("expected default affinity, got %q", descs[0].TaskAffinity)
	}
	if descs[1].LaunchMode != domain.LaunchModeSingleTask || descs[1].TaskAffinity != "com.example.viewer" {
		t.Fatalf("unexpected viewer descriptor %#v", descs[1])
	}
}

func TestLoadRejectsInvalidManifest(t *testing.T) {
	cases := map[string]string{
		"bad mode": `
[[activities]]
component = "A"
launch_mode = "sometimes"
`,
		"duplicate": `
[[activities]]
component = "A"

[[activities]]
component = "A"
`,
		"unknown trigger": `
[[activities]]
component = "A"
finish_on_launch_of = ["Ghost"]
`,
		"bad level": `
[logging]
level = "loud"
`,
		"relative endpoint": `
[server]
api_endpoint = "api"
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			if _, err := Load(path, Default("/tmp/journal.db")); err == nil {
				t.Fatal("expected Load() error")
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("ATASK_LOG_LEVEL", "warn")
	t.Setenv("ATASK_JOURNAL_ENABLED", "F")
	t.Setenv("ATASK_LOG_DEV_FILE", "t")
	t.Setenv("ATASK_HTTP", "127.0.0.1:9999")
	cfg, err := Default("/tmp/journal.db").ApplyEnv(EnvPrefix)
	if err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.Logging.Level != "warn" || cfg.Journal.Enabled || cfg.Server.HTTP != "127.0.0.1:9999" {
		t.Fatalf("unexpected env overrides %#v", cfg)
	}
	if !cfg.Logging.DevFile.Enabled {
		t.Fatalf("expected dev file enabled from env, got %#v", cfg.Logging)
	}

	t.Setenv("ATASK_LOG_DEV_FILE", "maybe")
	if _, err := Default("/tmp/journal.db").ApplyEnv(EnvPrefix); err == nil || !strings.Contains(err.Error(), "LOG_DEV_FILE") {
		t.Fatalf("expected invalid boolean error, got %v", err)
	}
}

func TestApplyEnvUnsetBoolsKeepFileValues(t *testing.T) {
	defaults := Default("/tmp/journal.db")
	defaults.Logging.DevFile.Enabled = true
	cfg, err := defaults.ApplyEnv(EnvPrefix)
	if err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if !cfg.Logging.DevFile.Enabled || cfg.Journal.Enabled != defaults.Journal.Enabled {
		t.Fatalf("expected unset env to keep file values, got %#v", cfg)
	}
}

func TestLoadBootstrap(t *testing.T) {
	t.Setenv("ATASK_CONFIG", " /etc/atask.toml ")
	t.Setenv("ATASK_DEV_MODE", "true")
	b, err := LoadBootstrap(EnvPrefix)
	if err != nil {
		t.Fatalf("LoadBootstrap() error = %v", err)
	}
	if b.ConfigPath != "/etc/atask.toml" || !b.DevMode || b.AppName != "atask" {
		t.Fatalf("unexpected bootstrap %#v", b)
	}
}

func TestEnsureConfigDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b", "config.toml")
	if err := EnsureConfigDir(target); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(target)); err != nil {
		t.Fatalf("expected dir to exist, stat error %v", err)
	}
}
