package platform

import (
	"path/filepath"
	"testing"
)

func TestPathsFor(t *testing.T) {
	cases := []struct {
		name        string
		goos        string
		env         map[string]string
		configDir   string
		dataDir     string
		wantConfig  string
		wantJournal string
	}{
		{
			name:        "linux with xdg",
			goos:        "linux",
			env:         map[string]string{"XDG_CONFIG_HOME": "/xdg/config", "XDG_DATA_HOME": "/xdg/data"},
			configDir:   "/fallback/config",
			dataDir:     "/fallback/data",
			wantConfig:  filepath.Join("/xdg/config", "atask", "config.toml"),
			wantJournal: filepath.Join("/xdg/data", "atask", "journal.db"),
		},
		{
			name:        "linux without xdg",
			goos:        "linux",
			env:         map[string]string{},
			configDir:   "/home/me/.config",
			dataDir:     "/home/me/.local/share",
			wantConfig:  filepath.Join("/home/me/.config", "atask", "config.toml"),
			wantJournal: filepath.Join("/home/me/.local/share", "atask", "journal.db"),
		},
		{
			name:        "windows app data",
			goos:        "windows",
			env:         map[string]string{"APPDATA": `C:\Roaming`, "LOCALAPPDATA": `C:\Local`},
			configDir:   `C:\fallback\config`,
			dataDir:     `C:\fallback\data`,
			wantConfig:  filepath.Join(`C:\Roaming`, "atask", "config.toml"),
			wantJournal: filepath.Join(`C:\Local`, "atask", "journal.db"),
		},
		{
			name:        "darwin ignores xdg",
			goos:        "darwin",
			env:         map[string]string{"XDG_CONFIG_HOME": "/ignored"},
			configDir:   "/Users/me/Library/Application Support",
			dataDir:     "/Users/me/Library/Application Support",
			wantConfig:  filepath.Join("/Users/me/Library/Application Support", "atask", "config.toml"),
			wantJournal: filepath.Join("/Users/me/Library/Application Support", "atask", "journal.db"),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := PathsFor(tc.goos, tc.env, tc.configDir, tc.dataDir, "atask")
			if err != nil {
				t.Fatalf("PathsFor() error = %v", err)
			}
			if p.ConfigPath != tc.wantConfig {
				t.Fatalf("unexpected config path %q", p.ConfigPath)
			}
			if p.JournalPath != tc.wantJournal {
				t.Fatalf("unexpected journal path %q", p.JournalPath)
			}
			if p.ScenarioDir != filepath.Join(filepath.Dir(p.ConfigPath), "scenarios") {
				t.Fatalf("unexpected scenario dir %q", p.ScenarioDir)
			}
			if p.LogDir != filepath.Join(p.DataDir, "logs") {
				t.Fatalf("unexpected log dir %q", p.LogDir)
			}
		})
	}
}

func TestPathsForRejectsEmptyInputs(t *testing.T) {
	if _, err := PathsFor("darwin", nil, "", "/tmp/data", "atask"); err == nil {
		t.Fatal("expected error for empty dirs")
	}
	if _, err := PathsFor("linux", nil, "/cfg", "/data", "  "); err == nil {
		t.Fatal("expected error for empty app name")
	}
}

func TestDefaultPathsWithOptionsDevMode(t *testing.T) {
	p, err := DefaultPathsWithOptions(Options{DevMode: true})
	if err != nil {
		t.Fatalf("DefaultPathsWithOptions() error = %v", err)
	}
	if filepath.Base(filepath.Dir(p.ConfigPath)) != "atask-dev" {
		t.Fatalf("expected dev config dir suffix, got %q", p.ConfigPath)
	}
	if filepath.Base(p.DataDir) != "atask-dev" {
		t.Fatalf("expected dev data dir, got %q", p.DataDir)
	}
}
