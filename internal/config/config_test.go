package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadExplicit(t *testing.T) {
	path := writeConfig(t, `
repository = "/srv/dumps"
backend = "cli"
create = "bare"

[identity]
name = "Backup Bot"
email = "bot@example.com"

[log]
level = "debug"
format = "json"

[transfer]
progress = true

[watch]
delay = "2s"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := Config{
		Repository: "/srv/dumps",
		Backend:    "cli",
		Create:     "bare",
		Identity:   Identity{Name: "Backup Bot", Email: "bot@example.com"},
		Log:        Log{Level: "debug", Format: "json"},
		Transfer:   Transfer{Progress: true},
		Watch:      Watch{Delay: 2 * time.Second},
	}
	if cfg != want {
		t.Fatalf("Load() = %+v, want %+v", cfg, want)
	}
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	cfg, err := Load(writeConfig(t, "backend = \"native\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Repository != "." || cfg.Log.Level != "info" || cfg.Watch.Delay != DefaultWatchDelay {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadAcceptsLibrarySpellings(t *testing.T) {
	tests := []struct {
		body    string
		backend string
		create  string
	}{
		{body: "backend = \"git\"\ncreate = \"non_bare\"\n", backend: "git", create: "non_bare"},
		{body: "backend = \"go-git\"\ncreate = \"true\"\n", backend: "go-git", create: "true"},
		{body: "backend = \"CLI\"\ncreate = \"false\"\n", backend: "CLI", create: "false"},
		{body: "create = \"nonbare\"\n", backend: "native", create: "nonbare"},
	}
	for _, tt := range tests {
		cfg, err := Load(writeConfig(t, tt.body))
		if err != nil {
			t.Fatalf("Load(%q) error = %v", tt.body, err)
		}
		if cfg.Backend != tt.backend || cfg.Create != tt.create {
			t.Fatalf("Load(%q) = backend %q, create %q", tt.body, cfg.Backend, cfg.Create)
		}
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "unknown_key", body: "repo = \"x\"\n", want: "unknown keys: repo"},
		{name: "bad_backend", body: "backend = \"svn\"\n", want: "backend"},
		{name: "bad_create", body: "create = \"maybe\"\n", want: "create"},
		{name: "half_identity", body: "[identity]\nname = \"x\"\n", want: "identity"},
		{name: "syntax", body: "backend = \n", want: "config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.toml")
	if _, err := Load(missing); err == nil {
		t.Fatal("explicit missing config must fail")
	}

	t.Setenv(EnvPath, "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() without any file error = %v", err)
	}
	if cfg != Default() {
		t.Fatalf("Load() = %+v, want defaults", cfg)
	}
}

func TestPathPrecedence(t *testing.T) {
	t.Setenv(EnvPath, "/from/env.toml")
	if got, required := Path("/explicit.toml"); got != "/explicit.toml" || !required {
		t.Fatalf("Path(explicit) = %q, %v", got, required)
	}
	if got, required := Path(""); got != "/from/env.toml" || !required {
		t.Fatalf("Path(env) = %q, %v", got, required)
	}
	if runtime.GOOS != "linux" {
		return
	}
	t.Setenv(EnvPath, "")
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	if got, required := Path(""); got != filepath.Join(xdg, "git-dump", "config.toml") || required {
		t.Fatalf("Path(xdg) = %q, %v", got, required)
	}
}
