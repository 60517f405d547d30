// Package config loads the git-dump TOML configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/toy/git-dump/dump"
	"github.com/toy/git-dump/dump/backend"
)

// EnvPath names the environment variable that points at a config file.
const EnvPath = "GIT_DUMP_CONFIG"

const DefaultWatchDelay = 350 * time.Millisecond

type Config struct {
	Repository string   `toml:"repository"`
	Backend    string   `toml:"backend"`
	Create     string   `toml:"create"`
	Identity   Identity `toml:"identity"`
	Log        Log      `toml:"log"`
	Transfer   Transfer `toml:"transfer"`
	Watch      Watch    `toml:"watch"`
}

type Identity struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type Transfer struct {
	Progress bool `toml:"progress"`
}

type Watch struct {
	Delay time.Duration `toml:"delay"`
}

// Default is the configuration used when no file exists.
func Default() Config {
	return Config{
		Repository: ".",
		Backend:    "native",
		Create:     "none",
		Log:        Log{Level: "info", Format: "text"},
		Watch:      Watch{Delay: DefaultWatchDelay},
	}
}

// Path resolves which config file to read. explicit wins, then $GIT_DUMP_CONFIG, then
// git-dump/config.toml under the user config directory. required is false only for the last.
func Path(explicit string) (path string, required bool) {
	if explicit != "" {
		return explicit, true
	}
	if env := os.Getenv(EnvPath); env != "" {
		return env, true
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", false
	}
	return filepath.Join(dir, "git-dump", "config.toml"), false
}

// Load reads the config file chosen by Path(explicit) over Default().
func Load(explicit string) (Config, error) {
	path, required := Path(explicit)
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	err := cfg.decodeFile(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return cfg, nil
	}
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		return fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

// Validate checks the enumerated settings.
func (c Config) Validate() error {
	if _, err := backend.ParseKind(c.Backend); err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	if _, err := dump.ParseCreateMode(c.Create); err != nil {
		return fmt.Errorf("create: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format: unknown value %q", c.Log.Format)
	}
	if (c.Identity.Name == "") != (c.Identity.Email == "") {
		return errors.New("identity: name and email must be set together")
	}
	if c.Watch.Delay < 0 {
		return fmt.Errorf("watch.delay: negative duration %s", c.Watch.Delay)
	}
	return nil
}
