package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const ConfigFile = "pyscope.toml"

type Config struct {
	SearchPaths []string        `toml:"search_paths"`
	Bootstrap   BootstrapConfig `toml:"bootstrap"`
	Server      ServerConfig    `toml:"server"`
	Watch       WatchConfig     `toml:"watch"`
}

// BootstrapConfig selects the files sent to a language server before it
// is initialized. Patterns are matched against slash-separated paths
// relative to a search path.
type BootstrapConfig struct {
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`
}

type ServerConfig struct {
	// Command starts an external language server. When empty the
	// in-process server is used.
	Command                 []string      `toml:"command"`
	RootURI                 string        `toml:"root_uri"`
	LanguageID              string        `toml:"language_id"`
	RequestTimeout          time.Duration `toml:"request_timeout"`
	ChangeDelay             time.Duration `toml:"change_delay"`
	InitializeTimeoutFactor int           `toml:"initialize_timeout_factor"`
}

type WatchConfig struct {
	Debounce time.Duration `toml:"debounce"`
	// Rate is the number of re-analyses allowed per second.
	Rate float64 `toml:"rate"`
}

// LoadConfig reads path, applies defaults and PYSCOPE_* environment
// overrides, and validates the result. A missing file yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if len(cfg.SearchPaths) == 0 {
		cfg.SearchPaths = []string{"."}
	}
	if len(cfg.Bootstrap.Include) == 0 {
		cfg.Bootstrap.Include = []string{"**.py", "**.pyi"}
	}
	if len(cfg.Bootstrap.Exclude) == 0 {
		cfg.Bootstrap.Exclude = []string{".*", "**/.*", "**/__pycache__", "__pycache__"}
	}
	if strings.TrimSpace(cfg.Server.LanguageID) == "" {
		cfg.Server.LanguageID = "python"
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 10 * time.Second
	}
	if cfg.Server.ChangeDelay == 0 {
		cfg.Server.ChangeDelay = 500 * time.Millisecond
	}
	if cfg.Server.InitializeTimeoutFactor == 0 {
		cfg.Server.InitializeTimeoutFactor = 3
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 200 * time.Millisecond
	}
	if cfg.Watch.Rate == 0 {
		cfg.Watch.Rate = 5
	}
}

func applyEnvOverrides(cfg *Config) {
	if val, ok := os.LookupEnv("PYSCOPE_SEARCH_PATHS"); ok {
		cfg.SearchPaths = filepath.SplitList(val)
		log.Debugf("env override PYSCOPE_SEARCH_PATHS=%s", val)
	}
	if val, ok := os.LookupEnv("PYSCOPE_SERVER_COMMAND"); ok {
		cfg.Server.Command = strings.Fields(val)
		log.Debugf("env override PYSCOPE_SERVER_COMMAND=%s", val)
	}
	setEnvString(&cfg.Server.RootURI, "PYSCOPE_ROOT_URI")
	setEnvString(&cfg.Server.LanguageID, "PYSCOPE_LANGUAGE_ID")
	setEnvDuration(&cfg.Server.RequestTimeout, "PYSCOPE_REQUEST_TIMEOUT")
	setEnvDuration(&cfg.Server.ChangeDelay, "PYSCOPE_CHANGE_DELAY")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		log.Debugf("env override %s=%s", key, val)
		*target = val
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Warningf("ignoring %s=%q: %s", key, val, err)
			return
		}
		log.Debugf("env override %s=%s", key, val)
		*target = d
	}
}

func (c *Config) Validate() error {
	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("server.request_timeout must not be negative, got %s", c.Server.RequestTimeout)
	}
	if c.Server.ChangeDelay < 0 {
		return fmt.Errorf("server.change_delay must not be negative, got %s", c.Server.ChangeDelay)
	}
	if c.Server.InitializeTimeoutFactor < 1 {
		return fmt.Errorf("server.initialize_timeout_factor must be at least 1, got %d", c.Server.InitializeTimeoutFactor)
	}
	if c.Watch.Rate <= 0 {
		return fmt.Errorf("watch.rate must be positive, got %g", c.Watch.Rate)
	}
	if _, err := compileGlobs(c.Bootstrap.Include); err != nil {
		return fmt.Errorf("bootstrap.include: %w", err)
	}
	if _, err := compileGlobs(c.Bootstrap.Exclude); err != nil {
		return fmt.Errorf("bootstrap.exclude: %w", err)
	}
	return nil
}
