// Package config loads codenav settings from an optional YAML file and
// CODENAV_* environment variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// EnvConfigPath names the config file when no --config flag is given.
const EnvConfigPath = "CODENAV_CONFIG"

type Config struct {
	RootMarkers []string `yaml:"root_markers" env:"CODENAV_ROOT_MARKERS" env-default:".git,.hg,.svn"`
	Storage     string   `yaml:"storage" env:"CODENAV_STORAGE" env-default:"cache"`
	CacheDir    string   `yaml:"cache_dir" env:"CODENAV_CACHE_DIR"`
	Gutentags   bool     `yaml:"gutentags" env:"CODENAV_GUTENTAGS"`
	MaxCount    int      `yaml:"max_count" env:"CODENAV_MAX_COUNT"`
	LogLevel    string   `yaml:"log_level" env:"CODENAV_LOG_LEVEL" env-default:"info"`

	Gtags    Gtags    `yaml:"gtags" env-prefix:"CODENAV_GTAGS_"`
	Rg       Rg       `yaml:"rg" env-prefix:"CODENAV_RG_"`
	Registry Registry `yaml:"registry" env-prefix:"CODENAV_REGISTRY_"`
	Daemon   Daemon   `yaml:"daemon" env-prefix:"CODENAV_DAEMON_"`
}

type Gtags struct {
	Global         string `yaml:"global" env:"GLOBAL" env-default:"global"`
	Gtags          string `yaml:"gtags" env:"BIN" env-default:"gtags"`
	Label          string `yaml:"label" env:"LABEL" env-default:"default"`
	Conf           string `yaml:"conf" env:"CONF"`
	AcceptDotfiles bool   `yaml:"accept_dotfiles" env:"ACCEPT_DOTFILES"`
	SkipUnreadable bool   `yaml:"skip_unreadable" env:"SKIP_UNREADABLE"`
	// SkipSymlink is empty (follow), "all", or a gtags type letter (f, d, a).
	SkipSymlink string `yaml:"skip_symlink" env:"SKIP_SYMLINK"`
	// Source selects the file list fed to gtags: gtags, walk or command.
	Source string `yaml:"source" env:"SOURCE" env-default:"gtags"`
	// FilesCommand maps a root marker (".git", ".hg") or "default" to a shell
	// command printing the files to index. Used with source: command.
	FilesCommand map[string]string `yaml:"files_command" env:"FILES_COMMAND"`
	LibPaths     []string          `yaml:"lib_paths" env:"LIB_PATHS"`
	PathStyle    string            `yaml:"path_style" env:"PATH_STYLE"`
}

type Rg struct {
	Bin string `yaml:"bin" env:"BIN" env-default:"rg"`
}

type Registry struct {
	// Backend is sqlite, bolt or none.
	Backend string `yaml:"backend" env:"BACKEND" env-default:"sqlite"`
	Path    string `yaml:"path" env:"PATH"`
}

type Daemon struct {
	Listen string `yaml:"listen" env:"LISTEN" env-default:"127.0.0.1:7788"`
}

var (
	storageModes   = []string{"cache", "project", "rootmarker"}
	sources        = []string{"gtags", "walk", "command"}
	backends       = []string{"sqlite", "bolt", "none"}
	pathStyles     = []string{"", "relative", "absolute", "shorter", "abslib", "through"}
	logLevels      = []string{"debug", "info", "warn", "error"}
	skipSymlinkSet = []string{"", "all", "f", "d", "a"}
)

// Load reads path (or $CODENAV_CONFIG) when set, then overlays the
// environment. Without a file only the environment and defaults apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	var cfg Config
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("read config env: %w", err)
		}
	} else {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	var cfg Config
	_ = cleanenv.ReadEnv(&cfg)
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.CacheDir == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			c.CacheDir = filepath.Join(dir, "codenav")
		} else {
			c.CacheDir = filepath.Join(os.TempDir(), "codenav")
		}
	}
	if c.Registry.Path == "" && c.Registry.Backend != "none" {
		name := "registry.db"
		if c.Registry.Backend == "bolt" {
			name = "registry.bolt"
		}
		c.Registry.Path = filepath.Join(c.CacheDir, name)
	}
	for i, p := range c.Gtags.LibPaths {
		c.Gtags.LibPaths[i] = expandHome(p)
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return &Error{Field: "config", Reason: "is nil"}
	}
	if len(c.RootMarkers) == 0 {
		return &Error{Field: "root_markers", Reason: "at least one marker is required"}
	}
	checks := []struct {
		field string
		value string
		allow []string
	}{
		{"storage", c.Storage, storageModes},
		{"gtags.source", c.Gtags.Source, sources},
		{"registry.backend", c.Registry.Backend, backends},
		{"gtags.path_style", c.Gtags.PathStyle, pathStyles},
		{"log_level", strings.ToLower(c.LogLevel), logLevels},
		{"gtags.skip_symlink", c.Gtags.SkipSymlink, skipSymlinkSet},
	}
	for _, ch := range checks {
		if !slices.Contains(ch.allow, ch.value) {
			return &Error{Field: ch.field, Value: ch.value, Reason: "must be one of " + strings.Join(nonEmpty(ch.allow), ", ")}
		}
	}
	if c.MaxCount < 0 {
		return &Error{Field: "max_count", Value: fmt.Sprint(c.MaxCount), Reason: "must not be negative"}
	}
	if c.Gtags.Source == "command" && len(c.Gtags.FilesCommand) == 0 {
		return &Error{Field: "gtags.files_command", Reason: "required when gtags.source is command"}
	}
	return nil
}

// NewLogger builds the text logger used by the binaries.
func NewLogger(level string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
