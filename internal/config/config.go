package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	MusicDir       string `toml:"music_dir"`
	VideosDir      string `toml:"videos_dir"`
	MoviesDir      string `toml:"movies_dir"`
	DestinationDir string `toml:"destination_dir"`
	StateDir       string `toml:"state_dir"`
	LogDir         string `toml:"log_dir"`
}

// API contains configuration for the remote order service.
type API struct {
	BaseURL                string `toml:"base_url"`
	APIKey                 string `toml:"api_key"`
	TimeoutSeconds         int    `toml:"timeout_seconds"`
	MaxRetries             int    `toml:"max_retries"`
	RetryDelayMillis       int    `toml:"retry_delay_ms"`
	BreakerThreshold       int    `toml:"breaker_threshold"`
	BreakerCooldownSeconds int    `toml:"breaker_cooldown_seconds"`
	PollIntervalSeconds    int    `toml:"poll_interval_seconds"`
}

// Rules contains the default copy rules applied to incoming orders.
type Rules struct {
	MusicExtensions []string `toml:"music_extensions"`
	VideoExtensions []string `toml:"video_extensions"`
	MovieExtensions []string `toml:"movie_extensions"`
	MinSizeMB       float64  `toml:"min_size_mb"`
	FilterBySize    bool     `toml:"filter_by_size"`
	FuzzyEnabled    bool     `toml:"fuzzy_enabled"`
	FuzzyThreshold  float64  `toml:"fuzzy_threshold"`
	SkipDuplicates  bool     `toml:"skip_duplicates"`
	DryRun          bool     `toml:"dry_run"`
	FailFast        bool     `toml:"fail_fast"`
}

// Runner contains configuration for job execution.
type Runner struct {
	MaxConcurrentJobs int  `toml:"max_concurrent_jobs"`
	AutoStart         bool `toml:"auto_start"`
	VerifyCopies      bool `toml:"verify_copies"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for mediacopier.
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	Rules         Rules         `toml:"rules"`
	Runner        Runner        `toml:"runner"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mediacopier/config.toml")
}

// Load locates, parses, and validates a configuration file. An empty path
// uses the default location; a missing file at the default location yields
// the built-in defaults.
func Load(path string) (*Config, error) {
	usingDefault := false
	if strings.TrimSpace(path) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
		usingDefault = true
	} else {
		expanded, err := expandPath(path)
		if err != nil {
			return nil, err
		}
		path = expanded
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && usingDefault:
		// No config file: run on defaults plus environment overrides.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides lets environment variables take precedence for the
// credentials that deployments usually inject rather than write to disk.
func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("MEDIACOPIER_API_URL")); v != "" {
		c.API.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("MEDIACOPIER_API_KEY")); v != "" {
		c.API.APIKey = v
	}
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.MusicDir, err = expandPath(c.Paths.MusicDir); err != nil {
		return fmt.Errorf("paths.music_dir: %w", err)
	}
	if c.Paths.VideosDir, err = expandPath(c.Paths.VideosDir); err != nil {
		return fmt.Errorf("paths.videos_dir: %w", err)
	}
	if c.Paths.MoviesDir, err = expandPath(c.Paths.MoviesDir); err != nil {
		return fmt.Errorf("paths.movies_dir: %w", err)
	}
	if c.Paths.DestinationDir, err = expandPath(c.Paths.DestinationDir); err != nil {
		return fmt.Errorf("paths.destination_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	c.Rules.MusicExtensions = normalizeExtensions(c.Rules.MusicExtensions)
	c.Rules.VideoExtensions = normalizeExtensions(c.Rules.VideoExtensions)
	c.Rules.MovieExtensions = normalizeExtensions(c.Rules.MovieExtensions)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

// EnsureDirectories creates the state and log directories when missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ContentRoots maps product types to their configured content directories.
func (c *Config) ContentRoots() map[string]string {
	return map[string]string{
		"music":  c.Paths.MusicDir,
		"videos": c.Paths.VideosDir,
		"movies": c.Paths.MoviesDir,
	}
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, path[2:]), nil
	}
	return filepath.Clean(path), nil
}
