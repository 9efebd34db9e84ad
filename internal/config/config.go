// Package config assembles run configuration from defaults, an optional YAML
// file, the environment and command line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"lol-match-crawler/internal/riot"
	"lol-match-crawler/internal/storage"
)

// AppName is used for the XDG config directory.
const AppName = "lol-match-crawler"

const (
	DefaultRegion           = "americas"
	DefaultPlatform         = "na1"
	DefaultMatchesPerPlayer = 20
	DefaultWorkers          = 1
	DefaultKeyFile          = "key.txt"
	DefaultOutputDir        = "."

	// match-v5 refuses larger history pages
	maxMatchesPerPlayer = 100
	maxWorkers          = 20
)

var (
	regions = []string{"americas", "europe", "asia", "sea"}

	// EnvPaths are tried in order; the first .env found wins.
	EnvPaths = []string{".env", "../.env"}
)

// RetryConfig mirrors riot.RetryPolicy with YAML-friendly durations.
type RetryConfig struct {
	MaxAttempts         int    `yaml:"max_attempts"`
	BaseDelay           string `yaml:"base_delay"`
	MaxDelay            string `yaml:"max_delay"`
	MaxRateLimitRetries int    `yaml:"max_rate_limit_retries"`
}

// Config holds everything a run needs.
type Config struct {
	APIKey  string `yaml:"-"`
	KeyFile string `yaml:"key_file"`

	Region   string `yaml:"region"`
	Platform string `yaml:"platform"`

	Target           int      `yaml:"target"`
	MaxDepth         int      `yaml:"max_depth"`
	MatchesPerPlayer int      `yaml:"matches_per_player"`
	Seeds            []string `yaml:"seeds"`
	Queues           []int    `yaml:"queues"`
	AllowRemakes     bool     `yaml:"allow_remakes"`
	Workers          int      `yaml:"workers"`

	OutputDir string `yaml:"output_dir"`
	// Output overrides the generated file name when set.
	Output    string `yaml:"output"`
	Format    string `yaml:"format"`
	Compress  bool   `yaml:"compress"`
	SinkURL   string `yaml:"sink"`
	TursoAuth string `yaml:"-"`

	DiscordWebhook string `yaml:"discord_webhook"`
	CheckKey       bool   `yaml:"check_key"`
	Verbose        bool   `yaml:"verbose"`
	Quiet          bool   `yaml:"quiet"`

	// RateLimits in "requests:seconds" form, e.g. ["15:1", "90:120"].
	RateLimits []string    `yaml:"rate_limits"`
	Retry      RetryConfig `yaml:"retry"`
}

// Defaults returns a Config with every default applied. Target is left at
// zero: it must be supplied.
func Defaults() *Config {
	retry := riot.DefaultRetryPolicy()
	limits := make([]string, 0, len(riot.DefaultLimits))
	for _, l := range riot.DefaultLimits {
		limits = append(limits, l.String())
	}
	return &Config{
		KeyFile:          DefaultKeyFile,
		Region:           DefaultRegion,
		Platform:         DefaultPlatform,
		MatchesPerPlayer: DefaultMatchesPerPlayer,
		Queues:           []int{420},
		Workers:          DefaultWorkers,
		OutputDir:        DefaultOutputDir,
		Format:           string(storage.FormatCSV),
		RateLimits:       limits,
		Retry: RetryConfig{
			MaxAttempts:         retry.MaxAttempts,
			BaseDelay:           retry.BaseDelay.String(),
			MaxDelay:            retry.MaxDelay.String(),
			MaxRateLimitRetries: retry.MaxRateLimitRetries,
		},
	}
}

// DefaultConfigPath is $XDG_CONFIG_HOME/lol-match-crawler/config.yml.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yml")
}

// LoadDotEnv loads the first .env file found in paths and returns its path,
// or "" when none exists. Variables already set are not overridden.
func LoadDotEnv(paths ...string) string {
	for _, path := range paths {
		if err := godotenv.Load(path); err == nil {
			return path
		}
	}
	return ""
}

// Load builds a Config from defaults, the YAML file at path and the
// environment. An empty path falls back to DefaultConfigPath, which may be
// absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setString := func(dst *string, names ...string) {
		for _, name := range names {
			if v := strings.Trim(os.Getenv(name), "\""); v != "" {
				*dst = v
				return
			}
		}
	}
	setString(&c.APIKey, "RIOT_API_KEY", "RIOT-DEV-KEY")
	setString(&c.Region, "RIOT_REGION")
	setString(&c.Platform, "RIOT_PLATFORM")
	setString(&c.OutputDir, "OUTPUT_DIR")
	setString(&c.SinkURL, "SINK_URL")
	setString(&c.TursoAuth, "TURSO_AUTH_TOKEN")
	setString(&c.DiscordWebhook, "DISCORD_WEBHOOK_URL")
}

// ResolveKey reads the key file when no key came from the environment or
// flags. A missing key file is not an error here; Validate reports the
// missing key.
func (c *Config) ResolveKey() error {
	if c.APIKey != "" || c.KeyFile == "" {
		return nil
	}
	data, err := os.ReadFile(c.KeyFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read key file: %w", err)
	}
	c.APIKey = strings.TrimSpace(string(data))
	return nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, fmt.Errorf("no API key: set RIOT_API_KEY or put it in %s", c.KeyFile))
	}
	if c.Target <= 0 {
		errs = append(errs, fmt.Errorf("target must be a positive number of matches, got %d", c.Target))
	}
	if c.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("max depth must not be negative, got %d", c.MaxDepth))
	}
	if c.MatchesPerPlayer < 1 || c.MatchesPerPlayer > maxMatchesPerPlayer {
		errs = append(errs, fmt.Errorf("matches per player must be between 1 and %d, got %d", maxMatchesPerPlayer, c.MatchesPerPlayer))
	}
	if c.Workers < 1 || c.Workers > maxWorkers {
		errs = append(errs, fmt.Errorf("workers must be between 1 and %d, got %d", maxWorkers, c.Workers))
	}
	if !slices.Contains(regions, c.Region) {
		errs = append(errs, fmt.Errorf("unknown region %q (want one of %s)", c.Region, strings.Join(regions, ", ")))
	}
	if c.Platform == "" {
		errs = append(errs, errors.New("platform must not be empty"))
	}
	for _, q := range c.Queues {
		if q < 0 {
			errs = append(errs, fmt.Errorf("invalid queue id %d", q))
		}
	}
	if _, err := storage.ParseFormat(c.Format); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Limits(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.RetryPolicy(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Limits parses RateLimits.
func (c *Config) Limits() ([]riot.Limit, error) {
	limits, err := riot.ParseRateLimitHeader(strings.Join(c.RateLimits, ","))
	if err != nil {
		return nil, fmt.Errorf("invalid rate limits: %w", err)
	}
	if len(limits) == 0 {
		return nil, errors.New("at least one rate limit is required")
	}
	for _, l := range limits {
		if l.Requests <= 0 || l.Window <= 0 {
			return nil, fmt.Errorf("invalid rate limit %s", l)
		}
	}
	return limits, nil
}

// RetryPolicy converts Retry into the client's policy.
func (c *Config) RetryPolicy() (riot.RetryPolicy, error) {
	var p riot.RetryPolicy
	base, err := time.ParseDuration(c.Retry.BaseDelay)
	if err != nil {
		return p, fmt.Errorf("invalid retry base delay: %w", err)
	}
	maxDelay, err := time.ParseDuration(c.Retry.MaxDelay)
	if err != nil {
		return p, fmt.Errorf("invalid retry max delay: %w", err)
	}
	if c.Retry.MaxAttempts < 1 {
		return p, fmt.Errorf("retry attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.MaxRateLimitRetries < 0 {
		return p, fmt.Errorf("rate limit retries must not be negative, got %d", c.Retry.MaxRateLimitRetries)
	}
	return riot.RetryPolicy{
		MaxAttempts:         c.Retry.MaxAttempts,
		BaseDelay:           base,
		MaxDelay:            maxDelay,
		MaxRateLimitRetries: c.Retry.MaxRateLimitRetries,
	}, nil
}

// OutputPath is the file samples are written to.
func (c *Config) OutputPath(start time.Time) string {
	if c.Output != "" {
		return c.Output
	}
	return filepath.Join(c.OutputDir, storage.DefaultFileName(start, storage.Format(c.Format)))
}
