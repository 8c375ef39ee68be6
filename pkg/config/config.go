package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"fedbuild/pkg/federation"
	"fedbuild/pkg/utils"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type Format string

const (
	FormatESM  Format = "esm"
	FormatCJS  Format = "cjs"
	FormatIIFE Format = "iife"
)

type Platform string

const (
	PlatformBrowser Platform = "browser"
	PlatformNode    Platform = "node"
	PlatformNeutral Platform = "neutral"
)

type Config struct {
	Federation     federation.Config `json:"federation"`
	Build          BuildConfig       `json:"build"`
	Fetch          FetchConfig       `json:"fetch"`
	UnexposedLoad  string            `json:"unexposed_load,omitempty"`
	LogBuildConfig bool              `json:"log_build_config,omitempty"`
}

type BuildConfig struct {
	EntryPoints []string `json:"entry_points"`
	Outdir      string   `json:"outdir,omitempty"`
	Outfile     string   `json:"outfile,omitempty"`
	Format      Format   `json:"format,omitempty"`
	Platform    Platform `json:"platform,omitempty"`
	Bundle      *bool    `json:"bundle,omitempty"`
	Minify      bool     `json:"minify,omitempty"`
	Write       *bool    `json:"write,omitempty"`
}

type FetchConfig struct {
	Timeout       string `json:"timeout,omitempty"`
	RetryCount    int    `json:"retry_count,omitempty"`
	MaxModuleSize string `json:"max_module_size,omitempty"`
}

// DefaultOutdir is used when neither outdir nor outfile is configured.
const DefaultOutdir = "dist"

// Default returns a config with no federation entries.
func Default() *Config {
	return &Config{
		Build: BuildConfig{
			Format:   FormatESM,
			Platform: PlatformBrowser,
		},
		Fetch: FetchConfig{
			Timeout: federation.DefaultFetchTimeout.String(),
		},
		UnexposedLoad: string(federation.UnexposedDecline),
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}

	// Relative entry points are relative to the config file.
	base := filepath.Dir(path)
	for i, entry := range cfg.Build.EntryPoints {
		if !filepath.IsAbs(entry) {
			cfg.Build.EntryPoints[i] = filepath.Join(base, entry)
		}
	}

	return cfg, nil
}

// ParseConfig decodes a config document on top of Default.
func ParseConfig(data []byte) (*Config, error) {
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv returns Default with environment overrides applied.
func LoadFromEnv() (*Config, error) {
	cfg := Default()
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any FEDBUILD_* variables that are set.
func ApplyEnv(cfg *Config) error {
	cfg.Build.Outdir = getEnv("FEDBUILD_OUTDIR", cfg.Build.Outdir)
	cfg.Fetch.Timeout = getEnv("FEDBUILD_FETCH_TIMEOUT", cfg.Fetch.Timeout)
	cfg.Fetch.MaxModuleSize = getEnv("FEDBUILD_MAX_MODULE_SIZE", cfg.Fetch.MaxModuleSize)
	cfg.UnexposedLoad = getEnv("FEDBUILD_UNEXPOSED_LOAD", cfg.UnexposedLoad)

	if retries := os.Getenv("FEDBUILD_RETRY_COUNT"); retries != "" {
		n, err := strconv.Atoi(retries)
		if err != nil {
			return fmt.Errorf("invalid FEDBUILD_RETRY_COUNT: %w", err)
		}
		cfg.Fetch.RetryCount = n
	}

	return cfg.Validate()
}

// Validate checks build settings only. Federation entries are passed
// through untouched; a bad URL fails when the build fetches it.
func (c *Config) Validate() error {
	switch c.Build.Format {
	case "", FormatESM, FormatCJS, FormatIIFE:
	default:
		return fmt.Errorf("unsupported format %q (expected esm, cjs or iife)", c.Build.Format)
	}

	switch c.Build.Platform {
	case "", PlatformBrowser, PlatformNode, PlatformNeutral:
	default:
		return fmt.Errorf("unsupported platform %q (expected browser, node or neutral)", c.Build.Platform)
	}

	if c.Build.Outdir != "" && c.Build.Outfile != "" {
		return fmt.Errorf("outdir and outfile are mutually exclusive")
	}

	if _, err := federation.ParseUnexposedLoad(c.UnexposedLoad); err != nil {
		return err
	}

	if _, err := c.FetchTimeout(); err != nil {
		return err
	}

	if c.Fetch.RetryCount < 0 {
		return fmt.Errorf("retry_count must not be negative")
	}

	if _, err := utils.ParseDataSize(c.Fetch.MaxModuleSize); err != nil {
		return fmt.Errorf("invalid max_module_size: %w", err)
	}

	return nil
}

// FetchTimeout parses the fetch timeout. Empty means the default; "0"
// disables the timeout.
func (c *Config) FetchTimeout() (time.Duration, error) {
	if strings.TrimSpace(c.Fetch.Timeout) == "" {
		return federation.DefaultFetchTimeout, nil
	}
	if c.Fetch.Timeout == "0" {
		return 0, nil
	}

	d, err := time.ParseDuration(c.Fetch.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid fetch timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("fetch timeout must not be negative")
	}
	return d, nil
}

// OutputDir returns the directory build artifacts land in.
func (b BuildConfig) OutputDir() string {
	switch {
	case b.Outdir != "":
		return b.Outdir
	case b.Outfile != "":
		return filepath.Dir(b.Outfile)
	default:
		return DefaultOutdir
	}
}

// BundleEnabled reports whether dependencies are bundled (default true).
func (b BuildConfig) BundleEnabled() bool {
	return b.Bundle == nil || *b.Bundle
}

// WriteEnabled reports whether output goes to disk (default true).
func (b BuildConfig) WriteEnabled() bool {
	return b.Write == nil || *b.Write
}

// PluginOptions converts the config into federation plugin options.
func (c *Config) PluginOptions(logger *zap.Logger, registry prometheus.Registerer) ([]federation.Option, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout, err := c.FetchTimeout()
	if err != nil {
		return nil, err
	}

	maxSize, err := utils.ParseDataSize(c.Fetch.MaxModuleSize)
	if err != nil {
		return nil, fmt.Errorf("invalid max_module_size: %w", err)
	}

	policy, err := federation.ParseUnexposedLoad(c.UnexposedLoad)
	if err != nil {
		return nil, err
	}

	fetcherOpts := []federation.FetcherOption{
		federation.WithFetchLogger(logger),
		federation.WithFetchTimeout(timeout),
		federation.WithMaxModuleSize(maxSize),
	}
	if c.Fetch.RetryCount > 0 {
		fetcherOpts = append(fetcherOpts, federation.WithRetry(c.Fetch.RetryCount, 100*time.Millisecond, 5*time.Second))
	}

	return []federation.Option{
		federation.WithLogger(logger),
		federation.WithRegistry(registry),
		federation.WithFetcher(federation.NewHTTPFetcher(fetcherOpts...)),
		federation.WithUnexposedLoad(policy),
		federation.WithBuildConfigLogging(c.LogBuildConfig),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
