package federation

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// UnexposedLoad selects what the load hook does with modules that are not
// listed in Exposes.
type UnexposedLoad string

const (
	// UnexposedDecline leaves the module to the host loader.
	UnexposedDecline UnexposedLoad = "decline"
	// UnexposedEmpty replaces the module with empty JavaScript. Every
	// unexposed module that reaches the hook loses its contents.
	UnexposedEmpty UnexposedLoad = "empty"
)

// ParseUnexposedLoad parses a policy name. An empty string means decline.
func ParseUnexposedLoad(s string) (UnexposedLoad, error) {
	switch UnexposedLoad(strings.ToLower(strings.TrimSpace(s))) {
	case "", UnexposedDecline:
		return UnexposedDecline, nil
	case UnexposedEmpty:
		return UnexposedEmpty, nil
	default:
		return "", fmt.Errorf("unknown unexposed load policy %q (expected %q or %q)", s, UnexposedDecline, UnexposedEmpty)
	}
}

// Plugin wires module federation into a host build. It holds only its
// configuration; hooks share no mutable state.
type Plugin struct {
	config    Config
	fetcher   Fetcher
	logger    *zap.Logger
	metrics   *Metrics
	unexposed UnexposedLoad
	logConfig bool
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithFetcher replaces the default HTTPFetcher.
func WithFetcher(f Fetcher) Option {
	return func(p *Plugin) {
		if f != nil {
			p.fetcher = f
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Plugin) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRegistry registers the plugin metrics on registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(p *Plugin) {
		p.metrics = NewMetrics(registry)
	}
}

// WithUnexposedLoad sets the policy for modules missing from Exposes.
func WithUnexposedLoad(policy UnexposedLoad) Option {
	return func(p *Plugin) {
		p.unexposed = policy
	}
}

// WithBuildConfigLogging logs the host build configuration during Setup.
func WithBuildConfigLogging(enabled bool) Option {
	return func(p *Plugin) {
		p.logConfig = enabled
	}
}

// New creates a plugin for cfg. cfg is copied; later changes to the caller's
// maps do not affect the build.
func New(cfg Config, opts ...Option) *Plugin {
	p := &Plugin{
		config:    cfg.Clone(),
		logger:    zap.NewNop(),
		unexposed: UnexposedDecline,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.fetcher == nil {
		p.fetcher = NewHTTPFetcher(WithFetchLogger(p.logger))
	}
	if p.metrics == nil {
		p.metrics = NewMetrics(nil)
	}
	return p
}

// Name returns the plugin name reported to hosts.
func (p *Plugin) Name() string {
	return PluginName
}

// Config returns a copy of the plugin configuration.
func (p *Plugin) Config() Config {
	return p.config.Clone()
}

// Manifest returns the manifest this plugin emits.
func (p *Plugin) Manifest() Manifest {
	return NewManifest(p.config)
}

// Setup registers the resolve, load and end hooks on b.
func (p *Plugin) Setup(b Builder) {
	b.OnResolve(AnyPath, p.Resolve)
	b.OnLoad(AnyPath, p.Load)
	b.OnEnd(func(ctx context.Context) error {
		return p.emitManifest(b)
	})

	if p.logConfig {
		p.logger.Debug("Host build configuration",
			zap.Any("config", b.BuildConfig()))
	}

	p.logger.Info("Federation plugin registered",
		zap.Int("exposes", len(p.config.Exposes)),
		zap.Int("remotes", len(p.config.Remotes)),
		zap.Int("shared", len(p.config.Shared)),
		zap.String("share_scope", p.config.ShareScope),
		zap.String("unexposed_load", string(p.unexposed)))
}

// Resolve redirects imports of remote modules to their URL and marks them
// external. Everything else is declined.
func (p *Plugin) Resolve(ctx context.Context, req ResolveRequest) (ResolveResult, error) {
	target, ok := p.config.Remotes[req.Path]
	if !ok {
		p.metrics.ResolvesDeclined.Inc()
		return ResolveResult{}, nil
	}

	p.metrics.ResolvesHandled.Inc()
	p.logger.Debug("Resolved remote module",
		zap.String("specifier", req.Path),
		zap.String("importer", req.Importer),
		zap.String("url", target))

	return ResolveResult{Handled: true, Path: target, External: true}, nil
}

// Load fetches the source of exposed modules. Modules that are not exposed
// are handled according to the unexposed load policy.
func (p *Plugin) Load(ctx context.Context, req LoadRequest) (LoadResult, error) {
	location, ok := p.config.Exposes[req.Path]
	if !ok {
		if p.unexposed == UnexposedEmpty {
			p.metrics.LoadsEmpty.Inc()
			return LoadResult{Handled: true, Contents: "", Loader: LoaderJS}, nil
		}
		p.metrics.LoadsDeclined.Inc()
		return LoadResult{}, nil
	}

	start := time.Now()
	body, err := p.fetcher.Fetch(ctx, location)
	p.metrics.FetchLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.Fetches.WithLabelValues("error").Inc()
		p.logger.Error("Failed to fetch exposed module",
			zap.String("name", req.Path),
			zap.String("location", location),
			zap.Error(err))
		return LoadResult{}, fmt.Errorf("failed to load exposed module %q: %w", req.Path, err)
	}

	p.metrics.Fetches.WithLabelValues("ok").Inc()
	p.metrics.FetchedBytes.Add(float64(len(body)))
	p.metrics.LoadsHandled.Inc()

	return LoadResult{
		Handled:    true,
		Contents:   string(body),
		Loader:     inferLoader(location),
		ResolveDir: locationDir(location),
	}, nil
}

func (p *Plugin) emitManifest(b Builder) error {
	data, err := p.Manifest().Encode()
	if err != nil {
		return err
	}

	if err := b.EmitFile(ManifestName, data, PluginName); err != nil {
		return fmt.Errorf("failed to emit %s: %w", ManifestName, err)
	}

	p.metrics.ManifestsEmitted.Inc()
	p.logger.Info("Emitted federation manifest",
		zap.String("name", ManifestName),
		zap.Int("bytes", len(data)))
	return nil
}

// inferLoader picks a loader from the location's extension, or "" to let the
// host decide.
func inferLoader(location string) string {
	if u, err := url.Parse(location); err == nil && u.Scheme != "" {
		location = u.Path
	}

	switch strings.ToLower(path.Ext(location)) {
	case ".js", ".mjs", ".cjs":
		return LoaderJS
	case ".jsx":
		return "jsx"
	case ".ts", ".mts", ".cts":
		return "ts"
	case ".tsx":
		return "tsx"
	case ".json":
		return "json"
	case ".css":
		return "css"
	default:
		return ""
	}
}

// locationDir returns the directory an exposed module was fetched from, so
// relative imports inside it resolve against its origin.
func locationDir(location string) string {
	u, err := url.Parse(location)
	if err == nil && u.Scheme != "" && u.Host != "" {
		u.Path = path.Dir(u.Path)
		u.RawQuery = ""
		u.Fragment = ""
		return u.String()
	}
	if err == nil && u.Scheme == "file" {
		return filepath.Dir(u.Path)
	}
	return filepath.Dir(location)
}
