package esbuild

import (
	"context"
	"fmt"
	"strings"

	"fedbuild/pkg/config"
	"fedbuild/pkg/federation"

	"github.com/evanw/esbuild/pkg/api"
	"go.uber.org/zap"
)

// Options converts a build config into esbuild options.
func Options(cfg config.BuildConfig) api.BuildOptions {
	opts := api.BuildOptions{
		EntryPoints: cfg.EntryPoints,
		Bundle:      cfg.BundleEnabled(),
		Write:       cfg.WriteEnabled(),
		Format:      esbuildFormat(cfg.Format),
		Platform:    esbuildPlatform(cfg.Platform),
		LogLevel:    api.LogLevelSilent,
	}

	if cfg.Outfile != "" {
		opts.Outfile = cfg.Outfile
	} else {
		opts.Outdir = cfg.OutputDir()
	}

	if cfg.Minify {
		opts.MinifyWhitespace = true
		opts.MinifyIdentifiers = true
		opts.MinifySyntax = true
	}

	return opts
}

// Build runs one esbuild pass with the federation plugin attached. Cancelling
// ctx cancels the build.
func Build(ctx context.Context, opts api.BuildOptions, p *federation.Plugin, logger *zap.Logger) (api.BuildResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.Plugins = append(opts.Plugins, Plugin(ctx, p, logger))

	buildCtx, ctxErr := api.Context(opts)
	if ctxErr != nil {
		return api.BuildResult{Errors: ctxErr.Errors}, fmt.Errorf("failed to create build context: %s", messagesText(ctxErr.Errors))
	}
	defer buildCtx.Dispose()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			buildCtx.Cancel()
		case <-done:
		}
	}()

	logger.Info("Starting build",
		zap.Strings("entry_points", opts.EntryPoints),
		zap.String("outdir", OutputDir(&opts)))

	result := buildCtx.Rebuild()
	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	if len(result.Errors) > 0 {
		return result, fmt.Errorf("build failed with %d error(s): %s", len(result.Errors), messagesText(result.Errors))
	}

	logger.Info("Build finished",
		zap.Int("output_files", len(result.OutputFiles)),
		zap.Int("warnings", len(result.Warnings)))
	return result, nil
}

func messagesText(msgs []api.Message) string {
	texts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		text := m.Text
		if m.PluginName != "" {
			text = fmt.Sprintf("[%s] %s", m.PluginName, text)
		}
		if m.Location != nil {
			text = fmt.Sprintf("%s:%d: %s", m.Location.File, m.Location.Line, text)
		}
		texts = append(texts, text)
	}
	return strings.Join(texts, "; ")
}

func esbuildFormat(f config.Format) api.Format {
	switch f {
	case config.FormatCJS:
		return api.FormatCommonJS
	case config.FormatIIFE:
		return api.FormatIIFE
	default:
		return api.FormatESModule
	}
}

func esbuildPlatform(p config.Platform) api.Platform {
	switch p {
	case config.PlatformNode:
		return api.PlatformNode
	case config.PlatformNeutral:
		return api.PlatformNeutral
	default:
		return api.PlatformBrowser
	}
}

func formatName(f api.Format) string {
	switch f {
	case api.FormatESModule:
		return string(config.FormatESM)
	case api.FormatCommonJS:
		return string(config.FormatCJS)
	case api.FormatIIFE:
		return string(config.FormatIIFE)
	default:
		return "default"
	}
}

func platformName(p api.Platform) string {
	switch p {
	case api.PlatformNode:
		return string(config.PlatformNode)
	case api.PlatformNeutral:
		return string(config.PlatformNeutral)
	default:
		return string(config.PlatformBrowser)
	}
}

func isURL(s string) bool {
	return strings.Contains(s, "://")
}
