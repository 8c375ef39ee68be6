// Package esbuild runs the federation plugin inside an esbuild build.
package esbuild

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"fedbuild/pkg/federation"

	"github.com/evanw/esbuild/pkg/api"
	"go.uber.org/zap"
)

// Host adapts an esbuild PluginBuild to federation.Builder.
type Host struct {
	build api.PluginBuild

	// esbuild callbacks take no context; hooks run under the build's.
	ctx    context.Context
	logger *zap.Logger

	mu     sync.Mutex
	result *api.BuildResult
}

// NewHost wraps build. ctx is handed to every hook invocation.
func NewHost(ctx context.Context, build api.PluginBuild, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{build: build, ctx: ctx, logger: logger}
}

// Plugin converts p into an esbuild plugin.
func Plugin(ctx context.Context, p *federation.Plugin, logger *zap.Logger) api.Plugin {
	return api.Plugin{
		Name: p.Name(),
		Setup: func(build api.PluginBuild) {
			p.Setup(NewHost(ctx, build, logger))
		},
	}
}

// OnResolve registers fn with esbuild. A declined result lets esbuild resolve
// the path itself.
func (h *Host) OnResolve(filter string, fn federation.ResolveFunc) {
	h.build.OnResolve(api.OnResolveOptions{Filter: filter},
		func(args api.OnResolveArgs) (api.OnResolveResult, error) {
			res, err := fn(h.ctx, federation.ResolveRequest{Path: args.Path, Importer: args.Importer})
			if err != nil || !res.Handled {
				return api.OnResolveResult{}, err
			}
			return api.OnResolveResult{Path: res.Path, External: res.External}, nil
		})
}

// OnLoad registers fn with esbuild. Handled results become module contents.
func (h *Host) OnLoad(filter string, fn federation.LoadFunc) {
	h.build.OnLoad(api.OnLoadOptions{Filter: filter},
		func(args api.OnLoadArgs) (api.OnLoadResult, error) {
			res, err := fn(h.ctx, federation.LoadRequest{Path: args.Path})
			if err != nil || !res.Handled {
				// Nil contents lets esbuild fall through to the next loader.
				return api.OnLoadResult{}, err
			}

			contents := res.Contents
			return api.OnLoadResult{
				Contents:   &contents,
				Loader:     loaderFor(res.Loader),
				ResolveDir: localDir(res.ResolveDir),
			}, nil
		})
}

// OnEnd runs fn after every build, failed ones included, and reports its
// error as a build error.
func (h *Host) OnEnd(fn federation.EndFunc) {
	h.build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
		h.mu.Lock()
		h.result = result
		h.mu.Unlock()

		if err := fn(h.ctx); err != nil {
			return api.OnEndResult{
				Errors: []api.Message{{PluginName: federation.PluginName, Text: err.Error()}},
			}, nil
		}
		return api.OnEndResult{}, nil
	})
}

// EmitFile writes name next to the build output. When the build does not
// write to disk the file is appended to the result's output files instead.
func (h *Host) EmitFile(name string, contents []byte, pluginName string) error {
	target := filepath.Join(OutputDir(h.build.InitialOptions), name)
	if !filepath.IsAbs(target) {
		abs, err := filepath.Abs(target)
		if err != nil {
			return fmt.Errorf("failed to resolve output path: %w", err)
		}
		target = abs
	}

	if h.build.InitialOptions != nil && h.build.InitialOptions.Write {
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := os.WriteFile(target, contents, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	} else {
		h.mu.Lock()
		if h.result != nil {
			h.result.OutputFiles = append(h.result.OutputFiles, api.OutputFile{Path: target, Contents: contents})
		}
		h.mu.Unlock()
	}

	h.logger.Debug("Emitted build artifact",
		zap.String("path", target),
		zap.String("plugin", pluginName),
		zap.Int("bytes", len(contents)))
	return nil
}

// BuildConfig returns a read-only summary of the esbuild options.
func (h *Host) BuildConfig() any {
	opts := h.build.InitialOptions
	if opts == nil {
		return map[string]any{}
	}
	return map[string]any{
		"entry_points": opts.EntryPoints,
		"outdir":       opts.Outdir,
		"outfile":      opts.Outfile,
		"bundle":       opts.Bundle,
		"write":        opts.Write,
		"format":       formatName(opts.Format),
		"platform":     platformName(opts.Platform),
		"external":     opts.External,
		"plugins":      len(opts.Plugins),
	}
}

// OutputDir returns where esbuild places output for opts.
func OutputDir(opts *api.BuildOptions) string {
	switch {
	case opts == nil:
		return "."
	case opts.Outdir != "":
		return absJoin(opts.AbsWorkingDir, opts.Outdir)
	case opts.Outfile != "":
		return filepath.Dir(absJoin(opts.AbsWorkingDir, opts.Outfile))
	default:
		return absJoin(opts.AbsWorkingDir, ".")
	}
}

func absJoin(base, p string) string {
	if filepath.IsAbs(p) || base == "" {
		return p
	}
	return filepath.Join(base, p)
}

// localDir keeps dir only when esbuild can use it as a resolve directory.
func localDir(dir string) string {
	if dir == "" {
		return ""
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	if isURL(dir) {
		return ""
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	return abs
}

func loaderFor(tag string) api.Loader {
	switch tag {
	case "js":
		return api.LoaderJS
	case "jsx":
		return api.LoaderJSX
	case "ts":
		return api.LoaderTS
	case "tsx":
		return api.LoaderTSX
	case "json":
		return api.LoaderJSON
	case "css":
		return api.LoaderCSS
	case "text":
		return api.LoaderText
	default:
		return api.LoaderNone
	}
}
