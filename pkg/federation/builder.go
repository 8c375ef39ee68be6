package federation

import "context"

// AnyPath is the filter the plugin registers its hooks with.
const AnyPath = ".*"

// LoaderJS tags contents as plain JavaScript.
const LoaderJS = "js"

// ResolveRequest is one import specifier seen by the host during resolution.
type ResolveRequest struct {
	Path     string
	Importer string
}

// ResolveResult redirects an import when Handled is set. A zero value means
// the plugin declines and the host falls back to its default resolution.
type ResolveResult struct {
	Handled  bool
	Path     string
	External bool
}

// LoadRequest is one resolved module path whose contents the host needs.
type LoadRequest struct {
	Path string
}

// LoadResult carries module source when Handled is set. A zero value means
// the plugin declines and the host loads the module itself.
type LoadResult struct {
	Handled    bool
	Contents   string
	Loader     string
	ResolveDir string
}

// ResolveFunc handles a resolve request.
type ResolveFunc func(ctx context.Context, req ResolveRequest) (ResolveResult, error)

// LoadFunc handles a load request.
type LoadFunc func(ctx context.Context, req LoadRequest) (LoadResult, error)

// EndFunc runs once when the build finishes.
type EndFunc func(ctx context.Context) error

// Builder is what a host bundler must provide for the plugin to hook into
// its pipeline.
type Builder interface {
	OnResolve(filter string, fn ResolveFunc)
	OnLoad(filter string, fn LoadFunc)
	OnEnd(fn EndFunc)
	EmitFile(name string, contents []byte, pluginName string) error
	// BuildConfig exposes the host build configuration. Plugins read it only.
	BuildConfig() any
}
