package esbuild

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fedbuild/pkg/config"
	"fedbuild/pkg/federation"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
}

// tempDir resolves symlinks so paths match what esbuild reports.
func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func readOutput(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "index.js"))
	require.NoError(t, err)
	return string(data)
}

func TestBuild_RemotesExposesAndManifest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`export default "widget from remote origin";`))
	}))
	defer server.Close()

	dir := tempDir(t)
	widget := filepath.Join(dir, "widget.js")
	writeFile(t, widget, `export default "local placeholder";`)
	writeFile(t, filepath.Join(dir, "index.js"), `
import { a } from "pkg-a";
import widget from "./widget.js";
console.log(a, widget);
`)

	cfg := federation.Config{
		Remotes:    map[string]string{"pkg-a": "https://cdn.example.com/a.js"},
		Exposes:    map[string]string{widget: server.URL + "/widget.js"},
		Shared:     map[string]federation.SharedVersion{"react": federation.SharedRange("^18.2.0")},
		ShareScope: "default",
	}
	logger := zaptest.NewLogger(t)
	p := federation.New(cfg, federation.WithLogger(logger))

	outdir := filepath.Join(dir, "out")
	opts := Options(config.BuildConfig{
		EntryPoints: []string{filepath.Join(dir, "index.js")},
		Outdir:      outdir,
		Format:      config.FormatESM,
	})

	result, err := Build(context.Background(), opts, p, logger)
	require.NoError(t, err)
	assert.Empty(t, result.Errors)

	out := readOutput(t, outdir)
	assert.Contains(t, out, "https://cdn.example.com/a.js")
	assert.Contains(t, out, "widget from remote origin")
	assert.NotContains(t, out, "local placeholder")

	manifest, err := os.ReadFile(filepath.Join(outdir, federation.ManifestName))
	require.NoError(t, err)
	expected, err := p.Manifest().Encode()
	require.NoError(t, err)
	assert.JSONEq(t, string(expected), string(manifest))
}

func TestBuild_UnexposedModulesLoadNormally(t *testing.T) {
	dir := tempDir(t)
	writeFile(t, filepath.Join(dir, "lib.js"), `export const answer = "forty-two";`)
	writeFile(t, filepath.Join(dir, "index.js"), `import { answer } from "./lib.js"; console.log(answer);`)

	p := federation.New(federation.Config{})
	outdir := filepath.Join(dir, "out")
	opts := Options(config.BuildConfig{EntryPoints: []string{filepath.Join(dir, "index.js")}, Outdir: outdir})

	_, err := Build(context.Background(), opts, p, nil)
	require.NoError(t, err)

	assert.Contains(t, readOutput(t, outdir), "forty-two")
	assert.FileExists(t, filepath.Join(outdir, federation.ManifestName))
}

func TestBuild_UnexposedEmptyPolicy(t *testing.T) {
	dir := tempDir(t)
	writeFile(t, filepath.Join(dir, "lib.js"), `export const answer = "forty-two";`)
	writeFile(t, filepath.Join(dir, "index.js"), `import * as lib from "./lib.js"; console.log("entry", lib);`)

	p := federation.New(federation.Config{}, federation.WithUnexposedLoad(federation.UnexposedEmpty))
	outdir := filepath.Join(dir, "out")
	opts := Options(config.BuildConfig{EntryPoints: []string{filepath.Join(dir, "index.js")}, Outdir: outdir})

	_, err := Build(context.Background(), opts, p, nil)
	require.NoError(t, err)

	// Every module, the entry included, is replaced with empty contents.
	data, _ := os.ReadFile(filepath.Join(outdir, "index.js"))
	assert.NotContains(t, string(data), "forty-two")
	assert.NotContains(t, string(data), "entry")
	assert.FileExists(t, filepath.Join(outdir, federation.ManifestName))
}

func TestBuild_FetchFailureFailsBuild(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	dir := tempDir(t)
	widget := filepath.Join(dir, "widget.js")
	writeFile(t, widget, `export default 1;`)
	writeFile(t, filepath.Join(dir, "index.js"), `import w from "./widget.js"; console.log(w);`)

	p := federation.New(federation.Config{Exposes: map[string]string{widget: server.URL + "/widget.js"}})
	outdir := filepath.Join(dir, "out")
	opts := Options(config.BuildConfig{EntryPoints: []string{filepath.Join(dir, "index.js")}, Outdir: outdir})

	result, err := Build(context.Background(), opts, p, nil)
	require.Error(t, err)
	assert.NotEmpty(t, result.Errors)
	assert.Contains(t, err.Error(), "status 500")

	// The manifest is still emitted for a failed build.
	manifest, err := os.ReadFile(filepath.Join(outdir, federation.ManifestName))
	require.NoError(t, err)
	assert.JSONEq(t, `{"exposes":{"`+widget+`":"`+server.URL+`/widget.js"}}`, string(manifest))
}

func TestHost_EmitFileWithoutWrite(t *testing.T) {
	dir := tempDir(t)
	writeFile(t, filepath.Join(dir, "index.js"), `console.log("hi");`)

	p := federation.New(federation.Config{ShareScope: "scope"})
	opts := Options(config.BuildConfig{EntryPoints: []string{filepath.Join(dir, "index.js")}, Outdir: filepath.Join(dir, "out")})
	opts.Write = false

	result, err := Build(context.Background(), opts, p, nil)
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(dir, "out", federation.ManifestName))

	var manifest *api.OutputFile
	for i := range result.OutputFiles {
		if filepath.Base(result.OutputFiles[i].Path) == federation.ManifestName {
			manifest = &result.OutputFiles[i]
		}
	}
	require.NotNil(t, manifest, "manifest missing from output files")
	assert.Equal(t, filepath.Join(dir, "out", federation.ManifestName), manifest.Path)
	assert.JSONEq(t, `{"shareScope":"scope"}`, string(manifest.Contents))
}

func TestBuild_Cancelled(t *testing.T) {
	dir := tempDir(t)
	writeFile(t, filepath.Join(dir, "index.js"), `console.log("hi");`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := federation.New(federation.Config{})
	opts := Options(config.BuildConfig{EntryPoints: []string{filepath.Join(dir, "index.js")}, Outdir: filepath.Join(dir, "out")})

	_, err := Build(ctx, opts, p, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptions(t *testing.T) {
	bundle := false
	opts := Options(config.BuildConfig{
		EntryPoints: []string{"src/index.js"},
		Outfile:     "build/app.js",
		Format:      config.FormatCJS,
		Platform:    config.PlatformNode,
		Bundle:      &bundle,
		Minify:      true,
	})

	assert.Equal(t, []string{"src/index.js"}, opts.EntryPoints)
	assert.Equal(t, "build/app.js", opts.Outfile)
	assert.Empty(t, opts.Outdir)
	assert.Equal(t, api.FormatCommonJS, opts.Format)
	assert.Equal(t, api.PlatformNode, opts.Platform)
	assert.False(t, opts.Bundle)
	assert.True(t, opts.Write)
	assert.True(t, opts.MinifyWhitespace)

	opts = Options(config.BuildConfig{})
	assert.Equal(t, config.DefaultOutdir, opts.Outdir)
	assert.Equal(t, api.FormatESModule, opts.Format)
	assert.Equal(t, api.PlatformBrowser, opts.Platform)
	assert.True(t, opts.Bundle)
}

func TestOutputDir(t *testing.T) {
	assert.Equal(t, ".", OutputDir(nil))
	assert.Equal(t, "/work/dist", OutputDir(&api.BuildOptions{AbsWorkingDir: "/work", Outdir: "dist"}))
	assert.Equal(t, "/abs/out", OutputDir(&api.BuildOptions{AbsWorkingDir: "/work", Outdir: "/abs/out"}))
	assert.Equal(t, "/work/build", OutputDir(&api.BuildOptions{AbsWorkingDir: "/work", Outfile: "build/app.js"}))
}

func TestLoaderFor(t *testing.T) {
	assert.Equal(t, api.LoaderJS, loaderFor("js"))
	assert.Equal(t, api.LoaderTSX, loaderFor("tsx"))
	assert.Equal(t, api.LoaderCSS, loaderFor("css"))
	assert.Equal(t, api.LoaderNone, loaderFor(""))
}

func TestLocalDir(t *testing.T) {
	assert.Equal(t, "", localDir(""))
	assert.Equal(t, "", localDir("https://cdn.example.com/app"))
	assert.Equal(t, "/srv/app", localDir("/srv/app"))

	abs := localDir("src")
	assert.True(t, filepath.IsAbs(abs))
	assert.True(t, strings.HasSuffix(abs, "src"))
}
