package main

import (
	"fmt"
	"path/filepath"
	"time"

	"fedbuild/pkg/config"
	"fedbuild/pkg/esbuild"
	"fedbuild/pkg/federation"
	"fedbuild/pkg/utils"

	"github.com/charmbracelet/lipgloss"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func buildCmd() *cobra.Command {
	var (
		outdir        string
		format        string
		platform      string
		minify        bool
		unexposedLoad string
	)

	cmd := &cobra.Command{
		Use:   "build [entry...]",
		Short: "Run a federated build",
		Long: `Bundle the entry points with the federation plugin attached. Entry points
given on the command line replace those from the config file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(verbose)
			defer logger.Sync()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if len(args) > 0 {
				cfg.Build.EntryPoints = args
			}
			if cmd.Flags().Changed("outdir") {
				cfg.Build.Outdir = outdir
				cfg.Build.Outfile = ""
			}
			if cmd.Flags().Changed("format") {
				cfg.Build.Format = config.Format(format)
			}
			if cmd.Flags().Changed("platform") {
				cfg.Build.Platform = config.Platform(platform)
			}
			if cmd.Flags().Changed("minify") {
				cfg.Build.Minify = minify
			}
			if cmd.Flags().Changed("unexposed-load") {
				cfg.UnexposedLoad = unexposedLoad
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if len(cfg.Build.EntryPoints) == 0 {
				return fmt.Errorf("no entry points given")
			}

			registry := prometheus.NewRegistry()
			opts, err := cfg.PluginOptions(logger, registry)
			if err != nil {
				return err
			}
			plugin := federation.New(cfg.Federation, opts...)

			start := time.Now()
			result, buildErr := esbuild.Build(cmd.Context(), esbuild.Options(cfg.Build), plugin, logger)
			logMetrics(logger, registry)

			fmt.Fprintln(cmd.OutOrStdout(), renderBuildSummary(cfg, len(result.OutputFiles), len(result.Warnings), len(result.Errors), time.Since(start)))
			return buildErr
		},
	}

	cmd.Flags().StringVarP(&outdir, "outdir", "o", config.DefaultOutdir, "output directory")
	cmd.Flags().StringVar(&format, "format", string(config.FormatESM), "output format (esm, cjs, iife)")
	cmd.Flags().StringVar(&platform, "platform", string(config.PlatformBrowser), "target platform (browser, node, neutral)")
	cmd.Flags().BoolVar(&minify, "minify", false, "minify the output")
	cmd.Flags().StringVar(&unexposedLoad, "unexposed-load", string(federation.UnexposedDecline), "what to do with modules not listed in exposes (decline, empty)")

	return cmd
}

// logMetrics dumps the plugin counters at debug level.
func logMetrics(logger *zap.Logger, registry *prometheus.Registry) {
	families, err := registry.Gather()
	if err != nil {
		logger.Warn("Failed to gather metrics", zap.Error(err))
		return
	}

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			fields := []zap.Field{zap.String("metric", mf.GetName())}
			for _, label := range m.GetLabel() {
				fields = append(fields, zap.String(label.GetName(), label.GetValue()))
			}
			switch {
			case m.GetCounter() != nil:
				fields = append(fields, zap.Float64("value", m.GetCounter().GetValue()))
			case m.GetHistogram() != nil:
				fields = append(fields,
					zap.Uint64("count", m.GetHistogram().GetSampleCount()),
					zap.Float64("sum", m.GetHistogram().GetSampleSum()))
			}
			logger.Debug("Plugin metric", fields...)
		}
	}
}

func renderBuildSummary(cfg *config.Config, outputs, warnings, errors int, elapsed time.Duration) string {
	status := accentValueStyle.Render("OK")
	if errors > 0 {
		status = dangerValueStyle.Render("FAILED")
	}

	manifestPath := filepath.Join(cfg.Build.OutputDir(), federation.ManifestName)
	rows := []string{
		renderField("Status", status),
		renderField("Entry points", valueStyle.Render(fmt.Sprintf("%d", len(cfg.Build.EntryPoints)))),
		renderField("Output files", valueStyle.Render(fmt.Sprintf("%d", outputs))),
		renderField("Warnings", warningValueStyle.Render(fmt.Sprintf("%d", warnings))),
		renderField("Errors", dangerValueStyle.Render(fmt.Sprintf("%d", errors))),
		renderField("Remotes", valueStyle.Render(fmt.Sprintf("%d", len(cfg.Federation.Remotes)))),
		renderField("Exposes", valueStyle.Render(fmt.Sprintf("%d", len(cfg.Federation.Exposes)))),
		renderField("Manifest", mutedStyle.Render(manifestPath)),
		renderField("Elapsed", mutedStyle.Render(elapsed.Round(time.Millisecond).String())),
	}
	if cfg.Fetch.MaxModuleSize != "" {
		if size, err := utils.ParseDataSize(cfg.Fetch.MaxModuleSize); err == nil && size > 0 {
			rows = append(rows, renderField("Module size cap", mutedStyle.Render(utils.FormatDataSize(size))))
		}
	}

	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("FEDERATED BUILD"),
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	))
}

func renderField(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}
