package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fedbuild/pkg/config"
	"fedbuild/pkg/federation"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configFile string
	verbose    bool
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "fedbuild",
		Short: "Bundle JavaScript with module federation",
		Long: `fedbuild runs an esbuild pass with a module federation plugin attached.
Remote imports become external URLs, exposed modules are fetched from their
configured location, and a federated-modules.json manifest is written next to
the bundle.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(
		buildCmd(),
		manifestCmd(),
		inspectCmd(),
		versionCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads --config when given, otherwise starts from defaults, and
// applies FEDBUILD_* environment overrides on top.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if configFile != "" {
		var err error
		cfg, err = config.LoadConfig(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		cfg = config.Default()
	}

	if err := config.ApplyEnv(cfg); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	return cfg, nil
}

func manifestCmd() *cobra.Command {
	var pretty bool

	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Print the federation manifest without building",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			manifest := federation.NewManifest(cfg.Federation)
			var data []byte
			if pretty {
				data, err = manifest.EncodeIndent()
			} else {
				data, err = manifest.Encode()
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON output")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fedbuild v%s\n", version)
		},
	}
}

func setupLogger(verbose bool) *zap.Logger {
	config := zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
