// Command catnet trains and runs the two layer cat / non-cat image classifier.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/openfluke/catnet/config"
	"github.com/openfluke/catnet/gpu"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Logger
	logger = zap.NewNop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "catnet",
	Short: "Two layer cat / non-cat image classifier",
	Long: `catnet trains a 12288 -> 7 -> 1 fully connected network to tell cat
pictures from everything else, using full-batch gradient descent on the
binary cross-entropy cost.

Data is read from NumPy .npz/.npy arrays or from cat/ and non-cat/ image
folders. Trained models are saved as JSON bundles and every run is recorded
in a SQLite history database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging := config.Default().Logging
		if configPath != "" {
			// A broken file is reported by the subcommand itself.
			if cfg, err := config.Load(configPath); err == nil {
				logging = cfg.Logging
			}
		}
		var err error
		logger, err = newLogger(logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		gpu.SetLogger(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML run configuration")

	rootCmd.AddCommand(trainCmd, predictCmd, gradcheckCmd, historyCmd, infoCmd)
}

func newLogger(lc config.LoggingConfig) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	if lc.Encoding != "" {
		cfg.Encoding = lc.Encoding
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lc.Level != "" {
		level, err := zap.ParseAtomicLevel(lc.Level)
		if err != nil {
			return nil, err
		}
		cfg.Level = level
	}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

// loadConfig reads --config when given, otherwise the defaults.
func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
