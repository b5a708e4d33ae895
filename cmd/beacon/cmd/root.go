package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/safety-beacon/internal/config"
	"github.com/oshokin/safety-beacon/internal/logger"
	"github.com/oshokin/safety-beacon/internal/service/beacon"
	"github.com/oshokin/safety-beacon/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// redisAddress overrides the realtime broker address from config.
	redisAddress string
	// verbose forces debug-level logging regardless of configuration.
	verbose bool

	// rootCmd represents the base command running the beacon client.
	rootCmd = &cobra.Command{
		Use:   "beacon [service-url]",
		Short: "Run the safety beacon alert client.",
		Long: `Location-aware emergency alert client.

Registers this device with the alert service, listens for nearby alerts over
the realtime channel, and reconciles state with the service on a fixed
interval. A triggered alert notifies users within the notification radius;
incoming alerts surface one at a time with live distance and bearing.
The service URL can be provided as argument or loaded from configuration.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if verbose {
				logger.SetLevel(zapcore.DebugLevel)
			}

			// Use service URL argument if provided, otherwise rely on config.
			var serviceURL string
			if len(args) > 0 {
				serviceURL = args[0]
			}

			return beacon.Run(ctx, &beacon.Options{
				ConfigPath:   configPath,
				ServiceURL:   serviceURL,
				RedisAddress: redisAddress,
				Verbose:      verbose,
			})
		},
	}
)

// Execute runs the beacon CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Local overrides for development; missing files are fine.
	_ = godotenv.Load(".env")

	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&redisAddress, "redis", "r", "", "override realtime broker address")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
