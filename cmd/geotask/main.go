// geotask submits geoprocessing analysis jobs to a remote service and tracks
// them to completion from the command line.
package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"geotask/internal/config"
	"geotask/pkg/gpservice"
)

var (
	flagServiceURL string
	flagAPIKey     string
	flagVerbose    bool

	cfg *config.ClientConfig
)

var rootCmd = &cobra.Command{
	Use:          "geotask",
	Short:        "Submit and track geoprocessing analysis jobs",
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagServiceURL, "service-url", "", "Analysis service base URL (default from GEOTASK_SERVICE_URL)")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "API key sent as X-Api-Key (default from GEOTASK_API_KEY)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")

	// errors are logged below, not printed by cobra
	rootCmd.SilenceErrors = true

	rootCmd.PersistentPreRunE = initGeotask

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("geotask failed", "error", err)
		os.Exit(1)
	}
}

// initGeotask loads configuration and sets up logging before any command
// runs. Flags override environment values.
func initGeotask(cmd *cobra.Command, _ []string) error {
	// .env is optional; environment variables still apply without one
	_ = godotenv.Load()

	cfg = config.LoadClientConfig()
	if flagServiceURL != "" {
		cfg.ServiceURL = flagServiceURL
	}
	if flagAPIKey != "" {
		cfg.APIKey = flagAPIKey
	}

	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Debug("geotask configured", "serviceUrl", cfg.ServiceURL)
	return nil
}

// newServiceClient builds the HTTP client every command talks through.
func newServiceClient() *gpservice.Client {
	return gpservice.NewClient(
		gpservice.WithBaseURL(cfg.ServiceURL),
		gpservice.WithAPIKey(cfg.APIKey),
		gpservice.WithRateLimit(cfg.RateLimit),
		gpservice.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
	)
}
