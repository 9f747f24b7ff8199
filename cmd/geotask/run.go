package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"geotask/internal/notify"
	"geotask/internal/observability"
	"geotask/pkg/gpjob"
)

var (
	flagFrom        string
	flagTo          string
	flagField       string
	flagInputs      []string
	flagSync        bool
	flagMetricsAddr string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Submit an analysis job and wait for its outcome",
	Long: `Run submits an analysis over the given date window and follows the job
until it succeeds, fails, or is canceled. Interrupting with Ctrl-C requests
cooperative cancellation instead of abandoning the job.`,
	RunE: doRun,
}

func init() {
	runCmd.Flags().StringVar(&flagFrom, "from", "", "Window start date, YYYY-MM-DD (required)")
	runCmd.Flags().StringVar(&flagTo, "to", "", "Window end date, YYYY-MM-DD (required)")
	runCmd.Flags().StringVar(&flagField, "field", "reported_at", "Date field the analysis filters on")
	runCmd.Flags().StringArrayVar(&flagInputs, "input", nil, "Extra analysis input as name=value (repeatable)")
	runCmd.Flags().BoolVar(&flagSync, "sync", false, "Ask the service to execute synchronously")
	runCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while the job runs")
	_ = runCmd.MarkFlagRequired("from")
	_ = runCmd.MarkFlagRequired("to")
}

const dateLayout = "2006-01-02"

func doRun(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	params, err := buildParameters()
	if err != nil {
		return err
	}

	// Optional metrics endpoint for long-running jobs
	var metrics *observability.Metrics
	if flagMetricsAddr != "" {
		var handler http.Handler
		metrics, handler, err = observability.NewMetrics(ctx)
		if err != nil {
			return fmt.Errorf("setting up metrics: %w", err)
		}

		metricsMux := http.NewServeMux()
		metricsMux.Handle("GET /metrics", handler)
		metricsServer := &http.Server{Addr: flagMetricsAddr, Handler: metricsMux}
		go func() {
			slog.Info("Serving metrics", "addr", flagMetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	ctrlCfg := gpjob.Config{
		PollInterval:     cfg.PollInterval,
		MaxStatusRetries: cfg.MaxStatusRetries,
	}
	if metrics != nil {
		ctrlCfg.Metrics = metrics
	}

	ctrl := gpjob.NewController(newServiceClient(), ctrlCfg)
	ctrl.Attach(&consoleObserver{out: out})

	// Optional webhook mirror of the lifecycle
	if cfg.WebhookURL != "" {
		ncfg := notify.LoadConfigFromEnv()
		ncfg.WebhookURL = cfg.WebhookURL
		ncfg.SigningKey = cfg.WebhookSigningKey

		var notifierMetrics notify.MetricsRecorder
		if metrics != nil {
			notifierMetrics = metrics
		}
		notifier, err := notify.NewNotifier(ncfg, notifierMetrics)
		if err != nil {
			return fmt.Errorf("setting up webhook notifications: %w", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = notifier.Close(closeCtx)
		}()

		ctrl.Attach(notify.NewWebhookObserver(notifier))
	}

	if err := ctrl.Submit(ctx, params); err != nil {
		return err
	}
	fmt.Fprintf(out, "Submitted analysis job %s\n", ctrl.Snapshot().Handle)

	// Ctrl-C requests cooperative cancellation; the job then resolves to a
	// Canceled outcome instead of being orphaned on the service.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig, ok := <-sigCh
		if !ok {
			return
		}
		slog.Info("Interrupt received, requesting cancellation", "signal", sig)
		if err := ctrl.CancelRequested(context.Background()); err != nil {
			slog.Warn("Cancel request failed", "error", err)
		}
	}()

	result, err := ctrl.AwaitOutcome(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Analysis succeeded.\n")
	fmt.Fprintf(out, "Layer:  %s\n", result.LayerURL)
	fmt.Fprintf(out, "Extent: [%g, %g, %g, %g] (wkid %d)\n",
		result.Extent.XMin, result.Extent.YMin, result.Extent.XMax, result.Extent.YMax, result.Extent.WKID)
	return nil
}

// buildParameters turns the run flags into a validated parameter set.
func buildParameters() (gpjob.Parameters, error) {
	from, err := time.Parse(dateLayout, flagFrom)
	if err != nil {
		return gpjob.Parameters{}, fmt.Errorf("invalid --from date %q: %w", flagFrom, err)
	}
	to, err := time.Parse(dateLayout, flagTo)
	if err != nil {
		return gpjob.Parameters{}, fmt.Errorf("invalid --to date %q: %w", flagTo, err)
	}

	query, err := gpjob.QueryBetween(flagField, from, to)
	if err != nil {
		return gpjob.Parameters{}, err
	}

	inputs := map[string]gpjob.Value{
		"query": gpjob.StringValue(query),
	}
	for _, raw := range flagInputs {
		name, value, ok := strings.Cut(raw, "=")
		if !ok || name == "" {
			return gpjob.Parameters{}, fmt.Errorf("invalid --input %q, want name=value", raw)
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			inputs[name] = gpjob.NumberValue(f)
		} else {
			inputs[name] = gpjob.StringValue(value)
		}
	}

	mode := gpjob.ModeAsyncSubmit
	if flagSync {
		mode = gpjob.ModeSynchronous
	}
	return gpjob.NewParameters(mode, inputs)
}
