//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"geotask/internal/api"
	"geotask/internal/health"
	"geotask/internal/notify"
	"geotask/internal/sim"
	"geotask/internal/testutil"
	"geotask/pkg/cloudevent"
	"geotask/pkg/gpjob"
	"geotask/pkg/gpservice"
)

// getTestURL returns the base URL for e2e tests.
// If E2E_API_URL is set, tests run against that instance.
// Otherwise, an in-process server with fast pacing is created.
func getTestURL(t *testing.T) (string, func()) {
	if url := os.Getenv("E2E_API_URL"); url != "" {
		t.Logf("Using external API: %s", url)
		return url, func() {}
	}

	server, cleanup := createTestServer(t)
	return server.URL, cleanup
}

func createTestServer(t *testing.T) (*httptest.Server, func()) {
	t.Helper()

	engine := sim.NewEngine(sim.Config{
		QueueFor:      50 * time.Millisecond,
		PauseFor:      50 * time.Millisecond,
		ExecFor:       200 * time.Millisecond,
		CancelLag:     50 * time.Millisecond,
		SweepInterval: time.Hour,
	})
	router := api.NewRouter(api.RouterConfig{
		Engine:        engine,
		HealthChecker: health.NewChecker(engine),
	})
	server := httptest.NewServer(router)

	cleanup := func() {
		server.Close()
		engine.Close()
	}
	return server, cleanup
}

func newController(t *testing.T, baseURL string) *gpjob.Controller {
	t.Helper()

	client := gpservice.NewClient(
		gpservice.WithBaseURL(baseURL),
		gpservice.WithRateLimit(100),
	)
	return gpjob.NewController(client, gpjob.Config{PollInterval: 50 * time.Millisecond})
}

func analysisParams(t *testing.T, extra map[string]gpjob.Value) gpjob.Parameters {
	t.Helper()

	from := time.Date(1998, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(1998, 1, 31, 0, 0, 0, 0, time.UTC)
	query, err := gpjob.QueryBetween("reported_at", from, to)
	if err != nil {
		t.Fatalf("QueryBetween() error: %v", err)
	}

	inputs := map[string]gpjob.Value{"query": gpjob.StringValue(query)}
	for k, v := range extra {
		inputs[k] = v
	}
	params, err := gpjob.NewParameters(gpjob.ModeAsyncSubmit, inputs)
	if err != nil {
		t.Fatalf("NewParameters() error: %v", err)
	}
	return params
}

// statusRecorder collects observer notifications in arrival order.
type statusRecorder struct {
	mu       sync.Mutex
	statuses []gpjob.Status
}

func (r *statusRecorder) OnStatusChanged(snap gpjob.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, snap.Status)
}

func (r *statusRecorder) all() []gpjob.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]gpjob.Status(nil), r.statuses...)
}

// waitForTerminal blocks until the recorder has seen a terminal status.
// AwaitOutcome unblocks before observers run, so notification assertions
// must wait for the terminal one to land.
func waitForTerminal(t *testing.T, rec *statusRecorder) []gpjob.Status {
	t.Helper()

	testutil.MustWaitFor(t, func() bool {
		statuses := rec.all()
		return len(statuses) > 0 && statuses[len(statuses)-1].Terminal()
	}, testutil.WithTimeout(5*time.Second))
	return rec.all()
}

func TestE2E_Livez(t *testing.T) {
	baseURL, cleanup := getTestURL(t)
	defer cleanup()

	resp, err := http.Get(baseURL + "/livez")
	if err != nil {
		t.Fatalf("Liveness check failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
}

func TestE2E_Readyz(t *testing.T) {
	baseURL, cleanup := getTestURL(t)
	defer cleanup()

	resp, err := http.Get(baseURL + "/readyz")
	if err != nil {
		t.Fatalf("Readiness check failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var result health.Response
	json.NewDecoder(resp.Body).Decode(&result)

	if result.Status != health.StatusHealthy {
		t.Errorf("Expected healthy status, got %s", result.Status)
	}
}

func TestE2E_AnalysisLifecycle(t *testing.T) {
	baseURL, cleanup := getTestURL(t)
	defer cleanup()

	ctrl := newController(t, baseURL)
	rec := &statusRecorder{}
	ctrl.Attach(rec)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ctrl.Submit(ctx, analysisParams(t, nil)); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if handle := ctrl.Snapshot().Handle; handle == "" {
		t.Fatal("expected a handle after submission")
	}

	result, err := ctrl.AwaitOutcome(ctx)
	if err != nil {
		t.Fatalf("AwaitOutcome() error: %v", err)
	}
	if result.LayerURL == "" {
		t.Error("expected a layer URL in the result")
	}
	if result.Extent.WKID == 0 {
		t.Error("expected a spatial reference in the extent")
	}

	statuses := waitForTerminal(t, rec)
	if statuses[0] != gpjob.StatusStarted {
		t.Errorf("first notification = %s, want %s", statuses[0], gpjob.StatusStarted)
	}
	if last := statuses[len(statuses)-1]; last != gpjob.StatusSucceeded {
		t.Errorf("last notification = %s, want %s", last, gpjob.StatusSucceeded)
	}
}

func TestE2E_CancelMidFlight(t *testing.T) {
	baseURL, cleanup := getTestURL(t)
	defer cleanup()

	ctrl := newController(t, baseURL)
	rec := &statusRecorder{}
	ctrl.Attach(rec)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ctrl.Submit(ctx, analysisParams(t, nil)); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if err := ctrl.CancelRequested(ctx); err != nil {
		t.Fatalf("CancelRequested() error: %v", err)
	}

	_, err := ctrl.AwaitOutcome(ctx)
	if !errors.Is(err, gpjob.ErrCanceled) {
		t.Fatalf("AwaitOutcome() error = %v, want ErrCanceled", err)
	}

	statuses := waitForTerminal(t, rec)
	if last := statuses[len(statuses)-1]; last != gpjob.StatusCanceled {
		t.Errorf("last notification = %s, want %s", last, gpjob.StatusCanceled)
	}
}

func TestE2E_SimulatedFailure(t *testing.T) {
	baseURL, cleanup := getTestURL(t)
	defer cleanup()

	ctrl := newController(t, baseURL)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	params := analysisParams(t, map[string]gpjob.Value{"simulate": gpjob.StringValue("fail")})
	if err := ctrl.Submit(ctx, params); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	_, err := ctrl.AwaitOutcome(ctx)
	if !errors.Is(err, gpjob.ErrService) {
		t.Fatalf("AwaitOutcome() error = %v, want ErrService", err)
	}
	if snap := ctrl.Snapshot(); snap.Status != gpjob.StatusFailed {
		t.Errorf("Snapshot().Status = %s, want %s", snap.Status, gpjob.StatusFailed)
	}
}

func TestE2E_APIKeyAuth(t *testing.T) {
	engine := sim.NewEngine(sim.Config{
		QueueFor:      50 * time.Millisecond,
		ExecFor:       200 * time.Millisecond,
		SweepInterval: time.Hour,
	})
	defer engine.Close()

	router := api.NewRouter(api.RouterConfig{
		Engine:        engine,
		HealthChecker: health.NewChecker(engine),
		APIKey:        "e2e-secret",
	})
	server := httptest.NewServer(router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Without the key the submission is rejected
	bare := gpjob.NewController(gpservice.NewClient(gpservice.WithBaseURL(server.URL)), gpjob.Config{})
	if err := bare.Submit(ctx, analysisParams(t, nil)); !errors.Is(err, gpjob.ErrSubmission) {
		t.Fatalf("Submit() without key error = %v, want ErrSubmission", err)
	}

	// With the key the full lifecycle runs
	client := gpservice.NewClient(
		gpservice.WithBaseURL(server.URL),
		gpservice.WithAPIKey("e2e-secret"),
		gpservice.WithRateLimit(100),
	)
	ctrl := gpjob.NewController(client, gpjob.Config{PollInterval: 50 * time.Millisecond})
	if err := ctrl.Submit(ctx, analysisParams(t, nil)); err != nil {
		t.Fatalf("Submit() with key error: %v", err)
	}
	if _, err := ctrl.AwaitOutcome(ctx); err != nil {
		t.Fatalf("AwaitOutcome() error: %v", err)
	}
}

func TestE2E_WebhookNotifications(t *testing.T) {
	baseURL, cleanup := getTestURL(t)
	defer cleanup()

	var mu sync.Mutex
	var eventTypes []string
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event cloudevent.CloudEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err == nil {
			mu.Lock()
			eventTypes = append(eventTypes, event.Type)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	notifier, err := notify.NewNotifier(notify.Config{
		WebhookURL: hook.URL,
		QueueSize:  100,
		Workers:    1,
	}, nil)
	if err != nil {
		t.Fatalf("NewNotifier() error: %v", err)
	}

	ctrl := newController(t, baseURL)
	ctrl.Attach(notify.NewWebhookObserver(notifier))
	// Attached after the webhook observer: once this recorder holds the
	// terminal status, the terminal event is already queued.
	rec := &statusRecorder{}
	ctrl.Attach(rec)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ctrl.Submit(ctx, analysisParams(t, nil)); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if _, err := ctrl.AwaitOutcome(ctx); err != nil {
		t.Fatalf("AwaitOutcome() error: %v", err)
	}
	waitForTerminal(t, rec)

	// Drain pending deliveries before asserting
	closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()
	if err := notifier.Close(closeCtx); err != nil {
		t.Fatalf("notifier Close() error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(eventTypes) == 0 {
		t.Fatal("no webhook deliveries")
	}
	if last := eventTypes[len(eventTypes)-1]; last != notify.EventTypeTerminal {
		t.Errorf("last event type = %s, want %s", last, notify.EventTypeTerminal)
	}
}
