// Package sim implements an in-memory stand-in for the remote analysis
// service. Jobs advance through the wire lifecycle on a clock rather than by
// doing real work: a job is submitted, optionally pauses, executes for a
// configured duration, and then lands on succeeded, failed, or canceled.
//
// The engine exists so the client stack can be exercised end to end without
// a real geoprocessing backend. Phase boundaries are derived from creation
// time on every read, so the engine holds no per-job goroutines or timers.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"geotask/pkg/gpjob"
	"geotask/pkg/gpservice"
)

// Sentinel errors returned by engine operations. The API layer maps these
// onto HTTP statuses.
var (
	// ErrUnknownJob indicates the job ID does not exist, either because it
	// was never created or because retention already removed it.
	ErrUnknownJob = errors.New("unknown job")

	// ErrNotFinished indicates a result was requested before the job
	// reached the succeeded state.
	ErrNotFinished = errors.New("job has not finished successfully")

	// ErrInvalidMode indicates an unsupported execution mode.
	ErrInvalidMode = errors.New("unknown analysis mode")

	// ErrInvalidInput indicates a recognized input carried an unusable value.
	ErrInvalidInput = errors.New("invalid analysis input")
)

// maxExecSeconds caps the execSeconds input so a single job cannot pin a
// record in the executing phase indefinitely.
const maxExecSeconds = 300

// Config holds tuning for the simulated service.
type Config struct {
	QueueFor      time.Duration    // time a job spends queued before work begins (default 500ms)
	PauseFor      time.Duration    // length of the paused phase for jobs that request one (default 1s)
	ExecFor       time.Duration    // execution time unless overridden per job (default 2s)
	CancelLag     time.Duration    // delay between a cancel request and the canceled state (default 300ms)
	Retention     time.Duration    // how long finished jobs remain queryable (default 10m)
	SweepInterval time.Duration    // how often expired jobs are removed (default 1m)
	LayerURLBase  string           // base URL for result layer references
	Now           func() time.Time // clock override, used by tests
	Logger        *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.QueueFor <= 0 {
		c.QueueFor = 500 * time.Millisecond
	}
	if c.PauseFor <= 0 {
		c.PauseFor = time.Second
	}
	if c.ExecFor <= 0 {
		c.ExecFor = 2 * time.Second
	}
	if c.CancelLag <= 0 {
		c.CancelLag = 300 * time.Millisecond
	}
	if c.Retention <= 0 {
		c.Retention = 10 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.LayerURLBase == "" {
		c.LayerURLBase = "https://geotask.local/arcgis/rest/services/HotspotAnalysis"
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// record is the stored form of a simulated job. Everything about its
// lifecycle is derived from these fields plus the current time.
type record struct {
	id        string
	mode      string
	createdAt time.Time

	queueFor time.Duration
	pauseFor time.Duration // zero unless the job requested a pause
	execFor  time.Duration

	fail    bool
	failMsg string

	// canceledAt is zero until a cancel request lands before the job
	// finishes. Once set, the job reports canceling until the cancel lag
	// elapses, then canceled.
	canceledAt time.Time
}

// phaseAt derives the wire status from elapsed time, ignoring cancellation.
func (r *record) phaseAt(now time.Time) string {
	elapsed := now.Sub(r.createdAt)
	switch {
	case elapsed < r.queueFor:
		return gpservice.WireSubmitted
	case elapsed < r.queueFor+r.pauseFor:
		return gpservice.WirePaused
	case elapsed < r.queueFor+r.pauseFor+r.execFor:
		return gpservice.WireExecuting
	case r.fail:
		return gpservice.WireFailed
	default:
		return gpservice.WireSucceeded
	}
}

// statusAt derives the wire status including cancellation. Cancel is only
// recorded while the job is still running, so a set canceledAt always wins.
func (r *record) statusAt(now time.Time, lag time.Duration) string {
	if !r.canceledAt.IsZero() {
		if now.Before(r.canceledAt.Add(lag)) {
			return gpservice.WireCanceling
		}
		return gpservice.WireCanceled
	}
	return r.phaseAt(now)
}

// terminalAt reports when the job reached (or will reach) a terminal state.
func (r *record) terminalAt(lag time.Duration) time.Time {
	if !r.canceledAt.IsZero() {
		return r.canceledAt.Add(lag)
	}
	return r.createdAt.Add(r.queueFor + r.pauseFor + r.execFor)
}

// JobView is a point-in-time view of a simulated job.
type JobView struct {
	ID      string
	Status  string // wire status
	Message string
}

// ResultView is the payload of a successfully finished job.
type ResultView struct {
	LayerURL string
	Extent   gpjob.Extent
}

// Stats summarizes the engine's population, mostly for readiness reporting.
type Stats struct {
	Active   int
	Finished int
}

// resultExtent frames the demo study area around Portland, Oregon.
var resultExtent = gpjob.Extent{
	XMin: -123.0869,
	YMin: 45.4424,
	XMax: -122.4785,
	YMax: 45.6529,
	WKID: 4326,
}

// Engine stores simulated jobs and answers lifecycle queries about them.
// All methods are safe for concurrent use.
type Engine struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu   sync.RWMutex
	jobs map[string]*record

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewEngine creates an engine and starts its retention sweeper. Call Close
// to stop the sweeper.
func NewEngine(cfg Config) *Engine {
	cfg = cfg.withDefaults()

	e := &Engine{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "sim.engine"),
		now:    cfg.Now,
		jobs:   make(map[string]*record),
		done:   make(chan struct{}),
	}

	e.wg.Add(1)
	go e.sweep()

	return e
}

// Create registers a new job and returns its ID. Recognized inputs:
//
//   - "simulate": "fail" makes the job fail at completion, "pause" inserts
//     a paused phase between queueing and execution
//   - "execSeconds": overrides the execution duration, 0 to 300 seconds
//
// Unrecognized inputs (query strings, field names) are accepted and ignored,
// the way a real service tolerates parameters it does not chart.
func (e *Engine) Create(mode string, inputs map[string]any) (string, error) {
	if mode != string(gpjob.ModeSynchronous) && mode != string(gpjob.ModeAsyncSubmit) {
		return "", fmt.Errorf("%w %q", ErrInvalidMode, mode)
	}

	r := &record{
		id:       uuid.NewString(),
		mode:     mode,
		queueFor: e.cfg.QueueFor,
		execFor:  e.cfg.ExecFor,
	}

	for key, value := range inputs {
		switch key {
		case "simulate":
			directive, _ := value.(string)
			switch directive {
			case "fail":
				r.fail = true
				r.failMsg = "Analysis failed: simulated failure requested by the client."
			case "pause":
				r.pauseFor = e.cfg.PauseFor
			default:
				return "", fmt.Errorf("%w: unsupported simulate directive %q", ErrInvalidInput, directive)
			}
		case "execSeconds":
			seconds, ok := value.(float64)
			if !ok || seconds < 0 || seconds > maxExecSeconds {
				return "", fmt.Errorf("%w: execSeconds must be a number between 0 and %d", ErrInvalidInput, maxExecSeconds)
			}
			r.execFor = time.Duration(seconds * float64(time.Second))
		}
	}

	r.createdAt = e.now()

	e.mu.Lock()
	e.jobs[r.id] = r
	e.mu.Unlock()

	e.logger.Info("Job created", "jobId", r.id, "mode", mode)
	return r.id, nil
}

// Status reports the job's current wire status.
func (e *Engine) Status(id string) (JobView, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	r, ok := e.jobs[id]
	if !ok {
		return JobView{}, ErrUnknownJob
	}

	now := e.now()
	status := r.statusAt(now, e.cfg.CancelLag)
	return JobView{ID: id, Status: status, Message: e.message(r, status, now)}, nil
}

// List reports every job the engine currently holds, oldest first.
func (e *Engine) List() []JobView {
	e.mu.RLock()
	defer e.mu.RUnlock()

	records := make([]*record, 0, len(e.jobs))
	for _, r := range e.jobs {
		records = append(records, r)
	}
	slices.SortFunc(records, func(a, b *record) int {
		if c := a.createdAt.Compare(b.createdAt); c != 0 {
			return c
		}
		return strings.Compare(a.id, b.id)
	})

	now := e.now()
	views := make([]JobView, 0, len(records))
	for _, r := range records {
		status := r.statusAt(now, e.cfg.CancelLag)
		views = append(views, JobView{ID: r.id, Status: status, Message: e.message(r, status, now)})
	}
	return views
}

// Result returns the job's output. It is only available once the job has
// succeeded; any other state reports ErrNotFinished.
func (e *Engine) Result(id string) (ResultView, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	r, ok := e.jobs[id]
	if !ok {
		return ResultView{}, ErrUnknownJob
	}

	if r.statusAt(e.now(), e.cfg.CancelLag) != gpservice.WireSucceeded {
		return ResultView{}, ErrNotFinished
	}

	return ResultView{
		LayerURL: fmt.Sprintf("%s/jobs/%s/MapServer", e.cfg.LayerURLBase, id),
		Extent:   resultExtent,
	}, nil
}

// Cancel requests cancellation of a running job. Canceling a job that has
// already finished is a no-op: the completed outcome stands.
func (e *Engine) Cancel(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.jobs[id]
	if !ok {
		return ErrUnknownJob
	}

	now := e.now()
	if !r.canceledAt.IsZero() {
		return nil
	}
	switch r.phaseAt(now) {
	case gpservice.WireSucceeded, gpservice.WireFailed:
		e.logger.Debug("Cancel ignored, job already finished", "jobId", id)
		return nil
	}

	r.canceledAt = now
	e.logger.Info("Cancel requested", "jobId", id)
	return nil
}

// Stats counts jobs by whether they have reached a terminal state.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	now := e.now()
	var s Stats
	for _, r := range e.jobs {
		switch r.statusAt(now, e.cfg.CancelLag) {
		case gpservice.WireSucceeded, gpservice.WireFailed, gpservice.WireCanceled:
			s.Finished++
		default:
			s.Active++
		}
	}
	return s
}

// Ready reports whether the engine is accepting work. It fails once Close
// has been called, which flips readiness probes during shutdown.
func (e *Engine) Ready(ctx context.Context) error {
	select {
	case <-e.done:
		return errors.New("engine is closed")
	default:
		return nil
	}
}

// Close stops the retention sweeper. Safe to call more than once.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.done)
	})
	e.wg.Wait()
}

func (e *Engine) message(r *record, status string, now time.Time) string {
	switch status {
	case gpservice.WireSubmitted:
		return "Job accepted and queued."
	case gpservice.WirePaused:
		return "Job paused, waiting for available workers."
	case gpservice.WireExecuting:
		intoExec := now.Sub(r.createdAt) - r.queueFor - r.pauseFor
		progress := int(float64(intoExec) / float64(r.execFor) * 100)
		return fmt.Sprintf("Executing analysis (%d%% complete).", progress)
	case gpservice.WireSucceeded:
		return "Analysis completed successfully."
	case gpservice.WireFailed:
		return r.failMsg
	case gpservice.WireCanceling:
		return "Cancel requested, stopping analysis."
	case gpservice.WireCanceled:
		return "Job canceled by the client."
	default:
		return ""
	}
}

// sweep periodically removes jobs that finished longer than the retention
// period ago.
func (e *Engine) sweep() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
			e.removeExpired(e.now())
		}
	}
}

// removeExpired deletes every job whose terminal time is older than the
// retention period.
func (e *Engine) removeExpired(now time.Time) {
	e.mu.Lock()
	var expired []string
	for id, r := range e.jobs {
		switch r.statusAt(now, e.cfg.CancelLag) {
		case gpservice.WireSucceeded, gpservice.WireFailed, gpservice.WireCanceled:
			if now.Sub(r.terminalAt(e.cfg.CancelLag)) > e.cfg.Retention {
				expired = append(expired, id)
			}
		}
	}
	for _, id := range expired {
		delete(e.jobs, id)
	}
	e.mu.Unlock()

	if len(expired) > 0 {
		e.logger.Info("Maintenance complete", "cleaned", len(expired))
	}
}
