// Package gpjob drives the client-side lifecycle of analysis jobs running on
// a remote processing service: submit, poll, notify, cancel, resolve.
//
// A Controller owns exactly one job. Callers build Parameters, call Submit,
// optionally Attach observers and request cancellation, and read the single
// terminal outcome through AwaitOutcome. The controller reaches the service
// only through the RemoteClient interface, which keeps the state machine
// independent of any particular transport.
package gpjob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"geotask/pkg/backoff"
)

// Config tunes a Controller. The zero value is usable; empty fields get the
// defaults documented per field.
type Config struct {
	// PollInterval is the pause between successful status fetches
	// (default: 500ms).
	PollInterval time.Duration

	// MaxStatusRetries bounds consecutive transient fetch failures before
	// the job fails with a communication error (default: 5).
	MaxStatusRetries int

	// RetryBackoff spaces the transient-failure retries
	// (default: backoff.Default()).
	RetryBackoff backoff.Policy

	// Token is the cancellation signal shared with the caller. A fresh
	// token is created when nil.
	Token *CancelToken

	// Metrics receives controller measurements. Nil disables recording.
	Metrics MetricsRecorder

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.MaxStatusRetries <= 0 {
		c.MaxStatusRetries = 5
	}
	if c.RetryBackoff == (backoff.Policy{}) {
		c.RetryBackoff = backoff.Default()
	}
	if c.Token == nil {
		c.Token = NewCancelToken()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Controller owns one job's lifecycle. Create one per submission; a
// controller is not reusable. All methods are safe for concurrent use.
type Controller struct {
	client RemoteClient
	cfg    Config
	logger *slog.Logger
	token  *CancelToken

	mu          sync.Mutex
	job         *job
	observers   []Observer
	notified    Status // last status delivered to observers
	resolved    bool
	submittedAt time.Time

	// done closes exactly once, when the terminal outcome is in place.
	done chan struct{}
}

// NewController builds the controller for one job. client must not be nil.
func NewController(client RemoteClient, cfg Config) *Controller {
	cfg = cfg.withDefaults()
	return &Controller{
		client: client,
		cfg:    cfg,
		logger: cfg.Logger.With("component", "gpjob.controller"),
		token:  cfg.Token,
		job:    newJob(),
		done:   make(chan struct{}),
	}
}

// Token returns the cancellation token shared with the polling loop. Setting
// it cancels the job; AwaitOutcome then returns the Canceled outcome.
func (c *Controller) Token() *CancelToken {
	return c.token
}

// Snapshot returns the job's current state. Before Submit the status is
// StatusCreated.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job.snapshot()
}

// Attach subscribes an observer to future status transitions. Transitions
// that already happened are not replayed.
func (c *Controller) Attach(o Observer) {
	if o == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Detach removes a previously attached observer, comparing by interface
// identity. Detaching an unknown observer is a no-op.
func (c *Controller) Detach(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.observers {
		if existing == o {
			c.observers = append(c.observers[:i], c.observers[i+1:]...)
			return
		}
	}
}

// Submit sends the parameters to the service and, once the service accepts,
// starts the polling loop on its own goroutine and returns. The rest of the
// lifecycle is observable through Attach, Snapshot, and AwaitOutcome.
//
// A controller accepts exactly one Submit. Later calls return
// ErrInvalidState and leave the running lifecycle untouched. If the service
// rejects the submission the job fails immediately with ErrSubmission, the
// loop never starts, and the same error is returned here.
func (c *Controller) Submit(ctx context.Context, params Parameters) error {
	c.mu.Lock()
	if c.job.status != StatusCreated {
		c.mu.Unlock()
		return InvalidState("controller.submit", "job already submitted")
	}
	c.job.status = StatusSubmitting
	c.submittedAt = time.Now()
	c.mu.Unlock()

	handle, err := c.client.Submit(ctx, params)
	if err != nil {
		if !errors.Is(err, ErrSubmission) {
			err = Submission(fmt.Sprintf("submit failed: %v", err), err)
		}
		c.logger.Warn("Job submission rejected", "mode", params.Mode(), "error", err)
		if snap, ok := c.resolve(StatusFailed, nil, err, ""); ok {
			c.emit(snap)
		}
		return err
	}

	c.mu.Lock()
	c.job.handle = handle
	c.job.status = StatusStarted
	snap := c.job.snapshot()
	c.mu.Unlock()

	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordJobSubmitted(ctx, params.Mode())
	}
	c.logger.Info("Job submitted", "handle", handle, "mode", params.Mode())

	c.emit(snap)
	go c.poll()
	return nil
}

// CancelRequested asks the service to stop the job and signals the polling
// loop through the shared token. Cancellation is cooperative: the service
// may finish the job anyway, and a terminal status fetched in the same
// iteration wins over the pending cancel.
//
// Only an in-flight job (Started or Paused) moves to CancelingRequested.
// Terminal, canceling, and still-submitting jobs are left alone and nil is
// returned; a job that was never submitted is a caller error.
func (c *Controller) CancelRequested(ctx context.Context) error {
	c.mu.Lock()
	cur := c.job.status
	handle := c.job.handle
	if cur != StatusStarted && cur != StatusPaused {
		c.mu.Unlock()
		if cur == StatusCreated {
			return InvalidState("controller.cancel", "job was never submitted")
		}
		return nil
	}
	c.job.status = StatusCancelingRequested
	c.mu.Unlock()

	c.logger.Info("Job cancellation requested", "handle", handle)
	if err := c.client.Cancel(ctx, handle); err != nil {
		// Best effort: our own loop stops regardless once the token fires.
		c.logger.Warn("Remote cancel request failed", "handle", handle, "error", err)
	}
	c.token.Cancel()
	return nil
}

// AwaitOutcome blocks until the job is terminal and returns its single
// outcome: the result payload for Succeeded, the job error for Failed and
// Canceled. Safe to call from any number of goroutines, before or after
// resolution; every call returns the same outcome.
//
// ctx bounds only this wait. On ctx expiry the job keeps running and can be
// awaited again. The shared CancelToken, in contrast, cancels the job
// itself: once it fires the wait ends with the loop's terminal outcome, or
// immediately with a Canceled outcome when nothing was ever submitted.
func (c *Controller) AwaitOutcome(ctx context.Context) (*ResultPayload, error) {
	select {
	case <-c.done:
		return c.outcome()
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.token.Done():
	}

	// Cancellation signaled. An in-flight lifecycle resolves itself (maybe
	// with a service outcome that beat the cancel); with nothing submitted
	// there is nothing to wait for.
	c.mu.Lock()
	pending := c.job.status != StatusCreated
	c.mu.Unlock()
	if !pending {
		return nil, Canceled("")
	}

	select {
	case <-c.done:
		return c.outcome()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Controller) outcome() (*ResultPayload, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job.result, c.job.err
}

func (c *Controller) handle() Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job.handle
}

// poll drives the job to a terminal state. It runs on its own goroutine and
// is the only writer of fetched statuses, which keeps notification order
// identical to transition order.
func (c *Controller) poll() {
	ctx := context.Background()
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		if c.token.Canceled() {
			c.finishCanceled()
			return
		}

		start := time.Now()
		fetched, err := c.client.FetchStatus(ctx, c.handle())
		if c.cfg.Metrics != nil {
			c.cfg.Metrics.RecordStatusPoll(ctx, time.Since(start).Seconds(), err != nil)
		}

		switch {
		case err == nil:
			failures = 0
			if c.apply(ctx, fetched) {
				return
			}

		case errors.Is(err, ErrCommunication):
			failures++
			if failures > c.cfg.MaxStatusRetries {
				ferr := &Error{
					Sentinel: ErrCommunication,
					Message:  fmt.Sprintf("status polling abandoned after %d attempts: %v", failures, err),
					Op:       "controller.poll",
					Handle:   c.handle(),
					Cause:    err,
				}
				c.logger.Error("Job failed: status polling exhausted", "handle", c.handle(), "attempts", failures, "error", err)
				if snap, ok := c.resolve(StatusFailed, nil, ferr, ""); ok {
					c.emit(snap)
				}
				return
			}
			c.logger.Warn("Status fetch failed, retrying", "handle", c.handle(), "attempt", failures, "error", err)
			if !c.wait(c.cfg.RetryBackoff.Delay(failures)) {
				c.finishCanceled()
				return
			}
			continue

		default:
			// The service itself reported the job broken or the handle
			// unknown. Fatal, no retry.
			c.logger.Error("Job failed on the service", "handle", c.handle(), "error", err)
			if snap, ok := c.resolve(StatusFailed, nil, err, ""); ok {
				c.emit(snap)
			}
			return
		}

		select {
		case <-ticker.C:
		case <-c.token.Done():
			// Handled at the top of the next iteration.
		}
	}
}

// apply folds one fetched status into the job and reports whether the job
// reached a terminal state.
func (c *Controller) apply(ctx context.Context, fetched StatusSnapshot) bool {
	switch fetched.Status {
	case StatusSucceeded:
		// A fetched terminal status wins over a pending cancellation.
		result, err := c.client.FetchResult(ctx, c.handle())
		if err != nil {
			ferr := &Error{
				Sentinel: ErrService,
				Message:  fmt.Sprintf("job succeeded but result fetch failed: %v", err),
				Op:       "controller.result",
				Handle:   c.handle(),
				Cause:    err,
			}
			c.logger.Error("Result fetch failed", "handle", c.handle(), "error", err)
			if snap, ok := c.resolve(StatusFailed, nil, ferr, fetched.Message); ok {
				c.emit(snap)
			}
			return true
		}
		c.logger.Info("Job succeeded", "handle", c.handle())
		if snap, ok := c.resolve(StatusSucceeded, result, nil, fetched.Message); ok {
			c.emit(snap)
		}
		return true

	case StatusFailed:
		c.logger.Warn("Job failed", "handle", c.handle(), "message", fetched.Message)
		if snap, ok := c.resolve(StatusFailed, nil, Service(c.handle(), fetched.Message), fetched.Message); ok {
			c.emit(snap)
		}
		return true

	case StatusCanceled:
		// Canceled on the service side, possibly by another actor.
		c.logger.Info("Job canceled by the service", "handle", c.handle())
		if snap, ok := c.resolve(StatusCanceled, nil, Canceled(c.handle()), fetched.Message); ok {
			c.emit(snap)
		}
		return true

	default:
		if snap, changed := c.advance(fetched.Status, fetched.Message); changed {
			c.emit(snap)
		}
		return false
	}
}

// advance applies a non-terminal fetched status, returning the fresh
// snapshot and whether the status actually changed. Once a cancel was
// requested locally, fetched non-terminal statuses no longer move the job;
// only a terminal outcome supersedes CancelingRequested.
func (c *Controller) advance(status Status, msg string) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.job.status.Terminal() {
		return Snapshot{}, false
	}
	if c.job.status == StatusCancelingRequested && status != StatusCancelingRequested {
		c.job.appendMessage(msg)
		return Snapshot{}, false
	}
	changed := c.job.status != status
	c.job.status = status
	c.job.appendMessage(msg)
	return c.job.snapshot(), changed
}

// finishCanceled resolves the Canceled outcome after the loop observes the
// token, emitting the CancelingRequested transition first when
// CancelRequested put the job there.
func (c *Controller) finishCanceled() {
	c.mu.Lock()
	var pre Snapshot
	emitPre := c.job.status == StatusCancelingRequested
	if emitPre {
		pre = c.job.snapshot()
	}
	c.mu.Unlock()

	if emitPre {
		c.emit(pre)
	}
	c.logger.Info("Job canceled", "handle", c.handle())
	if snap, ok := c.resolve(StatusCanceled, nil, Canceled(c.handle()), ""); ok {
		c.emit(snap)
	}
}

// resolve installs the terminal outcome exactly once and wakes AwaitOutcome.
// The outcome is published before observers run so a stuck observer cannot
// hold AwaitOutcome hostage. Returns false if the job was already resolved.
func (c *Controller) resolve(status Status, result *ResultPayload, err error, msg string) (Snapshot, bool) {
	c.mu.Lock()
	if c.resolved {
		c.mu.Unlock()
		return Snapshot{}, false
	}
	c.resolved = true
	c.job.status = status
	c.job.result = result
	c.job.err = err
	c.job.appendMessage(msg)
	snap := c.job.snapshot()
	startedAt := c.submittedAt
	c.mu.Unlock()

	if c.cfg.Metrics != nil {
		var seconds float64
		if !startedAt.IsZero() {
			seconds = time.Since(startedAt).Seconds()
		}
		c.cfg.Metrics.RecordJobResolved(context.Background(), status, seconds)
	}

	close(c.done)
	return snap, true
}

// emit delivers the snapshot to observers unless its status matches the last
// delivered one. Called only from the goroutine that currently owns the
// lifecycle, so observers see transitions in order.
func (c *Controller) emit(snap Snapshot) {
	c.mu.Lock()
	if c.notified == snap.Status {
		c.mu.Unlock()
		return
	}
	c.notified = snap.Status
	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	for _, o := range observers {
		c.notifyOne(o, snap)
	}
}

func (c *Controller) notifyOne(o Observer, snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Observer panicked", "handle", snap.Handle, "status", snap.Status, "panic", r)
		}
	}()
	o.OnStatusChanged(snap)
}

// wait sleeps for d, returning false if the cancel token fired first.
func (c *Controller) wait(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-c.token.Done():
		return false
	}
}
