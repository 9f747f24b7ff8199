// Package testutil provides polling helpers for tests that wait on
// asynchronous lifecycle progress.
package testutil

import (
	"sync/atomic"
	"testing"
	"time"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultInterval = 20 * time.Millisecond
)

// WaitOptions configures WaitFor behavior.
type WaitOptions struct {
	Timeout  time.Duration
	Interval time.Duration
}

// WaitOption is a functional option for WaitFor.
type WaitOption func(*WaitOptions)

// WithTimeout sets the maximum wait time (default: 10s).
func WithTimeout(d time.Duration) WaitOption {
	return func(o *WaitOptions) { o.Timeout = d }
}

// WithInterval sets the polling interval (default: 20ms).
func WithInterval(d time.Duration) WaitOption {
	return func(o *WaitOptions) { o.Interval = d }
}

// WaitFor polls condition until it returns true or the timeout passes.
// Returns whether the condition was met.
func WaitFor(tb testing.TB, condition func() bool, opts ...WaitOption) bool {
	tb.Helper()

	o := WaitOptions{Timeout: defaultTimeout, Interval: defaultInterval}
	for _, opt := range opts {
		opt(&o)
	}

	if condition() {
		return true
	}

	ticker := time.NewTicker(o.Interval)
	defer ticker.Stop()
	timeout := time.After(o.Timeout)

	for {
		select {
		case <-ticker.C:
			if condition() {
				return true
			}
		case <-timeout:
			// One last look in case the condition flipped during the
			// final interval.
			return condition()
		}
	}
}

// WaitForCount polls until counter reaches at least target or the timeout
// passes. Returns whether the target was reached.
func WaitForCount(tb testing.TB, counter *atomic.Int64, target int64, opts ...WaitOption) bool {
	tb.Helper()
	return WaitFor(tb, func() bool { return counter.Load() >= target }, opts...)
}

// MustWaitFor polls until condition returns true, failing the test on
// timeout.
func MustWaitFor(tb testing.TB, condition func() bool, opts ...WaitOption) {
	tb.Helper()
	if !WaitFor(tb, condition, opts...) {
		tb.Fatal("timed out waiting for condition")
	}
}

// MustWaitForCount polls until counter reaches at least target, failing the
// test on timeout.
func MustWaitForCount(tb testing.TB, counter *atomic.Int64, target int64, opts ...WaitOption) {
	tb.Helper()
	if !WaitForCount(tb, counter, target, opts...) {
		tb.Fatalf("timed out waiting for counter to reach %d (current: %d)", target, counter.Load())
	}
}
