// Package backoff provides exponential backoff schedules for retry loops.
package backoff

import (
	"math/rand/v2"
	"time"
)

// Policy describes an exponential backoff schedule. Zero fields fall back to
// the defaults documented per field, so Policy{} behaves like Default()
// without jitter.
type Policy struct {
	Initial    time.Duration // delay before the first retry (default: 100ms)
	Max        time.Duration // ceiling for any single delay (default: 5s)
	Multiplier float64       // growth factor between attempts (default: 2)
	Jitter     bool          // draw each delay uniformly from (0, delay]
}

// Default returns the schedule used by polling and delivery retries:
// 100ms doubling up to 5s, jittered so concurrent clients spread out.
func Default() Policy {
	return Policy{
		Initial:    100 * time.Millisecond,
		Max:        5 * time.Second,
		Multiplier: 2,
		Jitter:     true,
	}
}

// Delay returns the wait before the given retry. Attempt 1 maps to Initial,
// attempt 2 to Initial*Multiplier, and so on, capped at Max. Attempts below
// 1 are treated as 1.
func (p Policy) Delay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	ceiling := p.Max
	if ceiling <= 0 {
		ceiling = 5 * time.Second
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 2
	}

	delay := float64(initial)
	for i := 1; i < attempt; i++ {
		delay *= multiplier
		if delay >= float64(ceiling) {
			break
		}
	}
	if delay > float64(ceiling) {
		delay = float64(ceiling)
	}

	d := time.Duration(delay)
	if p.Jitter && d > 0 {
		d = time.Duration(rand.Int64N(int64(d))) + 1
	}
	return d
}
