package gpjob

import "context"

// MetricsRecorder receives controller measurements. Implementations must be
// safe for concurrent use. A nil recorder disables recording.
type MetricsRecorder interface {
	// RecordJobSubmitted counts one accepted submission.
	RecordJobSubmitted(ctx context.Context, mode ExecutionMode)

	// RecordJobResolved counts one terminal outcome together with the
	// job's lifetime from submission.
	RecordJobResolved(ctx context.Context, status Status, durationSeconds float64)

	// RecordStatusPoll times one status fetch. failed marks fetches that
	// returned an error.
	RecordStatusPoll(ctx context.Context, durationSeconds float64, failed bool)
}
