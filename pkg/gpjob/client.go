package gpjob

import "context"

// RemoteClient is the controller's only door to the remote processing
// service. Implementations own transport, encoding, and authentication; the
// controller owns the state machine and interprets nothing beyond the error
// taxonomy below.
//
// # Error classification
//
// Implementations classify failures so the controller can tell transient
// from fatal:
//
//   - Submit returns ErrSubmission when the service rejects the parameters
//     or cannot be reached. Fatal to the job, never retried.
//   - FetchStatus returns ErrCommunication for transient transport failures,
//     which the polling loop retries, and ErrService when the service
//     reports the handle unknown or the job broken, which it does not.
//   - FetchResult returns ErrResultUnavailable while the job has not
//     succeeded.
//   - Cancel is advisory; its error means only that the stop request did not
//     get through.
type RemoteClient interface {
	// Submit sends the parameters and returns the service-assigned handle.
	// The service starts working as a side effect.
	Submit(ctx context.Context, params Parameters) (Handle, error)

	// FetchStatus reports the job's current status and latest progress
	// message.
	FetchStatus(ctx context.Context, handle Handle) (StatusSnapshot, error)

	// FetchResult returns the result payload of a succeeded job.
	FetchResult(ctx context.Context, handle Handle) (*ResultPayload, error)

	// Cancel asks the service to stop the job. The service may finish the
	// job anyway; the controller's own loop decides the final outcome.
	Cancel(ctx context.Context, handle Handle) error
}
