package gpjob

import (
	"errors"
	"fmt"
)

// Sentinel errors for classifying job failures with errors.Is. Constructors
// below attach context; the sentinels stay comparable.
var (
	// ErrSubmission marks a submission the service rejected or that never
	// reached it. Fatal: the polling loop never starts.
	ErrSubmission = errors.New("submission rejected")

	// ErrCommunication marks a transient transport failure while polling.
	// The loop retries these up to its configured budget.
	ErrCommunication = errors.New("communication failure")

	// ErrService marks a failure reported by the service itself: an unknown
	// handle or a job the service declared broken. Fatal, never retried.
	ErrService = errors.New("service failure")

	// ErrResultUnavailable marks a result fetch for a job that has not
	// succeeded.
	ErrResultUnavailable = errors.New("result unavailable")

	// ErrInvalidState marks a caller contract violation, such as submitting
	// twice or canceling a job that was never submitted.
	ErrInvalidState = errors.New("invalid state")

	// ErrCanceled is the terminal error of a canceled job.
	ErrCanceled = errors.New("job canceled")
)

// Error carries structured context about a job failure. Use errors.Is with
// the sentinels to classify and errors.As to reach the fields.
type Error struct {
	Sentinel error  // classification sentinel, returned by Unwrap
	Message  string // human-readable description
	Op       string // operation that failed, e.g. "controller.poll"
	Handle   Handle // remote job handle, if one was assigned
	Cause    error  // underlying error, if any
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the sentinel so errors.Is can classify the failure.
func (e *Error) Unwrap() error {
	return e.Sentinel
}

// Submission builds the fatal error for a rejected or failed submission.
func Submission(message string, cause error) error {
	return &Error{Sentinel: ErrSubmission, Message: message, Op: "client.submit", Cause: cause}
}

// Communication builds the error for a transient transport failure.
func Communication(op string, cause error) error {
	return &Error{
		Sentinel: ErrCommunication,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// Service builds the error for a failure the service itself reported.
func Service(handle Handle, message string) error {
	if message == "" {
		message = "job failed on the service"
	}
	return &Error{Sentinel: ErrService, Message: message, Handle: handle}
}

// ResultUnavailable builds the error for a result requested before the job
// succeeded.
func ResultUnavailable(handle Handle, status Status) error {
	return &Error{
		Sentinel: ErrResultUnavailable,
		Message:  fmt.Sprintf("job %s has no result in status %q", handle, status),
		Handle:   handle,
	}
}

// InvalidState builds the error for an operation invoked out of order.
func InvalidState(op, message string) error {
	return &Error{Sentinel: ErrInvalidState, Message: message, Op: op}
}

// Canceled builds the terminal error recorded on a canceled job.
func Canceled(handle Handle) error {
	return &Error{Sentinel: ErrCanceled, Message: "job canceled", Handle: handle}
}
