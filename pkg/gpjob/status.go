package gpjob

// Status is the lifecycle state of a job as seen by the controller.
type Status string

// Lifecycle states. Created and the three terminal states are rest states;
// Submitting and CancelingRequested are transient and always resolve.
const (
	StatusCreated            Status = "created"
	StatusSubmitting         Status = "submitting"
	StatusStarted            Status = "started"
	StatusPaused             Status = "paused"
	StatusCancelingRequested Status = "cancelingRequested"
	StatusSucceeded          Status = "succeeded"
	StatusFailed             Status = "failed"
	StatusCanceled           Status = "canceled"
)

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}
