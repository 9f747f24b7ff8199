package gpservice

import "geotask/pkg/gpjob"

// Wire-level job states reported by the analysis service.
const (
	WireSubmitted = "submitted"
	WireExecuting = "executing"
	WirePaused    = "paused"
	WireCanceling = "canceling"
	WireCanceled  = "canceled"
	WireSucceeded = "succeeded"
	WireFailed    = "failed"
)

// SubmitRequest is the body of POST /v1/analyses.
type SubmitRequest struct {
	Mode   string         `json:"mode"`
	Inputs map[string]any `json:"inputs"`
}

// SubmitResponse carries the handle the service assigned.
type SubmitResponse struct {
	JobID string `json:"jobId"`
}

// StatusResponse is the body of GET /v1/analyses/{id}.
type StatusResponse struct {
	JobID     string `json:"jobId"`
	JobStatus string `json:"jobStatus"`
	Message   string `json:"message,omitempty"`
}

// ResultResponse is the body of GET /v1/analyses/{id}/result.
type ResultResponse struct {
	LayerURL string       `json:"layerUrl"`
	Extent   gpjob.Extent `json:"extent"`
}

// ListResponse is the body of GET /v1/analyses.
type ListResponse struct {
	Analyses []StatusResponse `json:"analyses"`
}

// ErrorResponse is the error body the service attaches to non-2xx answers.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MapStatus converts a wire status to the controller's view. Queued and
// executing jobs both count as started; the distinction lives in the
// progress message.
func MapStatus(wire string) (gpjob.Status, bool) {
	switch wire {
	case WireSubmitted, WireExecuting:
		return gpjob.StatusStarted, true
	case WirePaused:
		return gpjob.StatusPaused, true
	case WireCanceling:
		return gpjob.StatusCancelingRequested, true
	case WireCanceled:
		return gpjob.StatusCanceled, true
	case WireSucceeded:
		return gpjob.StatusSucceeded, true
	case WireFailed:
		return gpjob.StatusFailed, true
	}
	return "", false
}

// encodeInputs renders typed parameter values into their JSON wire form.
func encodeInputs(params gpjob.Parameters) map[string]any {
	inputs := params.Inputs()
	out := make(map[string]any, len(inputs))
	for name, v := range inputs {
		if n, ok := v.AsNumber(); ok {
			out[name] = n
			continue
		}
		s, _ := v.AsString()
		out[name] = s
	}
	return out
}
