package notify

import (
	"log/slog"

	"geotask/pkg/cloudevent"
	"geotask/pkg/gpjob"
)

// Event types emitted for job lifecycle changes.
const (
	// EventTypeStatus marks an in-flight status change.
	EventTypeStatus = "geotask.job.status"

	// EventTypeTerminal marks the job's terminal outcome.
	EventTypeTerminal = "geotask.job.terminal"
)

// eventSource identifies the emitting component in the CloudEvents envelope.
const eventSource = "geotask/controller"

// WebhookObserver forwards controller status changes to the notifier as
// CloudEvents. It implements gpjob.Observer; attach it to a controller to
// mirror the job lifecycle to a webhook.
type WebhookObserver struct {
	notifier *Notifier
	logger   *slog.Logger
}

// NewWebhookObserver creates an observer that feeds the given notifier.
func NewWebhookObserver(n *Notifier) *WebhookObserver {
	return &WebhookObserver{
		notifier: n,
		logger:   slog.With("component", "notify.observer"),
	}
}

// OnStatusChanged converts the snapshot into a CloudEvent and queues it.
// Terminal outcomes get their own event type so webhook consumers can route
// completion separately from progress.
func (o *WebhookObserver) OnStatusChanged(snap gpjob.Snapshot) {
	data := map[string]any{
		"jobId":  string(snap.Handle),
		"status": string(snap.Status),
	}
	if len(snap.Messages) > 0 {
		data["message"] = snap.Messages[len(snap.Messages)-1]
	}
	if snap.Err != nil {
		data["error"] = snap.Err.Error()
	}
	if snap.Result != nil {
		data["layerUrl"] = snap.Result.LayerURL
	}

	eventType := EventTypeStatus
	if snap.Status.Terminal() {
		eventType = EventTypeTerminal
	}

	event := cloudevent.New(eventType, eventSource, string(snap.Handle), data)
	if err := o.notifier.Enqueue(event); err != nil {
		o.logger.Warn("Notification not queued", "jobId", snap.Handle, "status", snap.Status, "error", err)
	}
}

// Verify WebhookObserver implements gpjob.Observer
var _ gpjob.Observer = (*WebhookObserver)(nil)
