package gpjob

// Observer receives job status transitions from a Controller.
//
// Notifications arrive on the controller's lifecycle goroutine in the order
// the status changed, with consecutive identical statuses collapsed into
// one. Exactly one terminal notification ends the sequence, carrying the
// result or the error. Observers attached mid-flight see only transitions
// that happen after attachment; nothing is replayed.
//
// Callbacks should return promptly. A slow observer delays further
// deliveries but never the job outcome itself, and a panicking observer is
// recovered and logged without disturbing the job or other observers.
//
// Controllers compare observers by interface identity in Detach, so attach
// comparable values such as pointers.
type Observer interface {
	OnStatusChanged(snap Snapshot)
}
