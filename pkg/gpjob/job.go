package gpjob

// Handle identifies a submitted job on the remote service. The controller
// treats it as opaque; only the RemoteClient interprets it.
type Handle string

// StatusSnapshot is the service's answer to one status fetch.
type StatusSnapshot struct {
	Status  Status
	Message string // latest progress message, may be empty
}

// Extent is the bounding box of a result layer.
type Extent struct {
	XMin float64 `json:"xmin"`
	YMin float64 `json:"ymin"`
	XMax float64 `json:"xmax"`
	YMax float64 `json:"ymax"`
	WKID int     `json:"wkid"` // spatial reference well-known ID
}

// ResultPayload is the outcome of a succeeded job: a renderable layer
// reference plus the extent a presentation layer should move to. The
// controller passes it through without interpretation.
type ResultPayload struct {
	LayerURL string `json:"layerUrl"`
	Extent   Extent `json:"extent"`
}

// Snapshot is the read-only view of a job handed to observers and returned
// by Controller.Snapshot. Result and Err stay nil until Status is terminal;
// after that exactly one of them is set (Canceled and Failed set Err,
// Succeeded sets Result).
type Snapshot struct {
	Handle   Handle
	Status   Status
	Messages []string // progress messages in arrival order
	Result   *ResultPayload
	Err      error
}

// job is the mutable record owned by one Controller. Everything outside the
// controller sees copies via snapshot.
type job struct {
	handle   Handle
	status   Status
	messages []string
	result   *ResultPayload
	err      error
}

func newJob() *job {
	return &job{status: StatusCreated}
}

// snapshot copies the record for publication. The result pointer is shared;
// payloads are never mutated once set.
func (j *job) snapshot() Snapshot {
	msgs := make([]string, len(j.messages))
	copy(msgs, j.messages)
	return Snapshot{
		Handle:   j.handle,
		Status:   j.status,
		Messages: msgs,
		Result:   j.result,
		Err:      j.err,
	}
}

// appendMessage records a progress message, dropping empties and immediate
// repeats.
func (j *job) appendMessage(msg string) {
	if msg == "" {
		return
	}
	if n := len(j.messages); n > 0 && j.messages[n-1] == msg {
		return
	}
	j.messages = append(j.messages, msg)
}
