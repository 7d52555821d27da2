package domain

// QueueEntry is the ephemeral unit of work handed to the ingestion worker.
// Entries are never persisted; a process restart loses whatever is queued.
type QueueEntry struct {
	ContentID       string
	UserID          string
	Kind            ContentKind
	SourceLink      string
	UserDescription string
	RetryCount      int
}

// QueueStatus is a snapshot of the ingestion queue reported by the status
// endpoint. It reflects reality as of the last completed worker step.
type QueueStatus struct {
	Length   int  `json:"length"`
	Draining bool `json:"draining"`
}
