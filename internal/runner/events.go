package runner

// EventType identifies a point in a job's observable timeline.
type EventType string

const (
	EventStarted   EventType = "started"
	EventProgress  EventType = "progress"
	EventFileError EventType = "file_error"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventCancelled EventType = "cancelled"
)

// Terminal reports whether no further events follow t for a job.
func (t EventType) Terminal() bool {
	switch t {
	case EventCompleted, EventFailed, EventCancelled:
		return true
	}
	return false
}

// Progress is the transient per-run copy state. Rebuilt for every run, never
// persisted.
type Progress struct {
	FilesDone   int
	FilesFailed int
	TotalFiles  int
	BytesDone   int64
	TotalBytes  int64
	Percent     int // whole percent, 0-100
	CurrentFile string
}

// Event is one entry in a job's ordered timeline. Events for a single job
// are strictly ordered; no PROGRESS ever follows a terminal event.
type Event struct {
	Type     EventType
	JobID    string
	JobName  string
	Progress Progress // set for EventProgress
	Path     string   // set for EventFileError
	Reason   string   // set for EventFileError and EventFailed
}
