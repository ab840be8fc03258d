package queue

import (
	"time"

	"mediacopier/internal/matching"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusSet[s]
	return ok
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the move from s to next is legal. Running
// may repeat (progress updates); terminal states accept nothing.
func (s Status) CanTransitionTo(next Status) bool {
	if !next.Valid() {
		return false
	}
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusCancelled
	case StatusRunning:
		return next == StatusRunning || next.IsTerminal()
	default:
		return false
	}
}

// OrganizationMode selects how matched files are laid out on the destination.
type OrganizationMode string

const (
	SingleFolder     OrganizationMode = "single_folder"
	ScatterByArtist  OrganizationMode = "scatter_by_artist"
	ScatterByGenre   OrganizationMode = "scatter_by_genre"
	FolderPerRequest OrganizationMode = "folder_per_request"
	KeepRelative     OrganizationMode = "keep_relative"
)

// Valid reports whether m is a known organization mode.
func (m OrganizationMode) Valid() bool {
	switch m {
	case SingleFolder, ScatterByArtist, ScatterByGenre, FolderPerRequest, KeepRelative:
		return true
	}
	return false
}

// JobItem is one file scheduled for copying.
type JobItem struct {
	Source  string `json:"source"`
	Label   string `json:"label"`
	Bytes   int64  `json:"bytes"`
	Artist  string `json:"artist,omitempty"`
	Genre   string `json:"genre,omitempty"`
	RelPath string `json:"rel_path,omitempty"`
}

// Job is one unit of copy work. Rules is a snapshot taken at creation time;
// mutating the source rules afterwards never affects a queued job.
type Job struct {
	ID          string
	Name        string
	OrderID     string
	Items       []JobItem
	Status      Status
	Progress    int // whole percent, 0-100
	Rules       matching.CopyRules
	Mode        OrganizationMode
	NoMatches   bool
	DestDir     string
	ErrorDetail string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Clone returns a deep copy safe to hand to callers.
func (j Job) Clone() Job {
	out := j
	out.Items = make([]JobItem, len(j.Items))
	copy(out.Items, j.Items)
	out.Rules = j.Rules.Clone()
	return out
}

// TotalBytes sums the planned byte count across items.
func (j Job) TotalBytes() int64 {
	var total int64
	for _, item := range j.Items {
		total += item.Bytes
	}
	return total
}
