package syncer

import "time"

// State is the orchestrator's position in the sync cycle.
type State string

const (
	StateIdle        State = "idle"
	StateChecking    State = "checking"
	StateDownloading State = "downloading"
	StateExtracting  State = "extracting"
	StateSuccess     State = "success"
	StateError       State = "error"
)

// DataSource says where the records currently served came from.
type DataSource string

const (
	SourceOffline DataSource = "offline"
	SourceCache   DataSource = "cache"
	SourceRemote  DataSource = "remote"
)

// Progress reports download progress. Total is zero when unknown.
type Progress struct {
	Bytes int64
	Total int64
}

// Fraction returns Bytes/Total in [0,1], or 0 when Total is unknown.
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	f := float64(p.Bytes) / float64(p.Total)
	if f > 1 {
		return 1
	}
	return f
}

// Status is a snapshot of the orchestrator. Values returned by Status()
// and carried by events are copies; mutating them has no effect.
type Status struct {
	State            State
	DataSource       DataSource
	CurrentVersion   string
	AvailableVersion string
	LastSync         time.Time
	Err              error
	Message          string
	Progress         *Progress
	RateLimitedUntil time.Time
}

// UpdateAvailable reports whether a newer release than the installed
// one has been seen.
func (s Status) UpdateAvailable() bool {
	return s.AvailableVersion != ""
}

func (s Status) clone() Status {
	out := s
	if s.Progress != nil {
		p := *s.Progress
		out.Progress = &p
	}
	return out
}
