package scan

// State is the pipeline's single live state.
type State string

const (
	StateIdle         State = "idle"
	StateCapturing    State = "capturing"
	StateRecognizing  State = "recognizing"
	StateGenerating   State = "generating"
	StateSynthesizing State = "synthesizing"
	StateSpeaking     State = "speaking"
	StateFailed       State = "failed"
)

// Busy reports whether a scan is in flight in s.
func (s State) Busy() bool {
	switch s {
	case StateIdle, StateFailed:
		return false
	default:
		return true
	}
}

// Outcome is delivered once per scan on its Ticket.
type Outcome struct {
	ScanID uint64
	State  State
	Label  string
	Facts  string
	// Err is the failure that ended the scan: the recognition error for
	// StateFailed, the synthesis error for a silent scan, or the context
	// error when the scan was cancelled.
	Err error
	// Superseded is set when a newer scan took over before this one ended.
	Superseded bool
}

// Ticket identifies an accepted scan.
type Ticket struct {
	ID      uint64
	TraceID string
	Done    <-chan Outcome
}

// Snapshot is the visible state of the most recent scan.
type Snapshot struct {
	ScanID  uint64 `json:"scan_id"`
	TraceID string `json:"trace_id,omitempty"`
	State   State  `json:"state"`
	Label   string `json:"label,omitempty"`
	Facts   string `json:"facts,omitempty"`
	Reason  string `json:"reason,omitempty"`
}
