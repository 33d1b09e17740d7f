package eventbus

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// TopicScan carries every presentation event.
const TopicScan = "scan:event"

// EventType discriminates Event.
type EventType string

const (
	EventStateChanged     EventType = "state_changed"
	EventObjectRecognized EventType = "object_recognized"
	EventFactsReady       EventType = "facts_ready"
	EventPlaybackStarted  EventType = "playback_started"
	EventFailed           EventType = "failed"
)

// Event is what the presentation side renders. State is the pipeline state
// after the event was applied.
type Event struct {
	ScanID      uint64    `json:"scan_id"`
	TraceID     string    `json:"trace_id"`
	Type        EventType `json:"type"`
	State       string    `json:"state"`
	Label       string    `json:"label,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Text        string    `json:"text,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`
}

// Capitalize upper-cases the first letter of every space separated word.
func Capitalize(label string) string {
	words := strings.Fields(label)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
