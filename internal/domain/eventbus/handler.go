package eventbus

import (
	"fmt"
	"io"
	"sync"
)

// Presentation strings.
const (
	TextGenerating = "Generating interesting facts..."
	TextNoObjects  = "No objects detected"
)

// ConsoleHandler renders events as plain lines, one per visible change.
type ConsoleHandler struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleHandler(w io.Writer) *ConsoleHandler {
	return &ConsoleHandler{w: w}
}

func (h *ConsoleHandler) Handle(e Event) {
	line := Render(e)
	if line == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintf(h.w, "[scan %d] %s\n", e.ScanID, line)
}

// Render returns the user-visible text for e, or "" when e changes nothing
// on screen.
func Render(e Event) string {
	switch e.Type {
	case EventObjectRecognized:
		return "Detected: " + e.DisplayName
	case EventFactsReady:
		return e.Text
	case EventPlaybackStarted:
		return "Speaking..."
	case EventFailed:
		return e.Reason
	case EventStateChanged:
		if e.State == "generating" {
			return TextGenerating
		}
	}
	return ""
}
