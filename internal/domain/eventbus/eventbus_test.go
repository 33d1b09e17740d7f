package eventbus

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBus_DeliversInOrder(t *testing.T) {
	b := New()

	var first, second []EventType
	b.Subscribe(func(e Event) { first = append(first, e.Type) })
	unsub := b.Subscribe(func(e Event) { second = append(second, e.Type) })

	b.Publish(Event{Type: EventObjectRecognized})
	b.Publish(Event{Type: EventFactsReady})
	unsub()
	unsub()
	b.Publish(Event{Type: EventPlaybackStarted})

	require.Equal(t, []EventType{EventObjectRecognized, EventFactsReady, EventPlaybackStarted}, first)
	require.Equal(t, []EventType{EventObjectRecognized, EventFactsReady}, second)
	require.True(t, b.HasSubscribers())
}

func TestBus_UnsubscribeSameLiteral(t *testing.T) {
	b := New()
	counts := make([]int, 2)
	var unsubs []func()
	for i := range counts {
		i := i
		unsubs = append(unsubs, b.Subscribe(func(Event) { counts[i]++ }))
	}

	unsubs[0]()
	b.Publish(Event{})

	require.Equal(t, []int{0, 1}, counts)
}

func TestCapitalize(t *testing.T) {
	tests := map[string]string{
		"cat":          "Cat",
		"coffee cup":   "Coffee Cup",
		"  tv  remote": "Tv Remote",
		"":             "",
		"élan":         "Élan",
	}
	for in, want := range tests {
		if got := Capitalize(in); got != want {
			t.Errorf("Capitalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConsoleHandler(t *testing.T) {
	var buf bytes.Buffer
	h := NewConsoleHandler(&buf)

	h.Handle(Event{ScanID: 3, Type: EventStateChanged, State: "recognizing"})
	h.Handle(Event{ScanID: 3, Type: EventStateChanged, State: "generating"})
	h.Handle(Event{ScanID: 3, Type: EventObjectRecognized, DisplayName: "Coffee Cup"})
	h.Handle(Event{ScanID: 3, Type: EventFailed, Reason: TextNoObjects})

	require.Equal(t,
		"[scan 3] "+TextGenerating+"\n"+
			"[scan 3] Detected: Coffee Cup\n"+
			"[scan 3] No objects detected\n",
		buf.String())
}
