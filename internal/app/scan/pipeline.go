// Package scan runs capture, recognition, fact generation and speech as one
// user-facing scan, with at most one scan active at a time.
package scan

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"ar-scan-go/internal/domain/capture"
	"ar-scan-go/internal/domain/eventbus"
	"ar-scan-go/internal/domain/llm"
	"ar-scan-go/internal/domain/tts"
	"ar-scan-go/internal/domain/vision"
	platformerrors "ar-scan-go/internal/platform/errors"
	"ar-scan-go/internal/platform/httpjson"
	"ar-scan-go/internal/platform/logging"
	"ar-scan-go/internal/platform/observability"
)

// Recognizer picks a label for a capture.
type Recognizer interface {
	Detect(ctx context.Context, raw []byte) (*vision.RecognitionResult, error)
}

// Speaker synthesizes and plays speech.
type Speaker interface {
	Synthesize(ctx context.Context, text string) (*tts.AudioArtifact, error)
	Play(ctx context.Context, art *tts.AudioArtifact) (<-chan error, error)
}

// PipelineConfig wires the stage services.
type PipelineConfig struct {
	Recognizer Recognizer
	Generator  llm.Generator
	Speaker    Speaker
	Bus        *eventbus.Bus
	Logger     *logging.Logger
}

type Pipeline struct {
	recognizer Recognizer
	generator  llm.Generator
	speaker    Speaker
	bus        *eventbus.Bus
	logger     *logging.Logger

	mu      sync.Mutex
	state   State
	nextID  uint64
	current *run
	closed  bool
	wg      sync.WaitGroup
}

// run is one scan. Its fields other than ctx are guarded by Pipeline.mu.
type run struct {
	id      uint64
	traceID string
	ctx     context.Context
	cancel  context.CancelFunc
	label   string
	facts   string
	reason  string
	done    chan Outcome
}

func NewPipeline(cfg *PipelineConfig) (*Pipeline, error) {
	if cfg == nil || cfg.Recognizer == nil || cfg.Generator == nil || cfg.Speaker == nil {
		return nil, platformerrors.New(platformerrors.KindBootstrap, "scan.new", "recognizer, generator and speaker are required")
	}
	bus := cfg.Bus
	if bus == nil {
		bus = eventbus.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Pipeline{
		recognizer: cfg.Recognizer,
		generator:  cfg.Generator,
		speaker:    cfg.Speaker,
		bus:        bus,
		logger:     logger,
		state:      StateIdle,
	}, nil
}

// Bus is where the pipeline publishes its events.
func (p *Pipeline) Bus() *eventbus.Bus { return p.bus }

// Scan starts a new scan and supersedes the active one, whose context is
// cancelled and whose later results are dropped. ctx bounds the whole scan,
// so callers serving a request should pass a context that outlives it.
func (p *Pipeline) Scan(ctx context.Context, src capture.Source) (*Ticket, error) {
	if src == nil {
		return nil, platformerrors.New(platformerrors.KindCapture, "scan.start", "capture source is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, platformerrors.New(platformerrors.KindDomain, "scan.start", "pipeline is closed")
	}

	if prev := p.current; prev != nil {
		if p.state.Busy() {
			p.logger.InfoTag(logging.TagScan, "scan %d superseded in state %s", prev.id, p.state)
			observability.RecordMetric(ctx, "scan.superseded", 1, map[string]string{"state": string(p.state)})
		}
		prev.cancel()
	}

	p.nextID++
	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		id:      p.nextID,
		traceID: uuid.NewString(),
		ctx:     runCtx,
		cancel:  cancel,
		done:    make(chan Outcome, 1),
	}
	p.current = r
	p.setState(r, StateCapturing)

	p.logger.InfoTag(logging.TagScan, "scan %d started (trace %s)", r.id, r.traceID)

	p.wg.Add(1)
	go p.execute(r, src)

	return &Ticket{ID: r.id, TraceID: r.traceID, Done: r.done}, nil
}

// State returns the live pipeline state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Current describes the most recent scan.
func (p *Pipeline) Current() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Snapshot{State: p.state}
	if r := p.current; r != nil {
		s.ScanID = r.id
		s.TraceID = r.traceID
		s.Label = r.label
		s.Facts = r.facts
		s.Reason = r.reason
	}
	return s
}

// Close cancels the active scan, waits for it and rejects new scans.
func (p *Pipeline) Close() {
	p.mu.Lock()
	p.closed = true
	if p.current != nil {
		p.current.cancel()
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pipeline) execute(r *run, src capture.Source) {
	defer p.wg.Done()
	defer r.cancel()

	ctx := r.ctx
	start := time.Now()

	_, end := observability.StartSpan(ctx, "scan", "capture")
	raw, err := src.Capture(ctx)
	end(err)
	if err != nil {
		p.fail(r, "Error: "+describe(err), err)
		return
	}
	if !p.commit(r, func() { p.setState(r, StateRecognizing) }) {
		p.abandon(r)
		return
	}

	_, end = observability.StartSpan(ctx, "scan", "recognize")
	result, err := p.recognizer.Detect(ctx, raw)
	end(err)
	if err != nil {
		reason := "Error: " + describe(err)
		if platformerrors.IsKind(err, platformerrors.KindNoObjects) {
			reason = eventbus.TextNoObjects
		}
		p.fail(r, reason, err)
		return
	}
	if !p.commit(r, func() {
		r.label = result.Label
		p.state = StateGenerating
		p.publish(r, eventbus.Event{
			Type:        eventbus.EventObjectRecognized,
			Label:       result.Label,
			DisplayName: eventbus.Capitalize(result.Label),
		})
		p.publish(r, eventbus.Event{Type: eventbus.EventStateChanged})
	}) {
		p.abandon(r)
		return
	}

	_, end = observability.StartSpan(ctx, "scan", "generate")
	facts, err := p.generator.GenerateFacts(ctx, result.Label)
	end(err)
	if err != nil && ctx.Err() == nil {
		p.logger.WarnTag(logging.TagLLM, "scan %d: generation failed, showing fallback: %v", r.id, err)
		facts = llm.FallbackFor(err)
	}
	if !p.commit(r, func() {
		r.facts = facts
		p.publish(r, eventbus.Event{Type: eventbus.EventFactsReady, Label: r.label, Text: facts})
		p.setState(r, StateSynthesizing)
	}) {
		p.abandon(r)
		return
	}

	_, end = observability.StartSpan(ctx, "scan", "synthesize")
	art, err := p.speaker.Synthesize(ctx, facts)
	end(err)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.WarnTag(logging.TagTTS, "scan %d: speech skipped: %v", r.id, err)
		}
		if !p.commit(r, func() { p.setState(r, StateIdle) }) {
			p.abandon(r)
			return
		}
		p.finish(r, StateIdle, err)
		return
	}

	var playback <-chan error
	if !p.commit(r, func() {
		playback, err = p.speaker.Play(ctx, art)
		if err != nil {
			p.logger.WarnTag(logging.TagAudio, "scan %d: playback not started: %v", r.id, err)
			p.setState(r, StateIdle)
			return
		}
		p.state = StateSpeaking
		p.publish(r, eventbus.Event{Type: eventbus.EventPlaybackStarted})
	}) {
		p.abandon(r)
		return
	}
	if err != nil {
		p.finish(r, StateIdle, err)
		return
	}

	playErr := <-playback
	if !p.commit(r, func() { p.setState(r, StateIdle) }) {
		p.abandon(r)
		return
	}
	if playErr != nil {
		p.logger.WarnTag(logging.TagAudio, "scan %d: playback ended with error: %v", r.id, playErr)
	}

	p.logger.InfoTag(logging.TagScan, "scan %d completed in %s", r.id, time.Since(start).Round(time.Millisecond))
	p.finish(r, StateIdle, nil)
}

// commit applies fn under the lock only while r is the live, uncancelled
// scan. Every state change and publication goes through here.
func (p *Pipeline) commit(r *run, fn func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != r || r.ctx.Err() != nil {
		return false
	}
	fn()
	return true
}

func (p *Pipeline) fail(r *run, reason string, cause error) {
	if !p.commit(r, func() {
		r.reason = reason
		p.state = StateFailed
		p.publish(r, eventbus.Event{Type: eventbus.EventFailed, Label: r.label, Reason: reason})
	}) {
		p.abandon(r)
		return
	}
	p.logger.WarnTag(logging.TagScan, "scan %d failed: %v", r.id, cause)
	p.finish(r, StateFailed, cause)
}

// abandon ends a scan whose results may no longer be shown. A scan that was
// cancelled while still current returns the pipeline to idle.
func (p *Pipeline) abandon(r *run) {
	p.mu.Lock()
	superseded := p.current != r
	if !superseded {
		p.setState(r, StateIdle)
	}
	p.mu.Unlock()

	p.logger.DebugTag(logging.TagScan, "scan %d abandoned (superseded=%v)", r.id, superseded)
	p.deliver(r, Outcome{
		ScanID:     r.id,
		State:      StateIdle,
		Err:        context.Cause(r.ctx),
		Superseded: superseded,
	})
}

func (p *Pipeline) finish(r *run, state State, err error) {
	p.mu.Lock()
	out := Outcome{ScanID: r.id, State: state, Label: r.label, Facts: r.facts, Err: err}
	p.mu.Unlock()
	p.deliver(r, out)
}

func (p *Pipeline) deliver(r *run, out Outcome) {
	r.done <- out
	close(r.done)
}

// setState must be called with p.mu held.
func (p *Pipeline) setState(r *run, s State) {
	p.state = s
	p.publish(r, eventbus.Event{Type: eventbus.EventStateChanged})
}

// publish must be called with p.mu held.
func (p *Pipeline) publish(r *run, e eventbus.Event) {
	e.ScanID = r.id
	e.TraceID = r.traceID
	e.State = string(p.state)
	e.At = time.Now()
	p.bus.Publish(e)
}

// describe turns a stage error into the text after "Error: ".
func describe(err error) string {
	var status *httpjson.StatusError
	if errors.As(err, &status) {
		return status.Error()
	}
	var typed *platformerrors.Error
	if errors.As(err, &typed) {
		if typed.Cause != nil {
			return typed.Message + ": " + typed.Cause.Error()
		}
		return typed.Message
	}
	return err.Error()
}
