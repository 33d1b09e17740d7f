package tts

import (
	"context"
	"encoding/base64"
	"strings"

	ttsapi "google.golang.org/api/texttospeech/v1"

	"github.com/wujunwei928/edge-tts-go/edge_tts"

	platformerrors "ar-scan-go/internal/platform/errors"
	"ar-scan-go/internal/platform/httpjson"
)

// Backend returns compressed audio for text.
type Backend interface {
	Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error)
}

// Sender performs one JSON call.
type Sender interface {
	Send(ctx context.Context, r httpjson.Request, out any) error
}

type GoogleConfig struct {
	URL           string
	APIKey        string
	AudioEncoding string
}

// GoogleBackend calls the Cloud Text-to-Speech text:synthesize endpoint.
type GoogleBackend struct {
	cfg    GoogleConfig
	client Sender
}

func NewGoogleBackend(cfg GoogleConfig, client Sender) *GoogleBackend {
	if cfg.AudioEncoding == "" {
		cfg.AudioEncoding = "MP3"
	}
	return &GoogleBackend{cfg: cfg, client: client}
}

func (b *GoogleBackend) Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error) {
	const op = "tts.google"

	req := &ttsapi.SynthesizeSpeechRequest{
		Input: &ttsapi.SynthesisInput{Text: text},
		Voice: &ttsapi.VoiceSelectionParams{
			LanguageCode: voice.LanguageCode,
			Name:         voice.Name,
			SsmlGender:   voice.Gender,
		},
		AudioConfig: &ttsapi.AudioConfig{AudioEncoding: b.cfg.AudioEncoding},
	}

	var resp ttsapi.SynthesizeSpeechResponse
	if err := b.client.Send(ctx, httpjson.Request{
		URL:    b.cfg.URL,
		APIKey: b.cfg.APIKey,
		Body:   req,
	}, &resp); err != nil {
		return nil, err
	}

	if strings.TrimSpace(resp.AudioContent) == "" {
		return nil, platformerrors.New(platformerrors.KindParse, op, "response has no audioContent")
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindDecode, op, "decode audioContent", err)
	}
	return audio, nil
}

// EdgeBackend uses the Microsoft Edge read-aloud service. It always returns
// MP3.
type EdgeBackend struct {
	voice string
}

// NewEdgeBackend uses voice when set, otherwise the per-call voice name.
func NewEdgeBackend(voice string) *EdgeBackend {
	return &EdgeBackend{voice: voice}
}

func (b *EdgeBackend) Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error) {
	const op = "tts.edge"

	name := b.voice
	if name == "" {
		name = voice.Name
	}

	type result struct {
		audio []byte
		err   error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := edge_tts.NewCommunicate(text, edge_tts.SetVoice(name))
		if err != nil {
			done <- result{err: err}
			return
		}
		audio, err := conn.Stream()
		done <- result{audio: audio, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, platformerrors.Wrap(platformerrors.KindTransport, op, "edge synthesis", r.err)
		}
		if len(r.audio) == 0 {
			return nil, platformerrors.New(platformerrors.KindParse, op, "edge returned no audio")
		}
		return r.audio, nil
	}
}
