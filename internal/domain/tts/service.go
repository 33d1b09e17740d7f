// Package tts synthesizes speech, stages it in a process-scoped temp file,
// decodes it into a playable clip and plays it.
package tts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	platformerrors "ar-scan-go/internal/platform/errors"
	"ar-scan-go/internal/platform/logging"
)

type Options struct {
	Backend Backend
	Decoder Decoder
	Player  Player
	Voices  VoiceSet
	Female  bool
	// CleanupGrace is waited after the decoder released the file.
	CleanupGrace time.Duration
	// TempDir is the parent of the process-scoped directory. Empty means
	// os.TempDir.
	TempDir string
	Logger  *logging.Logger
}

type Service struct {
	backend Backend
	decoder Decoder
	player  Player
	voice   Voice
	grace   time.Duration
	dir     string
	logger  *logging.Logger

	closing   chan struct{}
	closeOnce sync.Once
	cleanups  sync.WaitGroup
}

func NewService(opts Options) (*Service, error) {
	if opts.Backend == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "tts.new", "backend is required")
	}
	if opts.Decoder == nil {
		opts.Decoder = MP3Decoder{}
	}
	if opts.Player == nil {
		opts.Player = NullPlayer{}
	}
	if opts.CleanupGrace <= 0 {
		opts.CleanupGrace = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewDiscard()
	}

	dir, err := os.MkdirTemp(opts.TempDir, "ar-scan-tts-")
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindConfig, "tts.new", "create temp dir", err)
	}

	return &Service{
		backend: opts.Backend,
		decoder: opts.Decoder,
		player:  opts.Player,
		voice:   opts.Voices.SelectVoice(opts.Female),
		grace:   opts.CleanupGrace,
		dir:     dir,
		logger:  opts.Logger,
		closing: make(chan struct{}),
	}, nil
}

// Dir is the process-scoped temp directory.
func (s *Service) Dir() string { return s.dir }

// Synthesize fetches audio, writes it to a unique temp file and decodes it.
// A cleanup task owns the file from the moment it is written: it waits for
// the decoder to finish with it, then the grace period, then deletes it.
func (s *Service) Synthesize(ctx context.Context, text string) (*AudioArtifact, error) {
	const op = "tts.synthesize"

	audio, err := s.backend.Synthesize(ctx, text, s.voice)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	art := &AudioArtifact{
		Bytes:  audio,
		Path:   filepath.Join(s.dir, "tts_"+uuid.NewString()+".mp3"),
		logger: s.logger,
	}
	if err := os.WriteFile(art.Path, audio, 0o600); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindDecode, op, "write temp audio", err)
	}

	decoded := make(chan bool, 1)
	s.scheduleCleanup(art, decoded)

	clip, err := s.decoder.Decode(art.Path)
	if err != nil {
		decoded <- false
		return nil, platformerrors.Wrap(platformerrors.KindDecode, op, "decode audio", err)
	}
	decoded <- true

	art.Clip = clip
	s.logger.InfoTag(logging.TagTTS, "synthesized %d bytes, %s of audio (%s)", len(audio), clip.Duration.Round(time.Millisecond), s.voice.Name)
	return art, nil
}

func (s *Service) scheduleCleanup(art *AudioArtifact, decoded <-chan bool) {
	s.cleanups.Add(1)
	go func() {
		defer s.cleanups.Done()
		defer art.Release()

		var ok bool
		select {
		case ok = <-decoded:
		case <-s.closing:
			return
		}
		if !ok {
			return
		}

		t := time.NewTimer(s.grace)
		defer t.Stop()
		select {
		case <-t.C:
		case <-s.closing:
		}
	}()
}

// Play starts playback at once. The channel receives the playback result and
// is then closed.
func (s *Service) Play(ctx context.Context, art *AudioArtifact) (<-chan error, error) {
	if art == nil || art.Clip == nil {
		return nil, platformerrors.New(platformerrors.KindDecode, "tts.play", "artifact has no clip")
	}

	done := make(chan error, 1)
	go func() {
		defer close(done)
		err := s.player.Play(ctx, art.Clip)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.WarnTag(logging.TagAudio, "playback failed: %v", err)
		}
		done <- err
	}()
	return done, nil
}

// Close deletes pending temp files and the temp directory.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closing)
		s.cleanups.Wait()
		err = os.RemoveAll(s.dir)
	})
	return err
}
