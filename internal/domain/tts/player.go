package tts

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	platformerrors "ar-scan-go/internal/platform/errors"
)

// Player renders a clip and blocks until it finishes or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, clip *Clip) error
}

// NullPlayer plays silently for the clip's duration.
type NullPlayer struct{}

func (NullPlayer) Play(ctx context.Context, clip *Clip) error {
	t := time.NewTimer(clip.Duration)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// CommandPlayer pipes the PCM into an external program such as aplay.
// "{rate}" and "{channels}" in Args are substituted per clip.
type CommandPlayer struct {
	Args []string
}

func (p CommandPlayer) Play(ctx context.Context, clip *Clip) error {
	if len(p.Args) == 0 {
		return platformerrors.New(platformerrors.KindConfig, "tts.play", "player command is empty")
	}

	r := strings.NewReplacer(
		"{rate}", strconv.Itoa(clip.SampleRate),
		"{channels}", strconv.Itoa(clip.Channels),
	)
	args := make([]string, len(p.Args))
	for i, a := range p.Args {
		args[i] = r.Replace(a)
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = bytes.NewReader(clip.PCM)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return platformerrors.Wrap(platformerrors.KindDomain, "tts.play", "run "+args[0], err)
	}
	return nil
}
