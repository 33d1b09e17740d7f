package tts

import (
	"io"
	"os"
	"time"

	"github.com/hajimehoshi/go-mp3"

	platformerrors "ar-scan-go/internal/platform/errors"
)

// Clip is decoded, playable audio: interleaved signed 16-bit little endian.
type Clip struct {
	PCM        []byte
	SampleRate int
	Channels   int
	Duration   time.Duration
}

// Decoder loads an audio file into a Clip. Returning means the decoder is
// done with the file.
type Decoder interface {
	Decode(path string) (*Clip, error)
}

// MP3Decoder decodes MP3 files with go-mp3, which always yields stereo.
type MP3Decoder struct{}

func (MP3Decoder) Decode(path string) (*Clip, error) {
	const op = "tts.decode"

	f, err := os.Open(path)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindDecode, op, "open audio file", err)
	}
	defer f.Close()

	d, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindDecode, op, "read mp3 header", err)
	}
	pcm, err := io.ReadAll(d)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindDecode, op, "decode mp3 frames", err)
	}
	if len(pcm) == 0 {
		return nil, platformerrors.New(platformerrors.KindDecode, op, "mp3 has no audio frames")
	}

	return NewClip(pcm, d.SampleRate(), 2), nil
}

// NewClip computes the duration of pcm.
func NewClip(pcm []byte, sampleRate, channels int) *Clip {
	c := &Clip{PCM: pcm, SampleRate: sampleRate, Channels: channels}
	if frame := sampleRate * channels * 2; frame > 0 {
		c.Duration = time.Duration(len(pcm)) * time.Second / time.Duration(frame)
	}
	return c
}
