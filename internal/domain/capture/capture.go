// Package capture provides the image buffers a scan starts from.
package capture

import (
	"context"
	"os"

	platformerrors "ar-scan-go/internal/platform/errors"
)

// Source yields one encoded image per call.
type Source interface {
	Capture(ctx context.Context) ([]byte, error)
}

// FileSource reads an image file. It stands in for a screen grab.
type FileSource struct {
	Path string
}

func (s FileSource) Capture(ctx context.Context) ([]byte, error) {
	const op = "capture.file"

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Path == "" {
		return nil, platformerrors.New(platformerrors.KindCapture, op, "no capture image configured")
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindCapture, op, "read "+s.Path, err)
	}
	if len(data) == 0 {
		return nil, platformerrors.New(platformerrors.KindCapture, op, s.Path+" is empty")
	}
	return data, nil
}

// BytesSource returns a buffer that was already captured, e.g. an upload.
type BytesSource []byte

func (s BytesSource) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s) == 0 {
		return nil, platformerrors.New(platformerrors.KindCapture, "capture.bytes", "empty capture buffer")
	}
	return []byte(s), nil
}

// Func adapts a function to Source.
type Func func(ctx context.Context) ([]byte, error)

func (f Func) Capture(ctx context.Context) ([]byte, error) { return f(ctx) }
