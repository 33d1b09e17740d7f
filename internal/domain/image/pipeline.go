// Package image turns raw capture buffers into the compressed transport
// format sent to the recognition service.
package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	platformerrors "ar-scan-go/internal/platform/errors"
	"ar-scan-go/internal/platform/logging"
)

// Options configures the pipeline behaviour.
type Options struct {
	MaxBytes    int64
	MaxSide     int
	JPEGQuality int
	Logger      *logging.Logger
}

// Pipeline validates, downscales and JPEG-encodes captures.
type Pipeline struct {
	validator *Validator
	maxSide   int
	quality   int
	logger    *logging.Logger
}

func NewPipeline(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = logging.NewDiscard()
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 75
	}
	return &Pipeline{
		validator: NewValidator(opts.MaxBytes, opts.Logger),
		maxSide:   opts.MaxSide,
		quality:   opts.JPEGQuality,
		logger:    opts.Logger,
	}
}

// Encode produces the JPEG bytes and their base64 form. Decode failures are
// KindCapture.
func (p *Pipeline) Encode(ctx context.Context, raw []byte) (*Encoded, error) {
	const op = "image.encode"

	validation := p.validator.Validate(raw)
	if !validation.IsValid {
		return nil, platformerrors.Wrap(platformerrors.KindCapture, op, "invalid capture", validation.Error)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindCapture, op, "decode capture", err)
	}

	img := p.downscale(src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindCapture, op, "encode jpeg", err)
	}

	b := img.Bounds()
	out := &Encoded{
		Bytes:        buf.Bytes(),
		Base64:       base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:        b.Dx(),
		Height:       b.Dy(),
		SourceFormat: validation.Format,
	}
	p.logger.DebugTag(logging.TagVision, "capture encoded: %dx%d %s -> %d bytes jpeg",
		out.Width, out.Height, out.SourceFormat, len(out.Bytes))
	return out, nil
}

// downscale keeps the aspect ratio and bounds the longer side by maxSide.
func (p *Pipeline) downscale(src image.Image) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := max(w, h)
	if p.maxSide <= 0 || longest <= p.maxSide {
		return src
	}

	nw := max(1, w*p.maxSide/longest)
	nh := max(1, h*p.maxSide/longest)
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
