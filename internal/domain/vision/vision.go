// Package vision recognizes the dominant object in a capture using the Google
// Cloud Vision images:annotate endpoint.
package vision

import (
	"context"
	"fmt"
	"strings"

	visionapi "google.golang.org/api/vision/v1"

	"ar-scan-go/internal/domain/image"
	platformerrors "ar-scan-go/internal/platform/errors"
	"ar-scan-go/internal/platform/httpjson"
	"ar-scan-go/internal/platform/logging"
)

const (
	featureObjects = "OBJECT_LOCALIZATION"
	featureLabels  = "LABEL_DETECTION"
)

// Source tells which annotation list produced the label.
type Source string

const (
	SourceObject Source = "OBJECT"
	SourceLabel  Source = "LABEL"
)

// RecognitionResult is the annotation chosen for a capture.
type RecognitionResult struct {
	Label      string
	Confidence float64
	Source     Source
}

// Sender performs one JSON call.
type Sender interface {
	Send(ctx context.Context, r httpjson.Request, out any) error
}

// Encoder turns a raw capture into the transport format.
type Encoder interface {
	Encode(ctx context.Context, raw []byte) (*image.Encoded, error)
}

type Config struct {
	URL        string
	APIKey     string
	MaxResults int64
}

type Service struct {
	cfg     Config
	client  Sender
	encoder Encoder
	logger  *logging.Logger
}

func NewService(cfg Config, client Sender, encoder Encoder, logger *logging.Logger) *Service {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Service{cfg: cfg, client: client, encoder: encoder, logger: logger}
}

// Detect asks for objects and labels in one call and picks the first object,
// else the first label. Rank order from the service is trusted as is.
func (s *Service) Detect(ctx context.Context, raw []byte) (*RecognitionResult, error) {
	encoded, err := s.encoder.Encode(ctx, raw)
	if err != nil {
		return nil, err
	}

	req := &visionapi.BatchAnnotateImagesRequest{
		Requests: []*visionapi.AnnotateImageRequest{{
			Image: &visionapi.Image{Content: encoded.Base64},
			Features: []*visionapi.Feature{
				{Type: featureObjects, MaxResults: s.cfg.MaxResults},
				{Type: featureLabels, MaxResults: s.cfg.MaxResults},
			},
		}},
	}

	var resp visionapi.BatchAnnotateImagesResponse
	err = s.client.Send(ctx, httpjson.Request{
		URL:    s.cfg.URL,
		APIKey: s.cfg.APIKey,
		Body:   req,
	}, &resp)
	if err != nil {
		return nil, err
	}

	result, err := selectAnnotation(&resp)
	if err != nil {
		return nil, err
	}

	s.logger.InfoTag(logging.TagVision, "recognized %q from %s annotations (score %.2f)",
		result.Label, result.Source, result.Confidence)
	return result, nil
}

func selectAnnotation(resp *visionapi.BatchAnnotateImagesResponse) (*RecognitionResult, error) {
	const op = "vision.select"

	if len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return nil, platformerrors.New(platformerrors.KindParse, op, "response has no responses entry")
	}
	first := resp.Responses[0]
	if first.Error != nil && (first.Error.Code != 0 || first.Error.Message != "") {
		return nil, platformerrors.New(platformerrors.KindParse, op,
			fmt.Sprintf("annotate error %d: %s", first.Error.Code, first.Error.Message))
	}

	for _, obj := range first.LocalizedObjectAnnotations {
		if obj == nil {
			continue
		}
		return &RecognitionResult{
			Label:      normalize(obj.Name),
			Confidence: obj.Score,
			Source:     SourceObject,
		}, nil
	}
	for _, label := range first.LabelAnnotations {
		if label == nil {
			continue
		}
		return &RecognitionResult{
			Label:      normalize(label.Description),
			Confidence: label.Score,
			Source:     SourceLabel,
		}, nil
	}

	return nil, platformerrors.New(platformerrors.KindNoObjects, op, "no objects detected")
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
