package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domainimage "ar-scan-go/internal/domain/image"
	platformerrors "ar-scan-go/internal/platform/errors"
	"ar-scan-go/internal/platform/httpjson"
)

func capture(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	return buf.Bytes()
}

type captured struct {
	mu   sync.Mutex
	key  string
	body map[string]any
}

func (c *captured) snapshot() (string, map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key, c.body
}

func newService(t *testing.T, status int, response string) (*Service, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		got.mu.Lock()
		got.key = r.URL.Query().Get("key")
		_ = json.Unmarshal(raw, &got.body)
		got.mu.Unlock()
		w.WriteHeader(status)
		io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)

	svc := NewService(
		Config{URL: srv.URL, APIKey: "vision-key", MaxResults: 5},
		httpjson.New(time.Second),
		domainimage.NewPipeline(domainimage.Options{}),
		nil,
	)
	return svc, got
}

func TestDetect_PrefersFirstObject(t *testing.T) {
	svc, got := newService(t, http.StatusOK, `{"responses":[{
		"localizedObjectAnnotations":[{"name":"Cat","score":0.93},{"name":"Dog","score":0.97}],
		"labelAnnotations":[{"description":"Whiskers","score":0.99}]}]}`)

	res, err := svc.Detect(context.Background(), capture(t))
	require.NoError(t, err)
	require.Equal(t, "cat", res.Label)
	require.Equal(t, SourceObject, res.Source)
	require.InDelta(t, 0.93, res.Confidence, 1e-9)

	key, body := got.snapshot()
	require.Equal(t, "vision-key", key)
	reqs := body["requests"].([]any)
	require.Len(t, reqs, 1)
	first := reqs[0].(map[string]any)
	require.NotEmpty(t, first["image"].(map[string]any)["content"])
	features := first["features"].([]any)
	require.Len(t, features, 2)
	require.Equal(t, featureObjects, features[0].(map[string]any)["type"])
	require.Equal(t, featureLabels, features[1].(map[string]any)["type"])
}

func TestDetect_FallsBackToFirstLabel(t *testing.T) {
	svc, _ := newService(t, http.StatusOK, `{"responses":[{
		"labelAnnotations":[{"description":"Coffee Cup","score":0.4},{"description":"Tableware","score":0.9}]}]}`)

	res, err := svc.Detect(context.Background(), capture(t))
	require.NoError(t, err)
	require.Equal(t, "coffee cup", res.Label)
	require.Equal(t, SourceLabel, res.Source)
}

func TestDetect_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		response string
		kind     platformerrors.Kind
	}{
		{"no annotations", http.StatusOK, `{"responses":[{}]}`, platformerrors.KindNoObjects},
		{"missing responses", http.StatusOK, `{}`, platformerrors.KindParse},
		{"per image error", http.StatusOK, `{"responses":[{"error":{"code":3,"message":"Bad image data."}}]}`, platformerrors.KindParse},
		{"not json", http.StatusOK, `<html>`, platformerrors.KindParse},
		{"forbidden", http.StatusForbidden, `{"error":{"code":403,"message":"The request is missing a valid API key."}}`, platformerrors.KindService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newService(t, tt.status, tt.response)
			_, err := svc.Detect(context.Background(), capture(t))
			require.Equal(t, tt.kind, platformerrors.KindOf(err), "got %v", err)
		})
	}
}

func TestDetect_ForbiddenCarriesStatus(t *testing.T) {
	svc, _ := newService(t, http.StatusForbidden, `{"error":{"code":403,"message":"denied"}}`)
	_, err := svc.Detect(context.Background(), capture(t))
	require.Contains(t, err.Error(), "403")
}

func TestDetect_InvalidCaptureSkipsCall(t *testing.T) {
	svc, got := newService(t, http.StatusOK, `{"responses":[{}]}`)
	_, err := svc.Detect(context.Background(), []byte("nope"))
	require.True(t, platformerrors.IsKind(err, platformerrors.KindCapture), "got %v", err)
	_, body := got.snapshot()
	require.Nil(t, body)
}
