package httptransport

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"ar-scan-go/internal/app/scan"
	"ar-scan-go/internal/domain/capture"
	platformerrors "ar-scan-go/internal/platform/errors"
	platformtesting "ar-scan-go/internal/platform/testing"
)

type fakeScanner struct {
	mu      sync.Mutex
	sources []capture.Source
	ctxs    []context.Context
	err     error
	snap    scan.Snapshot
}

func (f *fakeScanner) Scan(ctx context.Context, src capture.Source) (*scan.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sources = append(f.sources, src)
	f.ctxs = append(f.ctxs, ctx)
	return &scan.Ticket{ID: uint64(len(f.sources)), TraceID: "trace"}, nil
}

func (f *fakeScanner) Current() scan.Snapshot { return f.snap }

type envelope struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
	Message string         `json:"message"`
	Code    int            `json:"code"`
}

func newEngine(t *testing.T, opts ScanHandlerOptions) *gin.Engine {
	t.Helper()
	router, err := Build(Options{Config: platformtesting.SetupTestConfig(t)})
	require.NoError(t, err)
	NewScanHandler(opts).Register(router.API)
	return router.Engine
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, sonic.ConfigStd.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestScan_RawBody(t *testing.T) {
	scanner := &fakeScanner{}
	base, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine := newEngine(t, ScanHandlerOptions{Scanner: scanner, BaseContext: base})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/scan", bytes.NewReader([]byte("jpeg-bytes")))
	req.Header.Set("Content-Type", "image/jpeg")
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	env := decode(t, rec)
	require.True(t, env.Success)
	require.Equal(t, float64(1), env.Data["scan_id"])
	require.Equal(t, "trace", env.Data["trace_id"])

	require.Len(t, scanner.sources, 1)
	require.Equal(t, capture.BytesSource("jpeg-bytes"), scanner.sources[0])
	require.Equal(t, base, scanner.ctxs[0])
}

func TestScan_Multipart(t *testing.T) {
	scanner := &fakeScanner{}
	engine := newEngine(t, ScanHandlerOptions{Scanner: scanner})

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", "cup.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/scan", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, capture.BytesSource("png-bytes"), scanner.sources[0])
}

func TestScan_EmptyBodyUsesDefault(t *testing.T) {
	scanner := &fakeScanner{}
	def := capture.FileSource{Path: "screen.png"}
	engine := newEngine(t, ScanHandlerOptions{Scanner: scanner, Default: def})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scan", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, def, scanner.sources[0])
}

func TestScan_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		scanner *fakeScanner
		body    []byte
		want    int
	}{
		{"no image and no default", &fakeScanner{}, nil, http.StatusBadRequest},
		{"too large", &fakeScanner{}, bytes.Repeat([]byte("x"), 17), http.StatusBadRequest},
		{"pipeline closed", &fakeScanner{err: platformerrors.New(platformerrors.KindDomain, "scan.start", "pipeline is closed")}, []byte("img"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newEngine(t, ScanHandlerOptions{Scanner: tt.scanner, MaxBytes: 16})

			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scan", bytes.NewReader(tt.body)))

			require.Equal(t, tt.want, rec.Code)
			env := decode(t, rec)
			require.False(t, env.Success)
			require.NotEmpty(t, env.Message)
			require.Empty(t, tt.scanner.sources)
		})
	}
}

func TestState(t *testing.T) {
	scanner := &fakeScanner{snap: scan.Snapshot{ScanID: 4, State: scan.StateFailed, Reason: "No objects detected"}}
	engine := newEngine(t, ScanHandlerOptions{Scanner: scanner})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	require.Equal(t, "failed", env.Data["state"])
	require.Equal(t, float64(4), env.Data["scan_id"])
	require.Equal(t, "No objects detected", env.Data["reason"])
}

func TestHealth(t *testing.T) {
	engine := newEngine(t, ScanHandlerOptions{Scanner: &fakeScanner{}})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decode(t, rec).Data["status"])
}

func TestBuild_RequiresConfig(t *testing.T) {
	_, err := Build(Options{})
	require.Error(t, err)
}
