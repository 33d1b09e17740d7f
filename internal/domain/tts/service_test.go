package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	platformerrors "ar-scan-go/internal/platform/errors"
	"ar-scan-go/internal/platform/httpjson"
	"ar-scan-go/internal/platform/logging"
)

var voices = VoiceSet{LanguageCode: "en-US", Male: "en-US-Wavenet-D", Female: "en-US-Wavenet-F"}

// fakeDecoder records what it read from disk.
type fakeDecoder struct {
	mu   sync.Mutex
	read []byte
	err  error
}

func (d *fakeDecoder) Decode(path string) (*Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.read = data
	d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	return NewClip(make([]byte, 4*1000), 1000, 2), nil
}

type stubBackend struct {
	audio []byte
	err   error
}

func (b stubBackend) Synthesize(context.Context, string, Voice) ([]byte, error) {
	return b.audio, b.err
}

func googleServer(t *testing.T, status int, response string) (string, func() map[string]any) {
	t.Helper()
	var (
		mu   sync.Mutex
		body map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		_ = json.Unmarshal(raw, &body)
		mu.Unlock()
		w.WriteHeader(status)
		io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv.URL, func() map[string]any {
		mu.Lock()
		defer mu.Unlock()
		return body
	}
}

func TestSelectVoice(t *testing.T) {
	require.Equal(t, Voice{LanguageCode: "en-US", Name: "en-US-Wavenet-D", Gender: GenderMale}, voices.SelectVoice(false))
	require.Equal(t, Voice{LanguageCode: "en-US", Name: "en-US-Wavenet-F", Gender: GenderFemale}, voices.SelectVoice(true))
}

func TestSynthesize_RoundTrip(t *testing.T) {
	payload := []byte("ID3\x03\x00fake-mp3-payload")
	url, requestBody := googleServer(t, http.StatusOK,
		`{"audioContent":"`+base64.StdEncoding.EncodeToString(payload)+`"}`)

	dec := &fakeDecoder{}
	svc, err := NewService(Options{
		Backend:      NewGoogleBackend(GoogleConfig{URL: url, APIKey: "k"}, httpjson.New(time.Second)),
		Decoder:      dec,
		Voices:       voices,
		Female:       true,
		CleanupGrace: 50 * time.Millisecond,
		TempDir:      t.TempDir(),
	})
	require.NoError(t, err)
	defer svc.Close()

	art, err := svc.Synthesize(context.Background(), "This is a cat.")
	require.NoError(t, err)
	require.Equal(t, payload, art.Bytes)
	require.Equal(t, svc.Dir(), filepath.Dir(art.Path))
	require.NotNil(t, art.Clip)

	dec.mu.Lock()
	require.Equal(t, payload, dec.read)
	dec.mu.Unlock()

	body := requestBody()
	require.Equal(t, "This is a cat.", body["input"].(map[string]any)["text"])
	voice := body["voice"].(map[string]any)
	require.Equal(t, "en-US", voice["languageCode"])
	require.Equal(t, "en-US-Wavenet-F", voice["name"])
	require.Equal(t, GenderFemale, voice["ssmlGender"])
	require.Equal(t, "MP3", body["audioConfig"].(map[string]any)["audioEncoding"])

	require.Eventually(t, func() bool {
		_, err := os.Stat(art.Path)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSynthesize_UniqueTempFiles(t *testing.T) {
	svc, err := NewService(Options{
		Backend:      stubBackend{audio: []byte("audio")},
		Decoder:      &fakeDecoder{},
		Voices:       voices,
		CleanupGrace: time.Minute,
		TempDir:      t.TempDir(),
	})
	require.NoError(t, err)
	defer svc.Close()

	a, err := svc.Synthesize(context.Background(), "one")
	require.NoError(t, err)
	b, err := svc.Synthesize(context.Background(), "two")
	require.NoError(t, err)
	require.NotEqual(t, a.Path, b.Path)

	_, err = os.Stat(a.Path)
	require.NoError(t, err, "file must survive until the grace period ends")

	require.NoError(t, svc.Close())
	_, err = os.Stat(svc.Dir())
	require.True(t, os.IsNotExist(err))
}

func TestSynthesize_DecodeFailure(t *testing.T) {
	dir := t.TempDir()
	svc, err := NewService(Options{
		Backend: stubBackend{audio: []byte("definitely not an mp3 stream")},
		Decoder: MP3Decoder{},
		Voices:  voices,
		TempDir: dir,
	})
	require.NoError(t, err)
	defer svc.Close()

	_, err = svc.Synthesize(context.Background(), "hello")
	require.True(t, platformerrors.IsKind(err, platformerrors.KindDecode), "got %v", err)

	require.Eventually(t, func() bool {
		entries, err := os.ReadDir(svc.Dir())
		return err == nil && len(entries) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSynthesize_BackendErrorsPassThrough(t *testing.T) {
	svc, err := NewService(Options{
		Backend: stubBackend{err: platformerrors.New(platformerrors.KindService, "tts.google", "HTTP 403")},
		Voices:  voices,
		TempDir: t.TempDir(),
	})
	require.NoError(t, err)
	defer svc.Close()

	_, err = svc.Synthesize(context.Background(), "hello")
	require.True(t, platformerrors.IsKind(err, platformerrors.KindService), "got %v", err)
}

func TestGoogleBackend_BadPayloads(t *testing.T) {
	tests := []struct {
		name     string
		response string
		kind     platformerrors.Kind
	}{
		{"empty audio", `{"audioContent":""}`, platformerrors.KindParse},
		{"missing audio", `{}`, platformerrors.KindParse},
		{"bad base64", `{"audioContent":"%%%not-base64%%%"}`, platformerrors.KindDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, _ := googleServer(t, http.StatusOK, tt.response)
			b := NewGoogleBackend(GoogleConfig{URL: url}, httpjson.New(time.Second))
			_, err := b.Synthesize(context.Background(), "x", voices.SelectVoice(false))
			require.Equal(t, tt.kind, platformerrors.KindOf(err), "got %v", err)
		})
	}
}

func TestRelease_FailureIsSwallowed(t *testing.T) {
	dir := t.TempDir()
	busy := filepath.Join(dir, "busy")
	require.NoError(t, os.MkdirAll(filepath.Join(busy, "child"), 0o755))

	var buf bytes.Buffer
	art := &AudioArtifact{Path: busy, logger: logging.NewWriter(&buf, "warn")}
	art.Release()
	art.Release()

	require.Contains(t, buf.String(), "temp audio cleanup failed")
	require.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("cleanup failed")))
}

func TestPlay_NullPlayer(t *testing.T) {
	svc, err := NewService(Options{Backend: stubBackend{}, TempDir: t.TempDir()})
	require.NoError(t, err)
	defer svc.Close()

	art := &AudioArtifact{Clip: &Clip{Duration: 10 * time.Millisecond}}
	done, err := svc.Play(context.Background(), art)
	require.NoError(t, err)
	require.NoError(t, <-done)

	ctx, cancel := context.WithCancel(context.Background())
	done, err = svc.Play(ctx, &AudioArtifact{Clip: &Clip{Duration: time.Hour}})
	require.NoError(t, err)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	_, err = svc.Play(context.Background(), &AudioArtifact{})
	require.Error(t, err)
}

func TestNewClip_Duration(t *testing.T) {
	c := NewClip(make([]byte, 44100*2*2), 44100, 2)
	require.Equal(t, time.Second, c.Duration)
}
