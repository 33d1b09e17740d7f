package tts

import (
	"errors"
	"io/fs"
	"os"
	"sync"

	platformerrors "ar-scan-go/internal/platform/errors"
	"ar-scan-go/internal/platform/logging"
)

// AudioArtifact is one synthesized utterance. Bytes are the compressed audio
// exactly as returned by the backend; Path is its temp file.
type AudioArtifact struct {
	Bytes []byte
	Path  string
	Clip  *Clip

	logger *logging.Logger
	once   sync.Once
}

// Release deletes the temp file once. A failed delete is logged, never
// returned.
func (a *AudioArtifact) Release() {
	if a == nil {
		return
	}
	a.once.Do(func() {
		err := os.Remove(a.Path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return
		}
		cleanupErr := platformerrors.Wrap(platformerrors.KindCleanup, "tts.release", "remove "+a.Path, err)
		a.logger.WarnTag(logging.TagAudio, "temp audio cleanup failed: %v", cleanupErr)
	})
}
