package httptransport

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ar-scan-go/internal/app/scan"
	"ar-scan-go/internal/domain/capture"
	platformerrors "ar-scan-go/internal/platform/errors"
	"ar-scan-go/internal/platform/logging"
)

// Scanner is the part of the pipeline the HTTP surface drives.
type Scanner interface {
	Scan(ctx context.Context, src capture.Source) (*scan.Ticket, error)
	Current() scan.Snapshot
}

// ScanHandlerOptions configures the scan endpoints.
type ScanHandlerOptions struct {
	Scanner Scanner
	// BaseContext bounds every scan started over HTTP. Scans outlive the
	// request that started them.
	BaseContext context.Context
	// Default is used when a request carries no image.
	Default  capture.Source
	MaxBytes int64
	Logger   *logging.Logger
}

type ScanHandler struct {
	scanner  Scanner
	base     context.Context
	fallback capture.Source
	maxBytes int64
	logger   *logging.Logger
}

type scanAccepted struct {
	ScanID  uint64 `json:"scan_id"`
	TraceID string `json:"trace_id"`
}

func NewScanHandler(opts ScanHandlerOptions) *ScanHandler {
	base := opts.BaseContext
	if base == nil {
		base = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewDiscard()
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &ScanHandler{
		scanner:  opts.Scanner,
		base:     base,
		fallback: opts.Default,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Register mounts the scan endpoints on group.
func (h *ScanHandler) Register(group *gin.RouterGroup) {
	group.POST("/scan", h.handleScan)
	group.GET("/state", h.handleState)
	group.GET("/health", h.handleHealth)
}

func (h *ScanHandler) handleScan(c *gin.Context) {
	raw, err := h.readImage(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	var src capture.Source
	if len(raw) > 0 {
		src = capture.BytesSource(raw)
	} else if h.fallback != nil {
		src = h.fallback
	} else {
		RespondError(c, http.StatusBadRequest, "no image provided and no default capture source configured", nil)
		return
	}

	ticket, err := h.scanner.Scan(h.base, src)
	if err != nil {
		status := http.StatusInternalServerError
		if platformerrors.IsKind(err, platformerrors.KindDomain) {
			status = http.StatusServiceUnavailable
		}
		h.logger.WarnTag(logging.TagHTTP, "scan rejected: %v", err)
		RespondError(c, status, err.Error(), nil)
		return
	}

	RespondSuccess(c, http.StatusAccepted, scanAccepted{ScanID: ticket.ID, TraceID: ticket.TraceID}, "scan started")
}

func (h *ScanHandler) handleState(c *gin.Context) {
	RespondSuccess(c, http.StatusOK, h.scanner.Current(), "")
}

func (h *ScanHandler) handleHealth(c *gin.Context) {
	RespondSuccess(c, http.StatusOK, gin.H{"status": "ok"}, "")
}

// readImage returns the uploaded image: the multipart field "image" or the
// raw request body. An empty result means no image was sent.
func (h *ScanHandler) readImage(c *gin.Context) ([]byte, error) {
	const op = "http.scan"

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		header, err := c.FormFile("image")
		if err != nil {
			if err == http.ErrMissingFile {
				return nil, nil
			}
			return nil, platformerrors.Wrap(platformerrors.KindCapture, op, "invalid multipart upload", err)
		}
		if header.Size > h.maxBytes {
			return nil, platformerrors.New(platformerrors.KindCapture, op, "image exceeds size limit")
		}
		file, err := header.Open()
		if err != nil {
			return nil, platformerrors.Wrap(platformerrors.KindCapture, op, "open upload", err)
		}
		defer file.Close()
		return h.readLimited(file)
	}

	if c.Request.Body == nil {
		return nil, nil
	}
	return h.readLimited(c.Request.Body)
}

func (h *ScanHandler) readLimited(r io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r, h.maxBytes+1))
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindCapture, "http.scan", "read upload", err)
	}
	if int64(len(raw)) > h.maxBytes {
		return nil, platformerrors.New(platformerrors.KindCapture, "http.scan", "image exceeds size limit")
	}
	return raw, nil
}
