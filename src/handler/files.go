package handler

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/blaxel-ai/filehunter/src/handler/search"
)

// FilesHandler serves resolved files. It owns no per-request state; the
// searcher it holds is immutable and shared across requests.
type FilesHandler struct {
	*BaseHandler
	searcher         *search.Searcher
	maxBodySize      uint64
	streamBufferSize int
}

// NewFilesHandler creates the file-serving handler.
func NewFilesHandler(searcher *search.Searcher, maxBodySize uint64, streamBufferSize int) *FilesHandler {
	return &FilesHandler{
		BaseHandler:      NewBaseHandler(),
		searcher:         searcher,
		maxBodySize:      maxBodySize,
		streamBufferSize: streamBufferSize,
	}
}

// HandleServeFile handles GET and HEAD requests for any path. The method
// gate lives in the router (non-GET/HEAD methods never reach this handler).
func (h *FilesHandler) HandleServeFile(c *gin.Context) {
	// Reject requests with an oversized or malformed Content-Length before
	// doing any filesystem work.
	if cl := c.GetHeader("Content-Length"); cl != "" {
		length, err := strconv.ParseUint(cl, 10, 64)
		if err != nil {
			// Unparseable is treated as exceeding any limit.
			length = ^uint64(0)
		}
		if length > h.maxBodySize {
			logrus.WithFields(logrus.Fields{
				"status": http.StatusRequestEntityTooLarge,
				"path":   c.Request.URL.Path,
			}).Debug("request handled")
			h.SendText(c, http.StatusRequestEntityTooLarge, "Payload Too Large")
			return
		}
	}

	// The sanitizer wants the still-encoded path so its decode step sees
	// sequences like %2e%2e.
	rawPath := c.Request.URL.EscapedPath()
	isHead := c.Request.Method == http.MethodHead

	hit := h.searcher.Search(c.Request.Context(), rawPath)
	if hit == nil {
		logrus.WithFields(logrus.Fields{
			"status": http.StatusNotFound,
			"path":   rawPath,
		}).Debug("request handled")
		h.SendText(c, http.StatusNotFound, "Not Found")
		return
	}
	defer hit.File.Close()

	logrus.WithFields(logrus.Fields{
		"status":   http.StatusOK,
		"path":     rawPath,
		"resolved": hit.Path,
		"size":     hit.Size,
	}).Debug("request handled")

	contentType := mime.TypeByExtension(filepath.Ext(hit.Path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.Header("Content-Type", contentType)
	c.Header("Content-Length", strconv.FormatInt(hit.Size, 10))
	c.Header("Accept-Ranges", "none")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Status(http.StatusOK)

	if isHead {
		return
	}

	// Stream in fixed-size chunks. Once the status line is out, an I/O
	// error can only abort the connection. The file is wrapped so that
	// io.CopyBuffer cannot bypass buf through *os.File's WriteTo.
	buf := make([]byte, h.streamBufferSize)
	if _, err := io.CopyBuffer(c.Writer, struct{ io.Reader }{hit.File}, buf); err != nil {
		logrus.WithFields(logrus.Fields{
			"path":  rawPath,
			"error": err,
		}).Debug("response stream aborted")
		c.Abort()
	}
}
