package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BaseHandler provides response helpers shared by the HTTP handlers.
type BaseHandler struct {
}

// NewBaseHandler creates a new base handler
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// SendJSON sends a JSON response with the given status code
func (h *BaseHandler) SendJSON(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// SendText sends a plain-text response whose body is exactly the given
// message. Error responses never carry more detail than the status phrase,
// so the server stays opaque to probing.
func (h *BaseHandler) SendText(c *gin.Context, status int, message string) {
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(status, "text/plain; charset=utf-8", []byte(message))
}

// SendStatusText sends the canonical phrase for a status code.
func (h *BaseHandler) SendStatusText(c *gin.Context, status int) {
	h.SendText(c, status, http.StatusText(status))
}
