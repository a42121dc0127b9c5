package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// Build information - set via ldflags at build time
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var startTime = time.Now()

// HealthHandler answers liveness checks.
type HealthHandler struct {
	*BaseHandler
}

// NewHealthHandler creates a new health handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{BaseHandler: NewBaseHandler()}
}

// HealthResponse is the response body for the health endpoint
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	GitCommit     string  `json:"gitCommit"`
	BuildTime     string  `json:"buildTime"`
	GoVersion     string  `json:"goVersion"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

// HandleHealth handles GET requests to /healthz
func (h *HealthHandler) HandleHealth(c *gin.Context) {
	uptime := time.Since(startTime)

	h.SendJSON(c, http.StatusOK, HealthResponse{
		Status:        "ok",
		Version:       Version,
		GitCommit:     GitCommit,
		BuildTime:     BuildTime,
		GoVersion:     runtime.Version(),
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: uptime.Seconds(),
	})
}
