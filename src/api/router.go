package api

import (
	"fmt"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/blaxel-ai/filehunter/src/handler"
	"github.com/blaxel-ai/filehunter/src/handler/search"
	"github.com/blaxel-ai/filehunter/src/lib/config"
	"github.com/blaxel-ai/filehunter/src/lib/ratelimit"
)

// SetupRouter configures the middleware chain and routes for the file server.
// limiter may be nil when rate limiting is disabled.
func SetupRouter(cfg *config.Config, searcher *search.Searcher, limiter *ratelimit.Limiter) *gin.Engine {
	// Initialize the router
	r := gin.New()

	// Add recovery middleware
	r.Use(gin.Recovery())

	// Security headers on every response
	r.Use(securityHeadersMiddleware())

	// Add middleware for CORS if configured
	if cfg.Server.Cors.Enabled {
		r.Use(corsMiddleware(&cfg.Server.Cors))
	}

	// Add request-id middleware
	r.Use(requestIDMiddleware())

	// Add processing time middleware if enabled
	if cfg.Server.EnableProcessingTime {
		r.Use(processingTimeMiddleware())
	}

	// Add logrus middleware
	r.Use(logrusMiddleware())

	// Health endpoint, dispatched in middleware so it cannot collide with
	// the catch-all file route. Deliberately ahead of the rate limiter so
	// liveness probes keep working under load.
	healthHandler := handler.NewHealthHandler()
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" && (c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead) {
			healthHandler.HandleHealth(c)
			c.Abort()
			return
		}
		c.Next()
	})

	// Per-IP rate limiting, checked before routing and before any
	// filesystem work
	if limiter != nil {
		r.Use(rateLimitMiddleware(limiter))
	}

	filesHandler := handler.NewFilesHandler(
		searcher,
		uint64(cfg.Server.MaxBodySize),
		int(cfg.Server.StreamBufferSize),
	)

	// Only GET and HEAD are routable; everything else hits the method gate.
	r.HandleMethodNotAllowed = true
	r.GET("/*path", filesHandler.HandleServeFile)
	r.HEAD("/*path", filesHandler.HandleServeFile)

	r.NoMethod(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Data(http.StatusMethodNotAllowed, "text/plain; charset=utf-8", []byte("Method Not Allowed"))
	})
	r.NoRoute(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Data(http.StatusNotFound, "text/plain; charset=utf-8", []byte("Not Found"))
	})

	return r
}

// securityHeadersMiddleware marks every response as non-sniffable
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("X-Content-Type-Options", "nosniff")

		c.Next()
	}
}

// corsMiddleware adds CORS headers according to config
func corsMiddleware(cfg *config.CorsConfig) gin.HandlerFunc {
	allowAll := false
	for _, origin := range cfg.AllowOrigins {
		if origin == "*" {
			allowAll = true
		}
	}
	methods := strings.Join(cfg.AllowMethods, ", ")
	headers := strings.Join(cfg.AllowHeaders, ", ")
	expose := strings.Join(cfg.ExposeHeaders, ", ")
	maxAge := strconv.FormatUint(cfg.MaxAge, 10)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && containsOrigin(cfg.AllowOrigins, origin):
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", methods)
		c.Writer.Header().Set("Access-Control-Allow-Headers", headers)
		if expose != "" {
			c.Writer.Header().Set("Access-Control-Expose-Headers", expose)
		}
		c.Writer.Header().Set("Access-Control-Max-Age", maxAge)
		if cfg.AllowCredentials {
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func containsOrigin(origins []string, origin string) bool {
	for _, o := range origins {
		if strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// requestIDMiddleware tags each request with an X-Request-ID, generating one
// when the client did not supply it
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Writer.Header().Set("X-Request-ID", id)

		c.Next()
	}
}

// rateLimitMiddleware checks the per-IP limiter before any routing or
// filesystem work. Denials answer 429 with a Retry-After hint.
func rateLimitMiddleware(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter := limiter.Check(c.ClientIP())
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.Header("X-Content-Type-Options", "nosniff")
			c.Data(http.StatusTooManyRequests, "text/plain; charset=utf-8", []byte("Too Many Requests"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// sensitiveQueryParams contains query parameter names that should be redacted from logs
var sensitiveQueryParams = []string{
	"api_key", "apikey", "api-key",
	"token", "access_token", "refresh_token", "auth_token", "bearer",
	"password", "passwd", "pwd",
	"secret", "client_secret", "api_secret",
	"key", "private_key", "encryption_key",
	"authorization", "auth",
	"credential", "credentials",
	"session", "session_id", "sessionid",
	"jwt",
}

// redactSecrets redacts sensitive information from a URL path with query string
func redactSecrets(pathWithQuery string) string {
	// Split path and query
	parts := strings.SplitN(pathWithQuery, "?", 2)
	if len(parts) != 2 {
		return pathWithQuery // No query string, return as-is
	}

	basePath := parts[0]
	queryString := parts[1]

	// Parse query parameters
	values, err := url.ParseQuery(queryString)
	if err != nil {
		// If parsing fails, try to redact using pattern matching
		return redactQueryPatterns(pathWithQuery)
	}

	// Check if any sensitive param exists
	hasSecrets := false
	for _, param := range sensitiveQueryParams {
		if values.Get(param) != "" {
			hasSecrets = true
			break
		}
		// Also check case-insensitive
		for key := range values {
			if strings.EqualFold(key, param) {
				hasSecrets = true
				break
			}
		}
	}

	if !hasSecrets {
		return pathWithQuery
	}

	// Redact sensitive values
	for key := range values {
		for _, param := range sensitiveQueryParams {
			if strings.EqualFold(key, param) {
				values.Set(key, "[REDACTED]")
				break
			}
		}
	}

	return basePath + "?" + values.Encode()
}

// redactQueryPatterns redacts secrets using regex patterns when URL parsing fails
func redactQueryPatterns(pathWithQuery string) string {
	result := pathWithQuery
	for _, param := range sensitiveQueryParams {
		// Match param=value patterns (case-insensitive)
		pattern := regexp.MustCompile(`(?i)(` + regexp.QuoteMeta(param) + `=)[^&\s]*`)
		result = pattern.ReplaceAllString(result, "${1}[REDACTED]")
	}
	return result
}

func logrusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {

		// other handler can change c.Path so:
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}

		// Redact secrets from the path before logging
		sanitizedPath := redactSecrets(path)

		start := time.Now()
		c.Next()
		stop := time.Since(start)
		latency := int(math.Ceil(float64(stop.Nanoseconds()) / 1000000.0))
		statusCode := c.Writer.Status()
		dataLength := c.Writer.Size()
		if dataLength < 0 {
			dataLength = 0
		}

		requestID, _ := c.Get("requestID")

		if len(c.Errors) > 0 {
			logrus.Error(c.Errors.ByType(gin.ErrorTypePrivate).String())
		} else {
			msg := fmt.Sprintf("%s %s %d %d %dms", c.Request.Method, sanitizedPath, statusCode, dataLength, latency)
			entry := logrus.WithField("requestID", requestID)
			if statusCode >= http.StatusBadRequest {
				entry.Error(msg)
			} else {
				entry.Info(msg)
			}
		}
	}
}
