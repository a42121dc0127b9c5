package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// MinHeaderSize is the smallest request-head buffer the server accepts.
const MinHeaderSize = 8192

// Config is the full server configuration loaded from a TOML file.
type Config struct {
	Server    ServerConfig     `toml:"server"`
	Locations []LocationConfig `toml:"locations"`
}

// ServerConfig holds listener and limit settings. Every field has a default
// (see DefaultServerConfig), so existing config files keep working as fields
// are added.
type ServerConfig struct {
	// Bind address, e.g. "0.0.0.0:8080".
	Bind string `toml:"bind"`

	// Keepalive enables HTTP/1.1 keep-alive.
	Keepalive bool `toml:"keepalive"`

	// ConnectionTimeout, in seconds, is applied as the server's read, write
	// and idle timeouts (0 = unlimited). It does not cap the total lifetime
	// of a kept-alive connection.
	ConnectionTimeout uint64 `toml:"connection_timeout"`

	// MaxHeaderSize is the maximum size for the request line + headers, e.g. "8KB".
	MaxHeaderSize ByteSize `toml:"max_header_size"`

	// MaxHeaders is the configured maximum number of request headers. It is
	// logged at startup but not enforced; MaxHeaderSize bounds the header
	// block in bytes.
	MaxHeaders int `toml:"max_headers"`

	// MaxBodySize is the maximum allowed Content-Length, e.g. "1MB".
	MaxBodySize ByteSize `toml:"max_body_size"`

	// HTTP2MaxStreams is the HTTP/2 maximum concurrent streams per connection.
	HTTP2MaxStreams uint32 `toml:"http2_max_streams"`

	// MaxFileSize is the largest file that can be served, e.g. "10MB".
	// Files exceeding it are skipped during search.
	MaxFileSize ByteSize `toml:"max_file_size"`

	// StreamBufferSize is the response streaming chunk size, e.g. "64KB".
	StreamBufferSize ByteSize `toml:"stream_buffer_size"`

	// EnableProcessingTime adds a Server-Timing header to every response.
	EnableProcessingTime bool `toml:"enable_processing_time"`

	Cors      CorsConfig      `toml:"cors"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

// CorsConfig controls the CORS middleware.
type CorsConfig struct {
	Enabled          bool     `toml:"enabled"`
	AllowOrigins     []string `toml:"allow_origins"`
	AllowMethods     []string `toml:"allow_methods"`
	AllowHeaders     []string `toml:"allow_headers"`
	ExposeHeaders    []string `toml:"expose_headers"`
	MaxAge           uint64   `toml:"max_age"`
	AllowCredentials bool     `toml:"allow_credentials"`
}

// RateLimitConfig controls the per-IP rate limiter.
type RateLimitConfig struct {
	Enabled           bool   `toml:"enabled"`
	RequestsPerSecond uint32 `toml:"requests_per_second"`
	BurstSize         uint32 `toml:"burst_size"`

	// CleanupInterval is how often idle client entries are evicted, in seconds.
	CleanupInterval uint64 `toml:"cleanup_interval"`
}

// SearchMode selects how a location probes its roots.
type SearchMode string

const (
	// ModeSequential checks each root in config order; first match wins.
	ModeSequential SearchMode = "sequential"

	// ModeConcurrent probes all eligible roots in parallel; the fastest
	// match wins and remaining probes are cancelled.
	ModeConcurrent SearchMode = "concurrent"

	// ModeLatestModified checks all eligible roots and serves the file with
	// the most recent modification time.
	ModeLatestModified SearchMode = "latest_modified"
)

// LocationConfig binds a URL prefix to a set of search paths.
type LocationConfig struct {
	// Prefix is the URL prefix for this location, e.g. "/imgs".
	Prefix string `toml:"prefix"`

	// Mode is the search strategy. Default: "sequential".
	Mode SearchMode `toml:"mode"`

	// MaxFileSize overrides [server].max_file_size for this location.
	MaxFileSize *ByteSize `toml:"max_file_size"`

	// Paths are the search roots, probed according to Mode.
	Paths []SearchPath `toml:"paths"`
}

// SearchPath is one root directory with an optional extension filter.
type SearchPath struct {
	// Root directory for this search entry.
	Root string `toml:"root"`

	// Extensions allowed under this root (without leading dot), e.g.
	// ["jpg", "jpeg", "png"]. Empty means all file types are allowed.
	Extensions []string `toml:"extensions"`
}

// ExtensionSet normalizes the filter into a lowercase, dot-stripped set.
// nil means "allow all".
func (p *SearchPath) ExtensionSet() map[string]struct{} {
	if len(p.Extensions) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(p.Extensions))
	for _, ext := range p.Extensions {
		set[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return set
}

// NormalizePrefix ensures a location prefix starts with "/" and has no
// trailing "/" (except the bare root prefix).
func NormalizePrefix(raw string) string {
	p := raw
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = p[:len(p)-1]
	}
	return p
}

// DefaultServerConfig returns the server defaults applied before decoding.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Bind:              "0.0.0.0:8080",
		Keepalive:         true,
		ConnectionTimeout: 300,
		MaxHeaderSize:     ByteSize(8192),
		MaxHeaders:        64,
		MaxBodySize:       ByteSize(1 * mb),
		HTTP2MaxStreams:   128,
		MaxFileSize:       ByteSize(10 * mb),
		StreamBufferSize:  ByteSize(64 * kb),
		Cors: CorsConfig{
			Enabled:          false,
			AllowOrigins:     []string{"*"},
			AllowMethods:     []string{"GET", "HEAD", "OPTIONS"},
			AllowHeaders:     []string{"*"},
			ExposeHeaders:    []string{"Content-Length", "Content-Type"},
			MaxAge:           86400,
			AllowCredentials: false,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 10,
			BurstSize:         30,
			CleanupInterval:   600,
		},
	}
}

// Load reads, decodes and validates a TOML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates raw TOML config bytes.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{Server: DefaultServerConfig()}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	for i := range cfg.Locations {
		if cfg.Locations[i].Mode == "" {
			cfg.Locations[i].Mode = ModeSequential
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the startup invariants; any failure is fatal.
func (c *Config) Validate() error {
	if c.Server.MaxHeaderSize < MinHeaderSize {
		return fmt.Errorf("max_header_size must be >= %s (got %s)",
			ByteSize(MinHeaderSize), c.Server.MaxHeaderSize)
	}
	if c.Server.StreamBufferSize == 0 {
		return fmt.Errorf("stream_buffer_size must be > 0")
	}
	if len(c.Locations) == 0 {
		return fmt.Errorf("at least one [[locations]] must be configured")
	}

	if c.Server.Cors.Enabled && c.Server.Cors.AllowCredentials {
		for _, origin := range c.Server.Cors.AllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors: allow_credentials=true is incompatible with allow_origins=[\"*\"]")
			}
		}
	}

	if c.Server.RateLimit.Enabled {
		if c.Server.RateLimit.RequestsPerSecond == 0 {
			return fmt.Errorf("rate_limit.requests_per_second must be > 0")
		}
		if c.Server.RateLimit.BurstSize == 0 {
			return fmt.Errorf("rate_limit.burst_size must be > 0")
		}
	}

	seen := make(map[string]struct{}, len(c.Locations))
	for _, loc := range c.Locations {
		if len(loc.Paths) == 0 {
			return fmt.Errorf("location prefix=%q must have at least one path", loc.Prefix)
		}
		if strings.ContainsRune(loc.Prefix, 0) || strings.Contains(loc.Prefix, "..") {
			return fmt.Errorf("location prefix=%q contains forbidden characters", loc.Prefix)
		}
		switch loc.Mode {
		case ModeSequential, ModeConcurrent, ModeLatestModified:
		default:
			return fmt.Errorf("location prefix=%q has unknown mode %q", loc.Prefix, loc.Mode)
		}
		normalized := NormalizePrefix(loc.Prefix)
		if _, dup := seen[normalized]; dup {
			return fmt.Errorf("duplicate location prefix=%q", loc.Prefix)
		}
		seen[normalized] = struct{}{}
	}
	return nil
}
