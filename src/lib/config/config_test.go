package config

import (
	"strings"
	"testing"
)

func TestParseByteSize(t *testing.T) {
	testCases := []struct {
		input    string
		expected ByteSize
		ok       bool
	}{
		{"0", 0, true},
		{"1024", 1024, true},
		{"8KB", 8192, true},
		{"8kb", 8192, true},
		{"64 KB", 65536, true},
		{"1MB", 1048576, true},
		{"2GB", 2147483648, true},
		{"512B", 512, true},
		{"3K", 3072, true},
		{"2m", 2097152, true},
		{"", 0, false},
		{"KB", 0, false},
		{"-1", 0, false},
		{"10TB", 0, false},
		{"10XB", 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			result, err := ParseByteSize(tc.input)
			if tc.ok && err != nil {
				t.Fatalf("ParseByteSize(%q) unexpected error: %v", tc.input, err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatalf("ParseByteSize(%q) expected error, got %d", tc.input, result)
				}
				return
			}
			if result != tc.expected {
				t.Errorf("ParseByteSize(%q) = %d, expected %d", tc.input, result, tc.expected)
			}
		})
	}
}

func TestByteSizeString(t *testing.T) {
	testCases := []struct {
		input    ByteSize
		expected string
	}{
		{0, "0"},
		{512, "512B"},
		{8192, "8KB"},
		{1048576, "1MB"},
		{2147483648, "2GB"},
		{1500, "1500B"},
	}
	for _, tc := range testCases {
		if got := tc.input.String(); got != tc.expected {
			t.Errorf("ByteSize(%d).String() = %q, expected %q", uint64(tc.input), got, tc.expected)
		}
	}
}

func TestNormalizePrefix(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"/imgs", "/imgs"},
		{"imgs", "/imgs"},
		{"/imgs/", "/imgs"},
		{"/imgs///", "/imgs"},
		{"/", "/"},
		{"", "/"},
	}
	for _, tc := range testCases {
		if got := NormalizePrefix(tc.input); got != tc.expected {
			t.Errorf("NormalizePrefix(%q) = %q, expected %q", tc.input, got, tc.expected)
		}
	}
}

func TestExtensionSet(t *testing.T) {
	p := SearchPath{Extensions: []string{"JPG", ".png", "jpg"}}
	set := p.ExtensionSet()
	if len(set) != 2 {
		t.Fatalf("expected 2 normalized extensions, got %d: %v", len(set), set)
	}
	for _, want := range []string{"jpg", "png"} {
		if _, ok := set[want]; !ok {
			t.Errorf("expected %q in set", want)
		}
	}

	empty := SearchPath{}
	if empty.ExtensionSet() != nil {
		t.Error("empty extension list should mean allow-all (nil set)")
	}
}

const minimalConfig = `
[server]
bind = "127.0.0.1:0"

[[locations]]
prefix = "/"
  [[locations.paths]]
  root = "/tmp"
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.MaxHeaderSize != 8192 {
		t.Errorf("expected default max_header_size 8192, got %d", cfg.Server.MaxHeaderSize)
	}
	if cfg.Server.MaxBodySize != 1048576 {
		t.Errorf("expected default max_body_size 1MB, got %d", cfg.Server.MaxBodySize)
	}
	if cfg.Server.StreamBufferSize != 65536 {
		t.Errorf("expected default stream_buffer_size 64KB, got %d", cfg.Server.StreamBufferSize)
	}
	if !cfg.Server.Keepalive {
		t.Error("expected keepalive default true")
	}
	if cfg.Locations[0].Mode != ModeSequential {
		t.Errorf("expected default mode sequential, got %q", cfg.Locations[0].Mode)
	}
}

func TestParseByteSizeFields(t *testing.T) {
	cfg, err := Parse([]byte(`
[server]
bind = "127.0.0.1:0"
max_body_size = "2MB"
max_file_size = 1024
stream_buffer_size = "16KB"

[[locations]]
prefix = "/"
max_file_size = "5MB"
  [[locations.paths]]
  root = "/tmp"
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.MaxBodySize != 2*1048576 {
		t.Errorf("max_body_size = %d", cfg.Server.MaxBodySize)
	}
	if cfg.Server.MaxFileSize != 1024 {
		t.Errorf("max_file_size = %d", cfg.Server.MaxFileSize)
	}
	if cfg.Server.StreamBufferSize != 16384 {
		t.Errorf("stream_buffer_size = %d", cfg.Server.StreamBufferSize)
	}
	if cfg.Locations[0].MaxFileSize == nil || *cfg.Locations[0].MaxFileSize != 5*1048576 {
		t.Errorf("location max_file_size = %v", cfg.Locations[0].MaxFileSize)
	}
}

func TestValidateRejections(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "header size too small",
			mutate:  func(c *Config) { c.Server.MaxHeaderSize = 4096 },
			wantErr: "max_header_size",
		},
		{
			name:    "zero stream buffer",
			mutate:  func(c *Config) { c.Server.StreamBufferSize = 0 },
			wantErr: "stream_buffer_size",
		},
		{
			name:    "no locations",
			mutate:  func(c *Config) { c.Locations = nil },
			wantErr: "at least one",
		},
		{
			name: "location without paths",
			mutate: func(c *Config) {
				c.Locations[0].Paths = nil
			},
			wantErr: "at least one path",
		},
		{
			name: "prefix with traversal",
			mutate: func(c *Config) {
				c.Locations[0].Prefix = "/a/../b"
			},
			wantErr: "forbidden characters",
		},
		{
			name: "duplicate prefixes",
			mutate: func(c *Config) {
				c.Locations = append(c.Locations, LocationConfig{
					Prefix: "//",
					Mode:   ModeSequential,
					Paths:  []SearchPath{{Root: "/tmp"}},
				})
			},
			wantErr: "duplicate",
		},
		{
			name: "unknown mode",
			mutate: func(c *Config) {
				c.Locations[0].Mode = "fastest"
			},
			wantErr: "unknown mode",
		},
		{
			name: "rate limit zero rps",
			mutate: func(c *Config) {
				c.Server.RateLimit.Enabled = true
				c.Server.RateLimit.RequestsPerSecond = 0
			},
			wantErr: "requests_per_second",
		},
		{
			name: "rate limit zero burst",
			mutate: func(c *Config) {
				c.Server.RateLimit.Enabled = true
				c.Server.RateLimit.BurstSize = 0
			},
			wantErr: "burst_size",
		},
		{
			name: "credentials with wildcard origin",
			mutate: func(c *Config) {
				c.Server.Cors.Enabled = true
				c.Server.Cors.AllowCredentials = true
			},
			wantErr: "allow_credentials",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Parse([]byte(minimalConfig))
			if err != nil {
				t.Fatalf("baseline config failed to parse: %v", err)
			}
			tc.mutate(cfg)
			err = cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got none")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}
