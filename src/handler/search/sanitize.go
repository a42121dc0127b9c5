package search

import (
	"net/url"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// SanitizePath converts a raw (still percent-encoded) URL path into a safe
// relative filesystem path. It returns ok=false when the path must be
// rejected: invalid percent-encoding or UTF-8, embedded NUL bytes, any
// component starting with "." (hidden files, "." and ".."), or an empty
// result (a request for "/").
//
// The output contains only plain segments, so feeding it back through the
// sanitizer is a no-op.
func SanitizePath(raw string) (string, bool) {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", false
	}
	if !utf8.ValidString(decoded) {
		return "", false
	}

	// NUL could truncate the path at the OS level.
	if strings.ContainsRune(decoded, 0) {
		return "", false
	}

	var segments []string
	for _, seg := range strings.Split(decoded, "/") {
		if seg == "" {
			// Leading slash or duplicate separators.
			continue
		}
		// Blocks hidden files and directories (.env, .git) as well as any
		// "." or ".." that survived decoding.
		if seg[0] == '.' {
			return "", false
		}
		segments = append(segments, seg)
	}

	if len(segments) == 0 {
		return "", false
	}
	return filepath.Join(segments...), true
}

// PathExtension returns the lowercased extension of a sanitized relative
// path, without the leading dot. Empty when the last segment has none.
func PathExtension(relative string) string {
	ext := filepath.Ext(relative)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
