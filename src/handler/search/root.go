package search

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// errTraversal marks a candidate whose canonical path escaped its root.
var errTraversal = errors.New("path traversal blocked")

// Root is one search root: a canonical directory plus an optional extension
// allow-set. nil extensions means all file types are allowed.
type Root struct {
	path       string
	extensions map[string]struct{}
}

// NewRoot resolves dir to its canonical form and verifies it is a
// directory. extensions must already be normalized (lowercase, no dot).
func NewRoot(dir string, extensions map[string]struct{}) (*Root, error) {
	canonical, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(canonical) {
		canonical, err = filepath.Abs(canonical)
		if err != nil {
			return nil, err
		}
	}
	info, err := os.Stat(canonical)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("not a directory")
	}
	return &Root{path: canonical, extensions: extensions}, nil
}

// Path returns the canonical root directory.
func (r *Root) Path() string {
	return r.path
}

// Accepts reports whether the extension filter allows ext.
func (r *Root) Accepts(ext string) bool {
	if r.extensions == nil {
		return true
	}
	_, ok := r.extensions[strings.ToLower(ext)]
	return ok
}

// ExtensionList renders the filter for logging: sorted entries or "*".
func (r *Root) ExtensionList() string {
	if r.extensions == nil {
		return "*"
	}
	exts := make([]string, 0, len(r.extensions))
	for ext := range r.extensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return strings.Join(exts, ", ")
}

// Hit is a successfully resolved file. The caller owns File and must close
// it once the response body has been written or abandoned.
type Hit struct {
	Path    string
	File    *os.File
	Size    int64
	ModTime time.Time
}

// probe attempts to resolve the relative path under this root.
//
// Returns:
//   - (hit, nil)          — file found
//   - (nil, nil)          — miss: keep searching
//   - (nil, errTraversal) — canonical path escaped the root
//
// Size, regularity and mtime are read from the open handle rather than a
// separate stat, so a concurrent rename cannot swap the served file.
func (r *Root) probe(relative, ext, requestPath string, maxFileSize int64) (*Hit, error) {
	if !r.Accepts(ext) {
		logrus.WithFields(logrus.Fields{
			"path": requestPath,
			"root": r.path,
			"ext":  ext,
		}).Debug("skipped (extension not allowed)")
		return nil, nil
	}

	candidate := filepath.Join(r.path, relative)
	canonical, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		return nil, nil
	}
	if !isDescendant(r.path, canonical) {
		logrus.WithField("path", requestPath).Warn("path traversal blocked")
		return nil, errTraversal
	}

	file, err := os.Open(canonical)
	if err != nil {
		return nil, nil
	}
	info, err := file.Stat()
	if err != nil || !info.Mode().IsRegular() {
		file.Close()
		return nil, nil
	}

	if maxFileSize > 0 && info.Size() > maxFileSize {
		logrus.WithFields(logrus.Fields{
			"path":     requestPath,
			"resolved": canonical,
			"size":     info.Size(),
			"limit":    maxFileSize,
		}).Debug("skipped (file too large)")
		file.Close()
		return nil, nil
	}

	modified := info.ModTime()
	if modified.IsZero() {
		modified = time.Unix(0, 0)
	}

	return &Hit{Path: canonical, File: file, Size: info.Size(), ModTime: modified}, nil
}

// isDescendant reports whether candidate equals root or lies beneath it.
func isDescendant(root, candidate string) bool {
	if candidate == root {
		return true
	}
	return strings.HasPrefix(candidate, root+string(filepath.Separator))
}
