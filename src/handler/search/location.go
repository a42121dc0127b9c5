package search

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/blaxel-ai/filehunter/src/lib/config"
)

// Location binds a normalized URL prefix to an ordered list of search roots
// and a search strategy. Immutable after construction.
type Location struct {
	prefix      string
	roots       []*Root
	mode        config.SearchMode
	maxFileSize int64
}

// NewLocation builds a location from config. Roots that cannot be resolved
// or are not directories are skipped with a warning; losing some roots is
// not fatal as long as the location itself was declared with paths.
func NewLocation(loc *config.LocationConfig, defaultMaxFileSize int64) *Location {
	prefix := config.NormalizePrefix(loc.Prefix)

	roots := make([]*Root, 0, len(loc.Paths))
	for i := range loc.Paths {
		entry := &loc.Paths[i]
		root, err := NewRoot(entry.Root, entry.ExtensionSet())
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"path":  entry.Root,
				"error": err,
			}).Warn("cannot resolve search path, skipping")
			continue
		}
		logrus.WithFields(logrus.Fields{
			"prefix":     prefix,
			"path":       root.Path(),
			"extensions": root.ExtensionList(),
		}).Info("search path registered")
		roots = append(roots, root)
	}

	if len(roots) == 0 {
		logrus.WithField("prefix", prefix).Warn("no valid search paths for location")
	}

	maxFileSize := defaultMaxFileSize
	if loc.MaxFileSize != nil {
		maxFileSize = loc.MaxFileSize.Int64()
	}

	logrus.WithFields(logrus.Fields{
		"prefix": prefix,
		"mode":   loc.Mode,
		"roots":  len(roots),
	}).Info("location configured")

	return &Location{
		prefix:      prefix,
		roots:       roots,
		mode:        loc.Mode,
		maxFileSize: maxFileSize,
	}
}

// Prefix returns the normalized URL prefix.
func (l *Location) Prefix() string {
	return l.prefix
}

// Search resolves a prefix-stripped request path across this location's
// roots using its configured strategy. A nil result means not found.
func (l *Location) Search(ctx context.Context, requestPath string) *Hit {
	switch l.mode {
	case config.ModeConcurrent:
		return l.searchConcurrent(ctx, requestPath)
	case config.ModeLatestModified:
		return l.searchLatest(requestPath)
	default:
		return l.searchSequential(requestPath)
	}
}

// searchSequential probes roots in declared order; the first hit wins.
// A traversal violation fails the whole search closed.
func (l *Location) searchSequential(requestPath string) *Hit {
	relative, ok := SanitizePath(requestPath)
	if !ok {
		return nil
	}
	ext := PathExtension(relative)

	for _, root := range l.roots {
		hit, err := root.probe(relative, ext, requestPath, l.maxFileSize)
		if err != nil {
			return nil
		}
		if hit != nil {
			return hit
		}
	}
	return nil
}

// searchConcurrent races one probe per eligible root; the first hit wins
// and the remaining probes are cancelled. A traversal violation on one root
// only drops that root from the race.
func (l *Location) searchConcurrent(ctx context.Context, requestPath string) *Hit {
	relative, ok := SanitizePath(requestPath)
	if !ok {
		return nil
	}
	ext := PathExtension(relative)

	eligible := make([]*Root, 0, len(l.roots))
	for _, root := range l.roots {
		if !root.Accepts(ext) {
			logrus.WithFields(logrus.Fields{
				"path": requestPath,
				"root": root.Path(),
				"ext":  ext,
			}).Debug("skipped (extension not allowed)")
			continue
		}
		eligible = append(eligible, root)
	}
	if len(eligible) == 0 {
		return nil
	}

	raceCtx, cancel := context.WithCancel(ctx)
	results := make(chan *Hit, len(eligible))
	for _, root := range eligible {
		go func(r *Root) {
			hit, err := r.probe(relative, ext, requestPath, l.maxFileSize)
			if err != nil {
				hit = nil
			}
			if hit != nil && raceCtx.Err() != nil {
				// Lost the race after opening; release the handle.
				hit.File.Close()
				hit = nil
			}
			results <- hit
		}(root)
	}

	for received := 0; received < len(eligible); received++ {
		select {
		case hit := <-results:
			if hit == nil {
				continue
			}
			cancel()
			// Drain the losers in the background and close their handles.
			go drain(results, len(eligible)-received-1)
			return hit
		case <-ctx.Done():
			cancel()
			go drain(results, len(eligible)-received)
			return nil
		}
	}
	cancel()
	return nil
}

// searchLatest probes every eligible root in declared order and keeps the
// hit with the greatest modification time; ties go to the earlier root.
// A traversal violation fails the whole search closed.
func (l *Location) searchLatest(requestPath string) *Hit {
	relative, ok := SanitizePath(requestPath)
	if !ok {
		return nil
	}
	ext := PathExtension(relative)

	var best *Hit
	for _, root := range l.roots {
		hit, err := root.probe(relative, ext, requestPath, l.maxFileSize)
		if err != nil {
			if best != nil {
				best.File.Close()
			}
			return nil
		}
		if hit == nil {
			continue
		}
		if best == nil {
			best = hit
			continue
		}
		if hit.ModTime.After(best.ModTime) {
			logrus.WithFields(logrus.Fields{
				"path":       requestPath,
				"superseded": best.Path,
				"by":         hit.Path,
			}).Debug("newer file found, replacing previous candidate")
			best.File.Close()
			best = hit
		} else {
			hit.File.Close()
		}
	}
	return best
}

// drain receives n pending race results and closes any hit handles.
func drain(results <-chan *Hit, n int) {
	for i := 0; i < n; i++ {
		if hit := <-results; hit != nil {
			hit.File.Close()
		}
	}
}
