package search

import (
	"context"
	"sort"

	"github.com/blaxel-ai/filehunter/src/lib/config"
)

// Searcher maps request paths to locations by longest prefix and runs the
// matched location's search. Immutable after construction, so concurrent
// request handlers can share it without synchronization.
type Searcher struct {
	locations []*Location
}

// NewSearcher builds the location table from config. Locations are sorted
// by prefix length descending; the sort is stable so declaration order
// breaks ties.
func NewSearcher(cfg *config.Config) *Searcher {
	locations := make([]*Location, 0, len(cfg.Locations))
	for i := range cfg.Locations {
		locations = append(locations, NewLocation(&cfg.Locations[i], cfg.Server.MaxFileSize.Int64()))
	}

	sort.SliceStable(locations, func(i, j int) bool {
		return len(locations[i].prefix) > len(locations[j].prefix)
	})

	return &Searcher{locations: locations}
}

// Match finds the longest-prefix location for a request path, returning the
// location and the remainder after stripping the prefix. The "/" boundary
// check keeps "/img" from matching "/image/x".
func (s *Searcher) Match(path string) (*Location, string) {
	for _, loc := range s.locations {
		if loc.prefix == "/" {
			return loc, path
		}
		if path == loc.prefix {
			return loc, "/"
		}
		if len(path) > len(loc.prefix) && path[:len(loc.prefix)] == loc.prefix && path[len(loc.prefix)] == '/' {
			return loc, path[len(loc.prefix):]
		}
	}
	return nil, ""
}

// Search routes the request path to a location and executes its strategy.
// A nil result means not found.
func (s *Searcher) Search(ctx context.Context, requestPath string) *Hit {
	loc, stripped := s.Match(requestPath)
	if loc == nil {
		return nil
	}
	return loc.Search(ctx, stripped)
}
