package search

import (
	"context"
	"testing"

	"github.com/blaxel-ai/filehunter/src/lib/config"
)

func makeSearcher(t *testing.T, locations ...config.LocationConfig) *Searcher {
	t.Helper()
	cfg := &config.Config{
		Server:    config.DefaultServerConfig(),
		Locations: locations,
	}
	return NewSearcher(cfg)
}

func TestMatchLongestPrefixWins(t *testing.T) {
	imgRoot := t.TempDir()
	rootRoot := t.TempDir()

	s := makeSearcher(t,
		config.LocationConfig{Prefix: "/", Mode: config.ModeSequential, Paths: []config.SearchPath{{Root: rootRoot}}},
		config.LocationConfig{Prefix: "/img", Mode: config.ModeSequential, Paths: []config.SearchPath{{Root: imgRoot}}},
	)

	testCases := []struct {
		name      string
		path      string
		prefix    string
		remainder string
	}{
		{"specific prefix", "/img/photo.jpg", "/img", "/photo.jpg"},
		{"exact prefix match", "/img", "/img", "/"},
		{"boundary check falls to root", "/image/x", "/", "/image/x"},
		{"root catches everything", "/other/file.txt", "/", "/other/file.txt"},
		{"bare root", "/", "/", "/"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			loc, remainder := s.Match(tc.path)
			if loc == nil {
				t.Fatalf("Match(%q) found no location", tc.path)
			}
			if loc.Prefix() != tc.prefix {
				t.Errorf("Match(%q) prefix = %q, expected %q", tc.path, loc.Prefix(), tc.prefix)
			}
			if remainder != tc.remainder {
				t.Errorf("Match(%q) remainder = %q, expected %q", tc.path, remainder, tc.remainder)
			}
		})
	}
}

func TestMatchNoLocation(t *testing.T) {
	s := makeSearcher(t,
		config.LocationConfig{Prefix: "/img", Mode: config.ModeSequential, Paths: []config.SearchPath{{Root: t.TempDir()}}},
	)
	if loc, _ := s.Match("/other/file.txt"); loc != nil {
		t.Errorf("expected no match, got prefix %q", loc.Prefix())
	}
	if loc, _ := s.Match("/image/x"); loc != nil {
		t.Errorf("expected boundary check to reject /image/x, got prefix %q", loc.Prefix())
	}
}

func TestSearcherOrderIsStable(t *testing.T) {
	// Equal-length prefixes keep declaration order after sorting.
	s := makeSearcher(t,
		config.LocationConfig{Prefix: "/aa", Mode: config.ModeSequential, Paths: []config.SearchPath{{Root: t.TempDir()}}},
		config.LocationConfig{Prefix: "/bb", Mode: config.ModeSequential, Paths: []config.SearchPath{{Root: t.TempDir()}}},
		config.LocationConfig{Prefix: "/longer", Mode: config.ModeSequential, Paths: []config.SearchPath{{Root: t.TempDir()}}},
	)

	prefixes := make([]string, 0, len(s.locations))
	for _, loc := range s.locations {
		prefixes = append(prefixes, loc.Prefix())
	}
	expected := []string{"/longer", "/aa", "/bb"}
	for i := range expected {
		if prefixes[i] != expected[i] {
			t.Fatalf("location order = %v, expected %v", prefixes, expected)
		}
	}
}

func TestSearchRoutesToLocation(t *testing.T) {
	imgRoot := t.TempDir()
	rootRoot := t.TempDir()
	writeFile(t, imgRoot, "photo.jpg", "img-content")
	writeFile(t, rootRoot, "photo.jpg", "root-content")

	s := makeSearcher(t,
		config.LocationConfig{Prefix: "/img", Mode: config.ModeSequential, Paths: []config.SearchPath{{Root: imgRoot}}},
		config.LocationConfig{Prefix: "/", Mode: config.ModeSequential, Paths: []config.SearchPath{{Root: rootRoot}}},
	)

	hit := s.Search(context.Background(), "/img/photo.jpg")
	if body := readHit(t, hit); body != "img-content" {
		t.Errorf("expected %q, got %q", "img-content", body)
	}

	hit = s.Search(context.Background(), "/photo.jpg")
	if body := readHit(t, hit); body != "root-content" {
		t.Errorf("expected %q, got %q", "root-content", body)
	}
}

func TestSearchNormalizesPrefixes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "f.txt", "x")

	s := makeSearcher(t,
		config.LocationConfig{Prefix: "assets/", Mode: config.ModeSequential, Paths: []config.SearchPath{{Root: root}}},
	)

	hit := s.Search(context.Background(), "/assets/f.txt")
	if body := readHit(t, hit); body != "x" {
		t.Errorf("expected normalized prefix to match, got %q", body)
	}
}
