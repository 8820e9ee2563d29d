package scraper

import (
	"fmt"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/quiby-ai/review-insights/internal/domain"
)

// FileSource reads tuple files matching a glob such as "dumps/**/*.json".
type FileSource struct {
	pattern string
}

func NewFileSource(pattern string) *FileSource {
	return &FileSource{pattern: pattern}
}

// Files returns the matching paths in lexical order.
func (s *FileSource) Files() ([]string, error) {
	if !doublestar.ValidatePattern(s.pattern) {
		return nil, fmt.Errorf("invalid glob pattern: %s", s.pattern)
	}

	matches, err := doublestar.FilepathGlob(s.pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to expand %s: %w", s.pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// ReadFile decodes one tuple file and reports how many elements were skipped
// as malformed.
func (s *FileSource) ReadFile(path string) ([]domain.RawReview, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	reviews, skipped, err := DecodeTuples(data)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return reviews, skipped, nil
}
