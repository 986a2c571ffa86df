package media

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrNoMatch is returned when no argument selected any file.
var ErrNoMatch = errors.New("no files matched")

// Select expands args into file paths. Arguments without glob syntax are
// kept as given; patterns are expanded relative to their static prefix.
// Duplicates are dropped and the first occurrence keeps its position.
// A pattern matching nothing is logged and skipped.
func Select(args []string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	seen := make(map[string]struct{}, len(args))
	paths := make([]string, 0, len(args))
	add := func(p string) {
		p = filepath.Clean(p)
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
	}

	for _, arg := range args {
		if !isPattern(arg) {
			add(arg)
			continue
		}

		matches, err := expand(arg)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			logger.Warn("no match for pattern", "pattern", arg)
			continue
		}
		for _, m := range matches {
			add(m)
		}
	}

	if len(paths) == 0 {
		return nil, ErrNoMatch
	}
	return paths, nil
}

func isPattern(s string) bool {
	for _, r := range s {
		switch r {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

func expand(arg string) ([]string, error) {
	base, pattern := doublestar.SplitPattern(filepath.ToSlash(arg))
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q: %w", arg, doublestar.ErrBadPattern)
	}

	matches, err := doublestar.Glob(os.DirFS(filepath.FromSlash(base)), pattern,
		doublestar.WithFilesOnly(), doublestar.WithNoFollow())
	if err != nil {
		return nil, fmt.Errorf("expand %q: %w", arg, err)
	}

	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = filepath.Join(filepath.FromSlash(base), filepath.FromSlash(m))
	}
	return out, nil
}
