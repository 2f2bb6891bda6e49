package local

import (
	"context"
	"os"
	"path/filepath"

	"oceangateway/internal/blob"

	"github.com/bmatcuk/doublestar/v4"
)

// Discover returns the deduplicated files matching any pattern, in pattern
// order. Local paths come back absolute and must be regular files; object
// store URLs are expanded through opener.
func Discover(ctx context.Context, opener *blob.Opener, patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var result []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			result = append(result, p)
		}
	}

	for _, pattern := range patterns {
		if blob.IsURL(pattern) {
			matches, err := opener.Glob(ctx, pattern)
			if err != nil {
				return nil, err
			}
			for _, m := range matches {
				add(m)
			}
			continue
		}

		pattern, err := absPattern(pattern)
		if err != nil {
			return nil, err
		}
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			add(m)
		}
	}
	return result, nil
}

// WatchDirs returns the static directory prefix of every local pattern,
// for change watching. Object store URLs are skipped.
func WatchDirs(patterns []string) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, pattern := range patterns {
		if blob.IsURL(pattern) {
			continue
		}
		pattern, err := absPattern(pattern)
		if err != nil {
			continue
		}
		dir := staticDir(pattern)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// Matches reports whether path matches any local pattern.
func Matches(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if blob.IsURL(pattern) {
			continue
		}
		pattern, err := absPattern(pattern)
		if err != nil {
			continue
		}
		if ok, _ := doublestar.PathMatch(pattern, path); ok {
			return true
		}
	}
	return false
}

func absPattern(pattern string) (string, error) {
	if filepath.IsAbs(pattern) {
		return pattern, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, pattern), nil
}

// staticDir returns the directory holding everything before the first glob
// character. A literal path yields its parent directory.
func staticDir(pattern string) string {
	for i, c := range pattern {
		if c == '*' || c == '?' || c == '[' || c == '{' {
			return filepath.Dir(pattern[:i])
		}
	}
	return filepath.Dir(pattern)
}
