package source

import (
	"path/filepath"
	"strings"
)

// PathFilter excludes files by glob pattern, relative to the source root.
// Matching is case-insensitive because invoice trees usually come from
// Windows machines.
//
// Supported forms: "dir/**" (a directory at any depth), "**/name",
// "*.ext" and plain filepath.Match globs tried against the whole path and
// the base name.
type PathFilter struct {
	patterns []string
}

// NewPathFilter creates a filter. Empty patterns are ignored.
func NewPathFilter(patterns ...string) *PathFilter {
	f := &PathFilter{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		f.patterns = append(f.patterns, strings.ToLower(filepath.ToSlash(p)))
	}
	return f
}

// Patterns returns the normalized patterns.
func (f *PathFilter) Patterns() []string {
	return f.patterns
}

// ShouldExclude reports whether relPath matches any pattern.
func (f *PathFilter) ShouldExclude(relPath string) bool {
	if f == nil {
		return false
	}
	relPath = strings.ToLower(filepath.ToSlash(relPath))
	for _, pattern := range f.patterns {
		if matchPattern(pattern, relPath) {
			return true
		}
	}
	return false
}

func matchPattern(pattern, path string) bool {
	if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
		parts := strings.Split(path, "/")
		for i := range parts {
			if matchSimplePattern(rest, strings.Join(parts[i:], "/")) {
				return true
			}
		}
		return false
	}

	if dir, ok := strings.CutSuffix(pattern, "/**"); ok {
		parts := strings.Split(path, "/")
		// Only directory components count, never the file itself.
		for _, part := range parts[:len(parts)-1] {
			if part == dir {
				return true
			}
		}
		return strings.HasPrefix(path, dir+"/")
	}

	return matchSimplePattern(pattern, path)
}

func matchSimplePattern(pattern, name string) bool {
	if ext, ok := strings.CutPrefix(pattern, "*."); ok && !strings.ContainsAny(ext, "*?[") {
		return strings.HasSuffix(name, "."+ext)
	}
	if pattern == name {
		return true
	}
	if matched, _ := filepath.Match(pattern, name); matched {
		return true
	}
	matched, _ := filepath.Match(pattern, filepath.Base(name))
	return matched
}

// HasExt reports whether name ends in ext, ignoring case.
func HasExt(name, ext string) bool {
	return strings.EqualFold(filepath.Ext(name), ext)
}
