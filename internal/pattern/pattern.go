// Package pattern provides gitignore-style matching used to filter local
// files during directory uploads.
package pattern

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// Matcher decides whether a relative path is excluded.
// The zero value excludes nothing.
type Matcher struct {
	matcher gitignore.Matcher
	count   int
}

// New validates patterns and returns a matcher for them. Patterns follow
// .gitignore rules:
//   - "*.tmp" (no slash) matches a name at any depth
//   - "name/" matches only directories, and everything below them
//   - "logs/*.log" is anchored at the upload root
//   - "**/" and "/**" match zero or more directories
//   - "!pattern" re-includes a path excluded by an earlier pattern
//
// A later pattern takes precedence over an earlier one. Empty patterns are ignored.
func New(excludes ...string) (*Matcher, error) {
	var parsed []gitignore.Pattern
	for i, p := range excludes {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if err := check(p); err != nil {
			return nil, &Error{Pattern: p, Index: i, Err: err}
		}
		parsed = append(parsed, gitignore.ParsePattern(p, nil))
	}
	return &Matcher{matcher: gitignore.NewMatcher(parsed), count: len(parsed)}, nil
}

// check rejects patterns whose segments are not valid path.Match globs;
// gitignore treats those as never matching.
func check(p string) error {
	p = strings.TrimPrefix(p, "!")
	for _, segment := range strings.Split(p, "/") {
		if segment == "**" {
			continue
		}
		if _, err := path.Match(segment, ""); err != nil {
			return err
		}
	}
	return nil
}

// Empty reports whether the matcher has no patterns.
func (m *Matcher) Empty() bool {
	return m == nil || m.count == 0
}

// Excluded reports whether relPath, or for directories the tree rooted at it,
// should be skipped.
func (m *Matcher) Excluded(relPath string, isDir bool) bool {
	if m.Empty() {
		return false
	}
	relPath = strings.Trim(filepath.ToSlash(relPath), "/")
	if relPath == "" {
		return false
	}
	return m.matcher.Match(strings.Split(relPath, "/"), isDir)
}

// Error represents an invalid exclude pattern.
type Error struct {
	Pattern string
	Index   int
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid pattern at index %d '%s': %v", e.Index, e.Pattern, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
