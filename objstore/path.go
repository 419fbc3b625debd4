package objstore

import (
	"path/filepath"
	"strings"
)

// Delimiter separates key segments.
const Delimiter = "/"

// DirKey returns dirname with exactly one trailing slash.
// The empty string denotes the bucket root and is returned unchanged.
func DirKey(dirname string) string {
	if dirname == "" {
		return ""
	}
	return strings.TrimRight(dirname, Delimiter) + Delimiter
}

// JoinKey joins a key prefix and a relative local path with exactly one
// slash. OS path separators in rel are converted to slashes.
func JoinKey(dir, rel string) string {
	rel = strings.TrimLeft(filepath.ToSlash(rel), Delimiter)
	dir = strings.TrimRight(dir, Delimiter)
	switch {
	case dir == "":
		return rel
	case rel == "":
		return dir
	}
	return dir + Delimiter + rel
}

// relKey returns key relative to prefix. ok is false when key is outside it.
func relKey(prefix, key string) (rel string, ok bool) {
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	return key[len(prefix):], true
}
