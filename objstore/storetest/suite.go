// Package storetest provides a conformance test suite for objstore drivers.
//
// The suite drives a Store through its directory operations and checks the
// observable contract: marker keys, round trips, prefix deletion with
// pagination, and error classification. Drivers run it against a fresh,
// empty bucket per test.
//
// Example usage:
//
//	func TestMyDriver(t *testing.T) {
//	    storetest.TestSuite(t, func(t *testing.T, opts ...objstore.Option) *objstore.Store {
//	        store, err := objstore.New(mydriver.New(), opts...)
//	        require.NoError(t, err)
//	        return store
//	    })
//	}
package storetest

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qinguoyi/omnistore/objstore"
	"github.com/qinguoyi/omnistore/objstore/errors"
)

// NewStoreFunc returns a store over a fresh, empty bucket.
type NewStoreFunc func(t *testing.T, opts ...objstore.Option) *objstore.Store

// TestSuite runs all conformance tests.
func TestSuite(t *testing.T, newStore NewStoreFunc) {
	TestSuiteWithSkip(t, newStore, nil)
}

// TestSuiteWithSkip runs conformance tests, skipping the named ones.
func TestSuiteWithSkip(t *testing.T, newStore NewStoreFunc, skipTests []string) {
	tests := []struct {
		name string
		fn   func(*testing.T, NewStoreFunc)
	}{
		{"CreateDir", TestCreateDir},
		{"UploadDownload", TestUploadDownload},
		{"DirRoundTrip", TestDirRoundTrip},
		{"DeleteDir", TestDeleteDir},
		{"DeleteDirPagination", TestDeleteDirPagination},
		{"Delete", TestDelete},
		{"DeleteMarker", TestDeleteMarker},
		{"Errors", TestErrors},
		{"List", TestList},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if slices.Contains(skipTests, tt.name) {
				t.Skip("Skipped by driver configuration")
			}
			tt.fn(t, newStore)
		})
	}
}

// TestCreateDir checks that both spellings of a directory write one marker.
func TestCreateDir(t *testing.T, newStore NewStoreFunc) {
	ctx := context.Background()
	store := newStore(t)

	require.NoError(t, store.CreateDir(ctx, "a/b"))
	require.NoError(t, store.CreateDir(ctx, "a/b/"))

	ok, err := store.Exists(ctx, "a/b/")
	require.NoError(t, err)
	assert.True(t, ok)

	objects, _, err := store.List(ctx, "a/b", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a/b/"}, keys(objects))
}

// TestUploadDownload uploads a file, checks it exists and downloads it.
func TestUploadDownload(t *testing.T, newStore NewStoreFunc) {
	ctx := context.Background()
	store := newStore(t)
	dir := t.TempDir()

	src := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))
	require.NoError(t, store.Upload(ctx, src, "docs/notes.txt"))

	ok, err := store.Exists(ctx, "docs/notes.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	dest := filepath.Join(dir, "out", "out.txt")
	require.NoError(t, store.Download(ctx, "docs/notes.txt", dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

// TestDirRoundTrip uploads a tree and downloads it into a new directory.
func TestDirRoundTrip(t *testing.T, newStore NewStoreFunc) {
	ctx := context.Background()
	store := newStore(t)
	src := t.TempDir()

	files := map[string][]byte{
		"index.html":           []byte("<html></html>"),
		"css/site.css":         []byte("body{}"),
		"img/icons/logo.png":   {0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'},
		"docs/guide/intro.md":  []byte("# intro"),
		"docs/guide/empty.txt": {},
	}
	writeTree(t, src, files)
	require.NoError(t, os.MkdirAll(filepath.Join(src, "empty", "nested"), 0o755))

	require.NoError(t, store.UploadDir(ctx, src, "site/"))

	for _, marker := range []string{"site/css/", "site/img/", "site/img/icons/", "site/empty/", "site/empty/nested/"} {
		ok, err := store.Exists(ctx, marker)
		require.NoError(t, err)
		assert.True(t, ok, "marker %s", marker)
	}

	dest := filepath.Join(t.TempDir(), "mirror")
	require.NoError(t, store.DownloadDir(ctx, "site", dest))

	for rel, want := range files {
		got, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(rel)))
		require.NoError(t, err, rel)
		assert.True(t, bytes.Equal(want, got), rel)
	}
	info, err := os.Stat(filepath.Join(dest, "empty", "nested"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

// TestDeleteDir checks that a prefix is removed and siblings survive.
func TestDeleteDir(t *testing.T, newStore NewStoreFunc) {
	ctx := context.Background()
	store := newStore(t)
	src := t.TempDir()

	writeTree(t, src, map[string][]byte{
		"b/one.txt":        []byte("1"),
		"b/deep/two.txt":   []byte("2"),
		"bc/sibling.txt":   []byte("s"),
		"b-other/keep.txt": []byte("k"),
	})
	require.NoError(t, store.UploadDir(ctx, src, "a"))
	require.NoError(t, store.CreateDir(ctx, "a/b"))

	require.NoError(t, store.DeleteDir(ctx, "a/b"))

	remaining, _, err := store.List(ctx, "a/b/", true)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	for _, key := range []string{"a/bc/sibling.txt", "a/b-other/keep.txt"} {
		ok, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, key)
	}

	// Deleting a directory that no longer exists succeeds.
	assert.NoError(t, store.DeleteDir(ctx, "a/b/"))
}

// TestDeleteDirPagination deletes more objects than fit in one listing page.
func TestDeleteDirPagination(t *testing.T, newStore NewStoreFunc) {
	ctx := context.Background()
	store := newStore(t, objstore.WithListPageSize(2))
	src := t.TempDir()

	files := make(map[string][]byte)
	for _, name := range []string{"f1", "f2", "f3", "f4", "f5", "sub/f6", "sub/f7"} {
		files[name] = []byte(name)
	}
	writeTree(t, src, files)
	require.NoError(t, store.UploadDir(ctx, src, "bulk"))

	all, _, err := store.List(ctx, "bulk/", true)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(all), len(files))

	require.NoError(t, store.DeleteDir(ctx, "bulk"))

	all, _, err = store.List(ctx, "bulk/", true)
	require.NoError(t, err)
	assert.Empty(t, all)
}

// TestDelete checks single-object deletion semantics.
func TestDelete(t *testing.T, newStore NewStoreFunc) {
	ctx := context.Background()
	store := newStore(t)

	src := filepath.Join(t.TempDir(), "x.bin")
	require.NoError(t, os.WriteFile(src, []byte{1, 2, 3}, 0o644))
	require.NoError(t, store.Upload(ctx, src, "tmp/x.bin"))

	require.NoError(t, store.Delete(ctx, "tmp/x.bin"))
	ok, err := store.Exists(ctx, "tmp/x.bin")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, store.Delete(ctx, "tmp/never-existed.bin"))
}

// TestDeleteMarker checks that a marker is an object of its own: deleting it
// keeps the objects below it, and objects below a key do not imply a marker.
func TestDeleteMarker(t *testing.T, newStore NewStoreFunc) {
	ctx := context.Background()
	store := newStore(t)

	src := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(src, []byte("f"), 0o644))

	require.NoError(t, store.CreateDir(ctx, "a"))
	require.NoError(t, store.Upload(ctx, src, "a/f.txt"))

	require.NoError(t, store.Delete(ctx, "a/"))
	ok, err := store.Exists(ctx, "a/")
	require.NoError(t, err)
	assert.False(t, ok, "marker still exists after delete")

	ok, err = store.Exists(ctx, "a/f.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Upload(ctx, src, "b/c/f.txt"))
	for _, key := range []string{"b/", "b/c/"} {
		ok, err = store.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, "%s was never created", key)
	}
}

// TestErrors checks error classification of the bundled operations.
func TestErrors(t *testing.T, newStore NewStoreFunc) {
	ctx := context.Background()
	store := newStore(t)
	dir := t.TempDir()

	err := store.Download(ctx, "missing/file.txt", filepath.Join(dir, "f.txt"))
	assert.True(t, errors.IsNotFound(err), "download missing: %v", err)

	err = store.Upload(ctx, filepath.Join(dir, "nope.txt"), "k")
	assert.True(t, errors.IsNotFound(err), "upload missing: %v", err)

	err = store.Upload(ctx, dir, "k")
	assert.True(t, errors.IsInvalidInput(err), "upload directory: %v", err)

	src := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(src, []byte("f"), 0o644))
	err = store.Upload(ctx, src, "k/")
	assert.True(t, errors.IsInvalidInput(err), "upload to marker key: %v", err)
	ok, err := store.Exists(ctx, "k/")
	require.NoError(t, err)
	assert.False(t, ok)

	err = store.CreateDir(ctx, "")
	assert.True(t, errors.IsInvalidInput(err))

	_, err = store.Exists(ctx, "../escape")
	assert.True(t, errors.IsInvalidInput(err))
}

// TestList checks delimiter grouping.
func TestList(t *testing.T, newStore NewStoreFunc) {
	ctx := context.Background()
	store := newStore(t)
	src := t.TempDir()

	writeTree(t, src, map[string][]byte{
		"top.txt":       []byte("t"),
		"sub/inner.txt": []byte("i"),
	})
	require.NoError(t, store.UploadDir(ctx, src, "tree"))

	objects, prefixes, err := store.List(ctx, "tree/", false)
	require.NoError(t, err)
	assert.Contains(t, keys(objects), "tree/top.txt")
	assert.NotContains(t, keys(objects), "tree/sub/inner.txt")
	assert.Equal(t, []string{"tree/sub/"}, prefixes)

	objects, prefixes, err = store.List(ctx, "tree/", true)
	require.NoError(t, err)
	assert.Contains(t, keys(objects), "tree/sub/inner.txt")
	assert.Empty(t, prefixes)
}

func writeTree(t *testing.T, root string, files map[string][]byte) {
	t.Helper()
	for rel, data := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}
}

func keys(objects []objstore.Object) []string {
	out := make([]string, 0, len(objects))
	for _, o := range objects {
		out = append(out, o.Key)
	}
	return out
}
