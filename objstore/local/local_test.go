package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qinguoyi/omnistore/objstore"
	"github.com/qinguoyi/omnistore/objstore/errors"
	"github.com/qinguoyi/omnistore/objstore/storetest"
)

func TestSuite_Memory(t *testing.T) {
	storetest.TestSuite(t, func(t *testing.T, opts ...objstore.Option) *objstore.Store {
		store, err := objstore.New(NewMemory("memory"), opts...)
		require.NoError(t, err)
		return store
	})
}

func TestSuite_OS(t *testing.T) {
	storetest.TestSuite(t, func(t *testing.T, opts ...objstore.Option) *objstore.Store {
		store, err := Open(context.Background(), Config{Root: t.TempDir()}, opts...)
		require.NoError(t, err)
		return store
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, Config{})
	require.NoError(t, err)
	assert.Equal(t, Name, store.Backend())
	assert.Equal(t, "memory", store.Bucket())

	root := filepath.Join(t.TempDir(), "mirror")
	store, err = Open(ctx, Config{Root: root})
	require.NoError(t, err)
	assert.Equal(t, "mirror", store.Bucket())
	assert.DirExists(t, root)
	assert.NoError(t, store.Close())
}

func seed(t *testing.T, d *Driver, keys ...string) {
	t.Helper()
	for _, key := range keys {
		require.NoError(t, d.PutObject(context.Background(), key, strings.NewReader(key), int64(len(key))))
	}
}

func TestDriver_PutObject(t *testing.T) {
	d := NewMemory("b")
	seed(t, d, "a/b/", "a/b/file.txt")

	info, err := d.Filesystem().Stat("/a/b/" + MarkerFile)
	require.NoError(t, err)
	assert.False(t, info.IsDir())
	assert.Zero(t, info.Size())

	err = d.PutObject(context.Background(), "a/"+MarkerFile, strings.NewReader(""), 0)
	assert.ErrorIs(t, err, errors.ErrInvalidObjectKey)

	data, err := util.ReadFile(d.Filesystem(), "/a/b/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "a/b/file.txt", string(data))
}

func TestDriver_ObjectExists(t *testing.T) {
	ctx := context.Background()
	d := NewMemory("b")
	seed(t, d, "dir/", "dir/file", "implicit/sub/file")

	tests := []struct {
		key  string
		want bool
	}{
		{"dir/", true},
		{"dir", false},
		{"dir/file", true},
		{"dir/file/", false},
		{"dir/" + MarkerFile, false},
		{"implicit/", false},
		{"implicit/sub/", false},
		{"implicit/sub/file", true},
		{"missing", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			ok, err := d.ObjectExists(ctx, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestDriver_DeleteObject(t *testing.T) {
	ctx := context.Background()
	d := NewMemory("b")
	seed(t, d, "dir/", "dir/file")

	// A file key does not address the directory.
	require.NoError(t, d.DeleteObject(ctx, "dir"))
	ok, err := d.ObjectExists(ctx, "dir/")
	require.NoError(t, err)
	assert.True(t, ok)

	// Deleting a marker keeps the objects below it.
	require.NoError(t, d.DeleteObject(ctx, "dir/"))
	ok, err = d.ObjectExists(ctx, "dir/")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = d.ObjectExists(ctx, "dir/file")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, d.DeleteObject(ctx, "dir/"))

	// The last object takes its now empty directory with it.
	require.NoError(t, d.DeleteObject(ctx, "dir/file"))
	_, err = d.Filesystem().Stat("/dir")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDriver_DeleteObjectPrunesUpToMarker(t *testing.T) {
	ctx := context.Background()
	d := NewMemory("b")
	seed(t, d, "a/", "a/b/c/file")

	require.NoError(t, d.DeleteObject(ctx, "a/b/c/file"))
	_, err := d.Filesystem().Stat("/a/b")
	assert.ErrorIs(t, err, os.ErrNotExist)

	ok, err := d.ObjectExists(ctx, "a/")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDriver_DownloadFile(t *testing.T) {
	ctx := context.Background()
	d := NewMemory("b")
	seed(t, d, "dir/", "dir/file")
	dir := t.TempDir()

	dest := filepath.Join(dir, "file")
	require.NoError(t, d.DownloadFile(ctx, "dir/file", dest))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "dir/file", string(data))

	err = d.DownloadFile(ctx, "dir/", filepath.Join(dir, "marker"))
	assert.ErrorIs(t, err, errors.ErrNotFound)

	err = d.DownloadFile(ctx, "nope", filepath.Join(dir, "nope"))
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestDriver_ListObjects(t *testing.T) {
	ctx := context.Background()
	d := NewMemory("b")
	seed(t, d,
		"a/", "a/b/", "a/b/1", "a/b/2", "a/b/c/", "a/b/c/3",
		"a/bc/", "a/bc/4", "a/file", "z", "x/y/5",
	)

	tests := []struct {
		name     string
		in       objstore.ListInput
		objects  []string
		prefixes []string
	}{
		{
			name:    "recursive prefix",
			in:      objstore.ListInput{Prefix: "a/b/"},
			objects: []string{"a/b/", "a/b/1", "a/b/2", "a/b/c/", "a/b/c/3"},
		},
		{
			name:     "delimited prefix",
			in:       objstore.ListInput{Prefix: "a/b/", Delimiter: "/"},
			objects:  []string{"a/b/", "a/b/1", "a/b/2"},
			prefixes: []string{"a/b/c/"},
		},
		{
			name:     "partial segment",
			in:       objstore.ListInput{Prefix: "a/b", Delimiter: "/"},
			prefixes: []string{"a/b/", "a/bc/"},
		},
		{
			name:     "bucket root",
			in:       objstore.ListInput{Delimiter: "/"},
			objects:  []string{"z"},
			prefixes: []string{"a/", "x/"},
		},
		{
			name: "missing prefix",
			in:   objstore.ListInput{Prefix: "nope/"},
		},
		{
			name:     "implicit directory",
			in:       objstore.ListInput{Prefix: "x/", Delimiter: "/"},
			prefixes: []string{"x/y/"},
		},
		{
			name:    "implicit directory recursive",
			in:      objstore.ListInput{Prefix: "x/"},
			objects: []string{"x/y/5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := d.ListObjects(ctx, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.objects, keysOf(page.Objects))
			assert.Equal(t, tt.prefixes, page.CommonPrefixes)
			assert.False(t, page.IsTruncated)
		})
	}
}

func TestDriver_ListObjectsPagination(t *testing.T) {
	ctx := context.Background()
	d := New(memfs.New(), "b")
	seed(t, d, "p/1", "p/2", "p/3", "p/4", "p/5")

	var got []string
	in := objstore.ListInput{Prefix: "p/", MaxKeys: 2}
	for i := 0; ; i++ {
		require.Less(t, i, 10)
		page, err := d.ListObjects(ctx, in)
		require.NoError(t, err)
		got = append(got, keysOf(page.Objects)...)
		if !page.IsTruncated {
			break
		}
		in.ContinuationToken = page.NextContinuationToken
	}
	assert.Equal(t, []string{"p/1", "p/2", "p/3", "p/4", "p/5"}, got)
}

func TestDriver_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := NewMemory("b")

	assert.ErrorIs(t, d.PutObject(ctx, "k", strings.NewReader(""), 0), context.Canceled)
	_, err := d.ListObjects(ctx, objstore.ListInput{})
	assert.ErrorIs(t, err, context.Canceled)
}

func keysOf(objects []objstore.Object) []string {
	if len(objects) == 0 {
		return nil
	}
	out := make([]string, 0, len(objects))
	for _, o := range objects {
		out = append(out, o.Key)
	}
	return out
}
