// Package local provides an objstore driver backed by a go-billy filesystem.
//
// Keys map to paths below the filesystem root, so a bucket can be an OS
// directory (osfs) or live entirely in memory (memfs). A directory marker is
// an empty MarkerFile inside its directory. Directories that exist only
// because they hold other objects are not markers, as in a real bucket.
// It is used for hermetic tests and for local mirrors.
package local

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/qinguoyi/omnistore/objstore"
	"github.com/qinguoyi/omnistore/objstore/errors"
)

// Name is the backend identifier.
const Name = "local"

// MarkerFile is the reserved file name recording a directory marker.
// It is hidden from listings and cannot be used as an object name.
const MarkerFile = ".omnistore-marker"

// Config configures a local bucket.
type Config struct {
	// Root is the OS directory acting as the bucket. Empty means in-memory.
	Root string

	// Bucket labels the bucket in errors and logs. Defaults to the base
	// name of Root, or "memory".
	Bucket string
}

// Driver stores objects as files in a billy filesystem.
type Driver struct {
	fs     billy.Filesystem
	bucket string
}

var _ objstore.Driver = (*Driver)(nil)

// New creates a driver over an existing billy filesystem.
func New(filesystem billy.Filesystem, bucket string) *Driver {
	return &Driver{fs: filesystem, bucket: bucket}
}

// NewMemory creates a driver over a fresh in-memory filesystem.
func NewMemory(bucket string) *Driver {
	return New(memfs.New(), bucket)
}

// NewOS creates a driver rooted at an OS directory, creating it if needed.
func NewOS(root, bucket string) (*Driver, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.NewLocalError("open", root, err)
	}
	return New(osfs.New(root), bucket), nil
}

// Open creates a Store over a local bucket.
func Open(_ context.Context, cfg Config, opts ...objstore.Option) (*objstore.Store, error) {
	bucket := cfg.Bucket
	if cfg.Root == "" {
		if bucket == "" {
			bucket = "memory"
		}
		return objstore.New(NewMemory(bucket), opts...)
	}

	if bucket == "" {
		bucket = filepath.Base(filepath.Clean(cfg.Root))
	}
	d, err := NewOS(cfg.Root, bucket)
	if err != nil {
		return nil, err
	}
	return objstore.New(d, opts...)
}

// Name implements objstore.Driver.
func (d *Driver) Name() string { return Name }

// Bucket implements objstore.Driver.
func (d *Driver) Bucket() string { return d.bucket }

// Filesystem returns the underlying filesystem.
func (d *Driver) Filesystem() billy.Filesystem { return d.fs }

// PutObject implements objstore.Driver. A key ending in "/" creates the
// directory and its MarkerFile.
func (d *Driver) PutObject(ctx context.Context, key string, body io.Reader, _ int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if reserved(key) {
		return errors.Classify(errors.ErrInvalidObjectKey, fmt.Errorf("%s is reserved for directory markers", MarkerFile))
	}
	name := d.objectPath(key)
	if err := d.fs.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return classify(err)
	}
	f, err := d.fs.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return classify(err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		return classify(err)
	}
	return classify(f.Close())
}

// UploadFile implements objstore.Driver.
func (d *Driver) UploadFile(ctx context.Context, key, localPath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return errors.Classify(errors.ErrLocalIO, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return errors.Classify(errors.ErrLocalIO, err)
	}
	return d.PutObject(ctx, key, src, info.Size())
}

// DownloadFile implements objstore.Driver.
func (d *Driver) DownloadFile(ctx context.Context, key, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if isMarker(key) || reserved(key) {
		return errors.Classify(errors.ErrNotFound, fmt.Errorf("%s is not a file object", key))
	}
	name := d.path(key)
	info, err := d.fs.Stat(name)
	if err != nil {
		return classify(err)
	}
	if info.IsDir() {
		return errors.Classify(errors.ErrNotFound, fmt.Errorf("%s is not an object", key))
	}

	src, err := d.fs.Open(name)
	if err != nil {
		return classify(err)
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return errors.Classify(errors.ErrLocalIO, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(localPath)
		return errors.Classify(errors.ErrLocalIO, err)
	}
	if err := dst.Close(); err != nil {
		return errors.Classify(errors.ErrLocalIO, err)
	}
	return nil
}

// DeleteObject implements objstore.Driver. Deleting a marker removes only
// its MarkerFile, so objects below it are kept. Directories left empty are
// pruned up to the root.
func (d *Driver) DeleteObject(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if reserved(key) {
		return nil
	}
	name := d.objectPath(key)
	info, err := d.fs.Lstat(name)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return classify(err)
	}
	// A file key never addresses a directory.
	if info.IsDir() {
		return nil
	}
	if err := d.fs.Remove(name); err != nil {
		return classify(err)
	}
	return d.prune(filepath.Dir(name))
}

// prune removes dir and its ancestors while they are empty.
func (d *Driver) prune(dir string) error {
	root := d.path("")
	for dir != root && dir != "." && dir != "" {
		entries, err := d.fs.ReadDir(dir)
		if err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return classify(err)
		}
		if len(entries) > 0 {
			return nil
		}
		if err := d.fs.Remove(dir); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return classify(err)
		}
		dir = filepath.Dir(dir)
	}
	return nil
}

// ObjectExists implements objstore.Driver. A marker exists only if it was
// written, not because objects exist below it.
func (d *Driver) ObjectExists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if reserved(key) {
		return false, nil
	}
	info, err := d.fs.Stat(d.objectPath(key))
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, classify(err)
	}
	return !info.IsDir(), nil
}

type entry struct {
	obj      objstore.Object
	isPrefix bool
}

// ListObjects implements objstore.Driver. Marker files are listed under
// their marker keys and directories only through their contents. Entries are
// sorted by key and the continuation token is the last key of the previous page.
func (d *Driver) ListObjects(ctx context.Context, in objstore.ListInput) (*objstore.ListPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dirPart := ""
	if i := strings.LastIndex(in.Prefix, objstore.Delimiter); i >= 0 {
		dirPart = in.Prefix[:i+1]
	}
	root := d.path(dirPart)
	if _, err := d.fs.Stat(root); err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return &objstore.ListPage{}, nil
		}
		return nil, classify(err)
	}

	seen := make(map[string]bool)
	var entries []entry
	err := util.Walk(d.fs, root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		key := d.key(p)
		if key == "" {
			return nil
		}
		if info.IsDir() {
			dir := key + objstore.Delimiter
			if !strings.HasPrefix(dir, in.Prefix) && !strings.HasPrefix(in.Prefix, dir) {
				return filepath.SkipDir
			}
			// Everything below an already rolled-up prefix folds into it.
			if in.Delimiter != "" && strings.HasPrefix(dir, in.Prefix) {
				rest := dir[len(in.Prefix):]
				if i := strings.Index(rest, in.Delimiter); i >= 0 && seen[in.Prefix+rest[:i+len(in.Delimiter)]] {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if path.Base(key) == MarkerFile {
			key = strings.TrimSuffix(key, MarkerFile)
			if key == "" {
				return nil
			}
		}
		if !strings.HasPrefix(key, in.Prefix) {
			return nil
		}

		if in.Delimiter != "" {
			rest := key[len(in.Prefix):]
			if i := strings.Index(rest, in.Delimiter); i >= 0 {
				cp := in.Prefix + rest[:i+len(in.Delimiter)]
				if !seen[cp] {
					seen[cp] = true
					entries = append(entries, entry{obj: objstore.Object{Key: cp}, isPrefix: true})
				}
				return nil
			}
		}

		entries = append(entries, entry{obj: objstore.Object{
			Key:          key,
			Size:         info.Size(),
			LastModified: info.ModTime(),
		}})
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].obj.Key < entries[j].obj.Key })
	return paginate(entries, in.ContinuationToken, in.MaxKeys), nil
}

func paginate(entries []entry, token string, maxKeys int32) *objstore.ListPage {
	start := 0
	if token != "" {
		start = sort.Search(len(entries), func(i int) bool { return entries[i].obj.Key > token })
	}
	limit := int(maxKeys)
	if limit <= 0 {
		limit = int(objstore.DefaultListPageSize)
	}

	page := &objstore.ListPage{}
	end := min(start+limit, len(entries))
	for _, e := range entries[start:end] {
		if e.isPrefix {
			page.CommonPrefixes = append(page.CommonPrefixes, e.obj.Key)
		} else {
			page.Objects = append(page.Objects, e.obj)
		}
	}
	if end < len(entries) {
		page.IsTruncated = true
		page.NextContinuationToken = entries[end-1].obj.Key
	}
	return page
}

// path maps a key to an absolute filesystem path.
func (d *Driver) path(key string) string {
	return filepath.FromSlash("/" + strings.Trim(key, objstore.Delimiter))
}

// objectPath maps a key to the file holding it. Markers map to their MarkerFile.
func (d *Driver) objectPath(key string) string {
	if isMarker(key) {
		return filepath.Join(d.path(key), MarkerFile)
	}
	return d.path(key)
}

// key maps a filesystem path back to a key without a trailing slash.
func (d *Driver) key(p string) string {
	return strings.TrimLeft(filepath.ToSlash(p), "/")
}

func isMarker(key string) bool {
	return strings.HasSuffix(key, objstore.Delimiter)
}

// reserved reports whether key names a MarkerFile directly.
func reserved(key string) bool {
	return !isMarker(key) && path.Base(key) == MarkerFile
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, fs.ErrNotExist):
		return errors.Classify(errors.ErrNotFound, err)
	case stderrors.Is(err, fs.ErrPermission):
		return errors.Classify(errors.ErrAccessDenied, err)
	}
	return errors.Classify(errors.ErrStorage, err)
}
