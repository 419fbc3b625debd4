package objstore

import (
	"context"
	stderrors "errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/qinguoyi/omnistore/internal/pattern"
	"github.com/qinguoyi/omnistore/internal/validation"
	"github.com/qinguoyi/omnistore/objstore/errors"
)

// Store implements ObjStore on top of a Driver.
//
// Thread Safety: Store holds no mutable state after construction and is safe
// for concurrent use as long as the driver is.
type Store struct {
	driver  Driver
	logger  *slog.Logger
	opts    options
	exclude *pattern.Matcher
}

var _ ObjStore = (*Store)(nil)

// New creates a Store backed by driver.
// It returns ErrInvalidInput if driver is nil or an exclude pattern is malformed.
func New(driver Driver, opts ...Option) (*Store, error) {
	if driver == nil {
		return nil, errors.NewError("new", errors.ErrInvalidInput).WithMessage("driver cannot be nil")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	exclude, err := pattern.New(o.exclude...)
	if err != nil {
		return nil, errors.NewError("new", err).WithKind(errors.ErrInvalidInput)
	}

	return &Store{
		driver:  driver,
		logger:  o.logger,
		opts:    o,
		exclude: exclude,
	}, nil
}

// Driver returns the underlying driver.
func (s *Store) Driver() Driver { return s.driver }

// Backend returns the driver name.
func (s *Store) Backend() string { return s.driver.Name() }

// Bucket returns the bucket the store operates on.
func (s *Store) Bucket() string { return s.driver.Bucket() }

// Close releases the driver's client if it holds one.
func (s *Store) Close() error {
	if c, ok := s.driver.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// CreateDir writes a zero-byte directory marker at dirname.
// A trailing slash is added when missing, so "a/b" and "a/b/" write the same key.
// Creating an existing directory succeeds.
func (s *Store) CreateDir(ctx context.Context, dirname string) error {
	const op = "createDir"
	key := DirKey(dirname)
	if key == "" {
		return s.invalid(op, dirname, "directory name cannot be empty")
	}
	if err := validation.ValidateObjectKey(key); err != nil {
		return err
	}

	s.debug(ctx, "creating directory marker", slog.String("key", key))
	if err := s.driver.PutObject(ctx, key, strings.NewReader(""), 0); err != nil {
		return s.fail(ctx, op, key, err)
	}
	return nil
}

// DeleteDir deletes every object under dirname, including the directory
// marker itself. All pages of the listing are followed.
//
// The operation is not atomic. Files are deleted before markers, deepest
// marker first, and the first failure stops the sequence without rollback.
func (s *Store) DeleteDir(ctx context.Context, dirname string) error {
	const op = "deleteDir"
	prefix := DirKey(dirname)
	if prefix == "" {
		return s.invalid(op, dirname, "directory name cannot be empty")
	}
	if err := validation.ValidateObjectKey(prefix); err != nil {
		return err
	}

	objects, _, err := s.list(ctx, op, prefix, "")
	if err != nil {
		return err
	}

	var files, markers []string
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, Delimiter) {
			markers = append(markers, obj.Key)
		} else {
			files = append(files, obj.Key)
		}
	}
	// Children before parents, so filesystem-backed drivers only remove empty directories.
	sort.SliceStable(markers, func(i, j int) bool { return len(markers[i]) > len(markers[j]) })

	s.debug(ctx, "deleting directory",
		slog.String("key", prefix),
		slog.Int("files", len(files)),
		slog.Int("markers", len(markers)),
	)

	err = s.forEach(ctx, len(files), func(ctx context.Context, i int) error {
		if err := s.driver.DeleteObject(ctx, files[i]); err != nil {
			return s.fail(ctx, op, files[i], err)
		}
		return nil
	})
	if err != nil {
		return s.contextFail(ctx, op, prefix, err)
	}

	for _, key := range markers {
		if err := ctx.Err(); err != nil {
			return s.fail(ctx, op, prefix, err)
		}
		if err := s.driver.DeleteObject(ctx, key); err != nil {
			return s.fail(ctx, op, key, err)
		}
	}
	return nil
}

// Upload transfers the local file src to the key dest using the driver's
// resumable or multipart mechanism.
// It returns ErrNotFound if src does not exist and ErrInvalidInput if src is
// a directory or dest is a directory marker key.
func (s *Store) Upload(ctx context.Context, src, dest string) error {
	const op = "upload"
	if err := validation.ValidateObjectKey(dest); err != nil {
		return err
	}
	if strings.HasSuffix(dest, Delimiter) {
		return s.invalid(op, dest, "key is a directory marker").WithPath(src)
	}

	info, err := os.Stat(src)
	if err != nil {
		return s.localFail(op, src, dest, err)
	}
	if info.IsDir() {
		return s.invalid(op, dest, "source is a directory").WithPath(src)
	}

	return s.upload(ctx, op, src, dest)
}

func (s *Store) upload(ctx context.Context, op, src, key string) error {
	s.debug(ctx, "uploading file", slog.String("key", key), slog.String("path", src))
	if err := s.driver.UploadFile(ctx, key, src); err != nil {
		return s.fail(ctx, op, key, err).WithPath(src)
	}
	return nil
}

// UploadDir walks srcDir recursively. Every regular file is uploaded to
// JoinKey(destDir, rel) and every sub-directory gets a marker at
// JoinKey(destDir, rel)+"/". Paths matching an exclude pattern are skipped.
//
// The operation is not transactional. The first failure stops the walk and
// objects already uploaded are left in place.
func (s *Store) UploadDir(ctx context.Context, srcDir, destDir string) error {
	const op = "uploadDir"
	destDir = strings.TrimRight(destDir, Delimiter)
	if err := validation.ValidatePrefix(destDir); err != nil {
		return err
	}

	info, err := os.Stat(srcDir)
	if err != nil {
		return s.localFail(op, srcDir, destDir, err)
	}
	if !info.IsDir() {
		return s.invalid(op, destDir, "source is not a directory").WithPath(srcDir)
	}

	type upload struct{ path, key string }
	var markers []string
	var files []upload

	err = filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == srcDir {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		isDir, isFile, err := entryKind(path, d)
		if err != nil {
			return err
		}
		if s.exclude.Excluded(rel, isDir) {
			s.debug(ctx, "excluding path", slog.String("path", path))
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		key := JoinKey(destDir, rel)
		switch {
		case d.IsDir():
			markers = append(markers, DirKey(key))
		case isFile:
			files = append(files, upload{path: path, key: key})
		default:
			s.debug(ctx, "skipping non-regular file", slog.String("path", path))
		}
		return nil
	})
	if err != nil {
		var pathErr *fs.PathError
		if stderrors.As(err, &pathErr) {
			return s.localFail(op, pathErr.Path, destDir, err)
		}
		return s.localFail(op, srcDir, destDir, err)
	}

	s.debug(ctx, "uploading directory",
		slog.String("key", destDir),
		slog.String("path", srcDir),
		slog.Int("files", len(files)),
		slog.Int("markers", len(markers)),
	)

	for _, key := range markers {
		if err := validation.ValidateObjectKey(key); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return s.fail(ctx, op, key, err)
		}
		if err := s.driver.PutObject(ctx, key, strings.NewReader(""), 0); err != nil {
			return s.fail(ctx, op, key, err)
		}
	}

	err = s.forEach(ctx, len(files), func(ctx context.Context, i int) error {
		if err := validation.ValidateObjectKey(files[i].key); err != nil {
			return err
		}
		return s.upload(ctx, op, files[i].path, files[i].key)
	})
	return s.contextFail(ctx, op, destDir, err)
}

// mkdirs is os.MkdirAll that also returns the directories it created,
// deepest first.
func mkdirs(dir string, perm fs.FileMode) ([]string, error) {
	var missing []string
	for d := filepath.Clean(dir); ; {
		if _, err := os.Stat(d); err == nil {
			break
		} else if !stderrors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		missing = append(missing, d)
		parent := filepath.Dir(d)
		if parent == d {
			break
		}
		d = parent
	}
	if err := os.MkdirAll(dir, perm); err != nil {
		return nil, err
	}
	return missing, nil
}

// entryKind resolves symlinks so a linked regular file is uploaded like the
// file itself. Linked directories are not followed.
func entryKind(path string, d fs.DirEntry) (isDir, isFile bool, err error) {
	if d.Type()&fs.ModeSymlink == 0 {
		return d.IsDir(), d.Type().IsRegular(), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, false, err
	}
	return false, info.Mode().IsRegular(), nil
}

// Download transfers the object src to the local path dest, creating the
// parent directory of dest. It returns ErrNotFound if src does not exist.
func (s *Store) Download(ctx context.Context, src, dest string) error {
	const op = "download"
	if err := validation.ValidateObjectKey(src); err != nil {
		return err
	}
	if strings.HasSuffix(src, Delimiter) {
		return s.invalid(op, src, "key is a directory marker")
	}
	return s.download(ctx, op, src, dest)
}

func (s *Store) download(ctx context.Context, op, key, dest string) error {
	created, err := mkdirs(filepath.Dir(dest), s.opts.dirMode)
	if err != nil {
		return s.localFail(op, filepath.Dir(dest), key, err)
	}

	s.debug(ctx, "downloading file", slog.String("key", key), slog.String("path", dest))
	if err := s.driver.DownloadFile(ctx, key, dest); err != nil {
		for _, dir := range created {
			// Only empty directories are removed.
			_ = os.Remove(dir)
		}
		return s.fail(ctx, op, key, err).WithPath(dest)
	}
	if err := os.Chmod(dest, s.opts.fileMode); err != nil {
		return s.localFail(op, dest, key, err)
	}
	return nil
}

// DownloadDir mirrors every object under srcDir into the local destDir.
// destDir is created if missing. Common prefixes become local sub-directories
// and are downloaded recursively. Directory markers are not written as files.
//
// The first failure stops the sequence and files already written are kept.
func (s *Store) DownloadDir(ctx context.Context, srcDir, destDir string) error {
	const op = "downloadDir"
	prefix := DirKey(srcDir)
	if err := validation.ValidatePrefix(prefix); err != nil {
		return err
	}
	return s.downloadDir(ctx, op, prefix, destDir)
}

func (s *Store) downloadDir(ctx context.Context, op, prefix, destDir string) error {
	if err := os.MkdirAll(destDir, s.opts.dirMode); err != nil {
		return s.localFail(op, destDir, prefix, err)
	}

	objects, prefixes, err := s.list(ctx, op, prefix, Delimiter)
	if err != nil {
		return err
	}

	type download struct{ key, path string }
	var files []download
	for _, obj := range objects {
		if obj.Key == prefix || strings.HasSuffix(obj.Key, Delimiter) {
			continue
		}
		rel, ok := relKey(prefix, obj.Key)
		if !ok || validation.ValidateObjectKey(rel) != nil {
			return s.invalid(op, obj.Key, "key cannot be mapped below the destination directory").WithPath(destDir)
		}
		files = append(files, download{key: obj.Key, path: filepath.Join(destDir, filepath.FromSlash(rel))})
	}

	s.debug(ctx, "downloading directory level",
		slog.String("key", prefix),
		slog.String("path", destDir),
		slog.Int("files", len(files)),
		slog.Int("prefixes", len(prefixes)),
	)

	err = s.forEach(ctx, len(files), func(ctx context.Context, i int) error {
		return s.download(ctx, op, files[i].key, files[i].path)
	})
	if err != nil {
		return s.contextFail(ctx, op, prefix, err)
	}

	for _, sub := range prefixes {
		rel, ok := relKey(prefix, sub)
		rel = strings.TrimSuffix(rel, Delimiter)
		if !ok || rel == "" || validation.ValidateObjectKey(rel) != nil {
			return s.invalid(op, sub, "prefix cannot be mapped below the destination directory").WithPath(destDir)
		}
		if err := s.downloadDir(ctx, op, sub, filepath.Join(destDir, filepath.FromSlash(rel))); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the object filename. Deleting a missing key succeeds.
func (s *Store) Delete(ctx context.Context, filename string) error {
	const op = "delete"
	if err := validation.ValidateObjectKey(filename); err != nil {
		return err
	}

	s.debug(ctx, "deleting object", slog.String("key", filename))
	if err := s.driver.DeleteObject(ctx, filename); err != nil {
		return s.fail(ctx, op, filename, err)
	}
	return nil
}

// Exists reports whether an object with exactly the key filename exists.
// To check a directory pass its marker key, including the trailing slash.
func (s *Store) Exists(ctx context.Context, filename string) (bool, error) {
	const op = "exists"
	if err := validation.ValidateObjectKey(filename); err != nil {
		return false, err
	}

	ok, err := s.driver.ObjectExists(ctx, filename)
	if err != nil {
		return false, s.fail(ctx, op, filename, err)
	}
	s.debug(ctx, "checked object existence", slog.String("key", filename), slog.Bool("exists", ok))
	return ok, nil
}

// List returns every object under prefix, following all pages. When
// recursive is false, keys are grouped at the next "/" and the groups are
// returned as common prefixes.
func (s *Store) List(ctx context.Context, prefix string, recursive bool) ([]Object, []string, error) {
	const op = "list"
	if err := validation.ValidatePrefix(prefix); err != nil {
		return nil, nil, err
	}
	delimiter := Delimiter
	if recursive {
		delimiter = ""
	}
	return s.list(ctx, op, prefix, delimiter)
}

// list collects all pages of a prefix listing.
func (s *Store) list(ctx context.Context, op, prefix, delimiter string) ([]Object, []string, error) {
	var objects []Object
	var prefixes []string

	in := ListInput{Prefix: prefix, Delimiter: delimiter, MaxKeys: s.opts.pageSize}
	for {
		page, err := s.driver.ListObjects(ctx, in)
		if err != nil {
			return nil, nil, s.fail(ctx, op, prefix, err)
		}
		objects = append(objects, page.Objects...)
		prefixes = append(prefixes, page.CommonPrefixes...)

		if !page.IsTruncated || page.NextContinuationToken == "" {
			break
		}
		if page.NextContinuationToken == in.ContinuationToken {
			return nil, nil, s.fail(ctx, op, prefix, stderrors.New("listing did not advance"))
		}
		in.ContinuationToken = page.NextContinuationToken
	}
	return objects, prefixes, nil
}

// forEach runs fn for indexes 0..n-1, at most s.opts.concurrency at a time.
// The first error cancels the remaining calls and is returned.
func (s *Store) forEach(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if s.opts.concurrency <= 1 {
		for i := range n {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.concurrency)
	for i := range n {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return fn(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// fail wraps a driver error with operation context. Driver errors without a
// classification are reported as ErrStorage, except context cancellation.
func (s *Store) fail(ctx context.Context, op, key string, err error) *errors.Error {
	e := errors.NewObjectError(op, s.driver.Name(), s.driver.Bucket(), key, err)
	if e.Kind == nil && !isContextErr(err) {
		e.Kind = errors.ErrStorage
	}
	s.logFailure(ctx, e)
	return e
}

// contextFail passes through errors that already carry context and wraps
// the bare context errors returned by forEach.
func (s *Store) contextFail(ctx context.Context, op, key string, err error) error {
	if err == nil {
		return nil
	}
	var e *errors.Error
	if stderrors.As(err, &e) {
		return err
	}
	return s.fail(ctx, op, key, err)
}

func (s *Store) localFail(op, path, key string, err error) *errors.Error {
	return errors.NewLocalError(op, path, err).
		WithBackend(s.driver.Name(), s.driver.Bucket()).
		WithKey(key)
}

func (s *Store) invalid(op, key, message string) *errors.Error {
	return errors.NewObjectError(op, s.driver.Name(), s.driver.Bucket(), key, errors.ErrInvalidInput).
		WithMessage(message)
}

func (s *Store) debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	attrs = append(attrs, slog.String("backend", s.driver.Name()), slog.String("bucket", s.driver.Bucket()))
	s.logger.LogAttrs(ctx, slog.LevelDebug, msg, attrs...)
}

func (s *Store) logFailure(ctx context.Context, e *errors.Error) {
	if s.logger == nil {
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelError, "operation failed",
		slog.String("op", e.Op),
		slog.String("backend", e.Backend),
		slog.String("bucket", e.Bucket),
		slog.String("key", e.Key),
		slog.Any("error", e.Err),
	)
}

func isContextErr(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}
