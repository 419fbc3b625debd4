// Package gcs provides an objstore driver for Google Cloud Storage.
package gcs

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/qinguoyi/omnistore/internal/contenttype"
	"github.com/qinguoyi/omnistore/internal/validation"
	"github.com/qinguoyi/omnistore/objstore"
	"github.com/qinguoyi/omnistore/objstore/errors"
)

// Name is the backend identifier.
const Name = "gcs"

// DefaultChunkSize is the resumable upload chunk size.
const DefaultChunkSize = 16 * 1024 * 1024

// defaultPageSize applies when a listing does not set MaxKeys.
const defaultPageSize = 1000

// Config configures a GCS bucket handle.
type Config struct {
	// Bucket is the bucket name.
	Bucket string

	// CredentialsFile is a service account key file. When empty, Application
	// Default Credentials are used.
	CredentialsFile string

	// Endpoint overrides the API endpoint, e.g. for an emulator.
	Endpoint string

	// WithoutAuthentication disables authentication, for emulators.
	WithoutAuthentication bool

	// ChunkSize is the resumable upload chunk size. Default 16MB.
	ChunkSize int
}

// Driver implements objstore.Driver for one GCS bucket.
type Driver struct {
	api       API
	closer    io.Closer
	bucket    string
	chunkSize int
}

var _ objstore.Driver = (*Driver)(nil)

// New creates a driver with a storage client built from cfg. The client is
// released by Close.
func New(ctx context.Context, cfg Config) (*Driver, error) {
	if err := validation.ValidateBucketName(cfg.Bucket, validation.GCSRules); err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	if cfg.WithoutAuthentication {
		opts = append(opts, option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.NewError("new", errors.ErrAuthentication).
			WithBackend(Name, cfg.Bucket).
			WithMessage(err.Error())
	}
	d, err := NewWithClient(cfg, &sdkBucket{handle: client.Bucket(cfg.Bucket)})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	d.closer = client
	return d, nil
}

// NewWithClient creates a driver over an existing API implementation.
func NewWithClient(cfg Config, api API) (*Driver, error) {
	if err := validation.ValidateBucketName(cfg.Bucket, validation.GCSRules); err != nil {
		return nil, err
	}
	if api == nil {
		return nil, errors.NewError("new", errors.ErrInvalidInput).
			WithBackend(Name, cfg.Bucket).
			WithMessage("client cannot be nil")
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Driver{api: api, bucket: cfg.Bucket, chunkSize: chunkSize}, nil
}

// Open creates a Store over a GCS bucket.
func Open(ctx context.Context, cfg Config, opts ...objstore.Option) (*objstore.Store, error) {
	d, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err := objstore.New(d, opts...)
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the storage client created by New.
func (d *Driver) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

// Name implements objstore.Driver.
func (d *Driver) Name() string { return Name }

// Bucket implements objstore.Driver.
func (d *Driver) Bucket() string { return d.bucket }

// PutObject implements objstore.Driver.
func (d *Driver) PutObject(ctx context.Context, key string, body io.Reader, _ int64) error {
	ct, body := contenttype.ForReader(key, body)
	return d.write(ctx, key, ct, body)
}

// UploadFile implements objstore.Driver. The writer sends the file in
// resumable chunks of the configured size.
func (d *Driver) UploadFile(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Classify(errors.ErrLocalIO, err)
	}
	defer f.Close()
	return d.write(ctx, key, contenttype.ForFile(localPath), f)
}

func (d *Driver) write(ctx context.Context, key, contentType string, body io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := d.api.NewWriter(ctx, key, contentType, d.chunkSize)
	if _, err := io.Copy(w, body); err != nil {
		cancel()
		_ = w.Close()
		return classify(err)
	}
	return classify(w.Close())
}

// DownloadFile implements objstore.Driver. The object is streamed into a
// temporary file in the destination directory and renamed into place.
func (d *Driver) DownloadFile(ctx context.Context, key, localPath string) (err error) {
	r, err := d.api.NewReader(ctx, key)
	if err != nil {
		return classify(err)
	}
	defer r.Close()

	tmp, err := os.CreateTemp(filepath.Dir(localPath), "."+filepath.Base(localPath)+".*.part")
	if err != nil {
		return errors.Classify(errors.ErrLocalIO, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = copyObject(tmp, r); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return errors.Classify(errors.ErrLocalIO, err)
	}
	if err = os.Rename(tmp.Name(), localPath); err != nil {
		return errors.Classify(errors.ErrLocalIO, err)
	}
	return nil
}

// copyObject copies an object body to dst. Write failures are local I/O
// errors, read failures are classified as storage errors.
func copyObject(dst io.Writer, src io.Reader) error {
	if _, err := io.Copy(localWriter{dst}, src); err != nil {
		if errors.IsLocalIO(err) {
			return err
		}
		return classify(err)
	}
	return nil
}

type localWriter struct{ w io.Writer }

func (lw localWriter) Write(p []byte) (int, error) {
	n, err := lw.w.Write(p)
	if err != nil {
		err = errors.Classify(errors.ErrLocalIO, err)
	}
	return n, err
}

// DeleteObject implements objstore.Driver. GCS reports missing objects,
// which are treated as already deleted.
func (d *Driver) DeleteObject(ctx context.Context, key string) error {
	err := d.api.Delete(ctx, key)
	if stderrors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return classify(err)
}

// ObjectExists implements objstore.Driver.
func (d *Driver) ObjectExists(ctx context.Context, key string) (bool, error) {
	_, err := d.api.Attrs(ctx, key)
	if err == nil {
		return true, nil
	}
	if stderrors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, classify(err)
}

// ListObjects implements objstore.Driver.
func (d *Driver) ListObjects(ctx context.Context, in objstore.ListInput) (*objstore.ListPage, error) {
	q := &storage.Query{Prefix: in.Prefix, Delimiter: in.Delimiter}
	if err := q.SetAttrSelection([]string{"Name", "Size", "Updated", "Etag"}); err != nil {
		return nil, classify(err)
	}
	pageSize := int(in.MaxKeys)
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	attrs, next, err := d.api.ListPage(ctx, q, pageSize, in.ContinuationToken)
	if err != nil {
		return nil, classify(err)
	}

	page := &objstore.ListPage{NextContinuationToken: next, IsTruncated: next != ""}
	for _, a := range attrs {
		if a.Name == "" && a.Prefix != "" {
			page.CommonPrefixes = append(page.CommonPrefixes, a.Prefix)
			continue
		}
		page.Objects = append(page.Objects, objstore.Object{
			Key:          a.Name,
			Size:         a.Size,
			LastModified: a.Updated,
			ETag:         a.Etag,
		})
	}
	return page, nil
}
