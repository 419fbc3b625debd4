// Package minio provides an objstore driver for MinIO and other servers that
// speak the S3 protocol, built on minio-go.
//
// Local files are transferred with FPutObject and FGetObject. The client
// splits large uploads into parts and downloads into a temporary file that
// is renamed over the destination once complete.
package minio

import (
	"context"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/qinguoyi/omnistore/internal/contenttype"
	"github.com/qinguoyi/omnistore/internal/validation"
	"github.com/qinguoyi/omnistore/objstore"
	"github.com/qinguoyi/omnistore/objstore/errors"
)

// Name is the backend identifier.
const Name = "minio"

// Config configures a MinIO bucket handle.
type Config struct {
	// Endpoint is host:port, optionally with an http:// or https:// scheme
	// that overrides Secure.
	Endpoint string

	// Bucket is the bucket name.
	Bucket string

	// Region is optional. MinIO discovers it when empty.
	Region string

	// AccessKeyID, SecretAccessKey and SessionToken are static credentials.
	// When AccessKeyID is empty credentials are read from MINIO_* and then
	// AWS_* environment variables.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// Secure selects TLS.
	Secure bool

	// PartSize is the multipart part size. Zero lets the client choose.
	PartSize uint64
}

// Driver implements objstore.Driver for one MinIO bucket.
type Driver struct {
	client   Client
	bucket   string
	partSize uint64
}

var _ objstore.Driver = (*Driver)(nil)

// New creates a driver with a minio-go client built from cfg.
func New(cfg Config) (*Driver, error) {
	if err := validation.ValidateBucketName(cfg.Bucket, validation.S3Rules); err != nil {
		return nil, err
	}
	endpoint, secure := splitEndpoint(cfg.Endpoint, cfg.Secure)
	if endpoint == "" {
		return nil, errors.NewError("new", errors.ErrInvalidInput).
			WithBackend(Name, cfg.Bucket).
			WithMessage("endpoint cannot be empty")
	}

	var creds *credentials.Credentials
	if cfg.AccessKeyID != "" {
		creds = credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
	} else {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvMinio{},
			&credentials.EnvAWS{},
		})
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.NewError("new", errors.ErrInvalidInput).
			WithBackend(Name, cfg.Bucket).
			WithMessage(err.Error())
	}
	return NewWithClient(cfg, client)
}

// NewWithClient creates a driver over an existing client.
func NewWithClient(cfg Config, client Client) (*Driver, error) {
	if err := validation.ValidateBucketName(cfg.Bucket, validation.S3Rules); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, errors.NewError("new", errors.ErrInvalidInput).
			WithBackend(Name, cfg.Bucket).
			WithMessage("client cannot be nil")
	}
	return &Driver{client: client, bucket: cfg.Bucket, partSize: cfg.PartSize}, nil
}

// Open creates a Store over a MinIO bucket.
func Open(_ context.Context, cfg Config, opts ...objstore.Option) (*objstore.Store, error) {
	d, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return objstore.New(d, opts...)
}

func splitEndpoint(endpoint string, secure bool) (string, bool) {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		endpoint, secure = strings.TrimPrefix(endpoint, "https://"), true
	case strings.HasPrefix(endpoint, "http://"):
		endpoint, secure = strings.TrimPrefix(endpoint, "http://"), false
	}
	return strings.TrimRight(endpoint, "/"), secure
}

// Name implements objstore.Driver.
func (d *Driver) Name() string { return Name }

// Bucket implements objstore.Driver.
func (d *Driver) Bucket() string { return d.bucket }

// PutObject implements objstore.Driver.
func (d *Driver) PutObject(ctx context.Context, key string, body io.Reader, size int64) error {
	ct, body := contenttype.ForReader(key, body)
	_, err := d.client.PutObject(ctx, d.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: ct,
		PartSize:    d.partSize,
	})
	return translateError(err)
}

// UploadFile implements objstore.Driver.
func (d *Driver) UploadFile(ctx context.Context, key, localPath string) error {
	_, err := d.client.FPutObject(ctx, d.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contenttype.ForFile(localPath),
		PartSize:    d.partSize,
	})
	return translateError(err)
}

// DownloadFile implements objstore.Driver.
func (d *Driver) DownloadFile(ctx context.Context, key, localPath string) error {
	err := d.client.FGetObject(ctx, d.bucket, key, localPath, minio.GetObjectOptions{})
	return translateError(err)
}

// DeleteObject implements objstore.Driver. MinIO reports success for missing keys.
func (d *Driver) DeleteObject(ctx context.Context, key string) error {
	return translateError(d.client.RemoveObject(ctx, d.bucket, key, minio.RemoveObjectOptions{}))
}

// ObjectExists implements objstore.Driver.
func (d *Driver) ObjectExists(ctx context.Context, key string) (bool, error) {
	_, err := d.client.StatObject(ctx, d.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	err = translateError(err)
	if errors.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// ListObjects implements objstore.Driver.
//
// minio-go streams a listing over a channel and paginates internally.
// Recursive listings are cut into pages of MaxKeys resumed with StartAfter.
// Delimited listings are returned as one page, since StartAfter cannot resume
// past a rolled-up prefix. In a delimited listing every key other than the
// prefix itself that ends in a slash is a common prefix.
func (d *Driver) ListObjects(ctx context.Context, in objstore.ListInput) (*objstore.ListPage, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	recursive := in.Delimiter == ""
	opts := minio.ListObjectsOptions{
		Prefix:    in.Prefix,
		Recursive: recursive,
	}
	limit := 0
	if recursive {
		opts.StartAfter = in.ContinuationToken
		limit = int(in.MaxKeys)
	}

	page := &objstore.ListPage{}
	count := 0
	for obj := range d.client.ListObjects(ctx, d.bucket, opts) {
		if obj.Err != nil {
			return nil, translateError(obj.Err)
		}
		if limit > 0 && count == limit {
			page.IsTruncated = true
			break
		}
		count++

		if !recursive && obj.Key != in.Prefix && strings.HasSuffix(obj.Key, in.Delimiter) {
			page.CommonPrefixes = append(page.CommonPrefixes, obj.Key)
		} else {
			page.Objects = append(page.Objects, objstore.Object{
				Key:          obj.Key,
				Size:         obj.Size,
				LastModified: obj.LastModified,
				ETag:         obj.ETag,
			})
		}
		page.NextContinuationToken = obj.Key
	}
	if err := ctx.Err(); err != nil && !page.IsTruncated {
		return nil, err
	}
	if !page.IsTruncated {
		page.NextContinuationToken = ""
	}
	return page, nil
}
