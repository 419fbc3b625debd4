// Package s3 provides an objstore driver for Amazon S3 and S3-compatible
// services.
//
// Object writes go through the SDK transfer manager, which switches to a
// multipart upload once a body exceeds the part size. Downloads are fetched
// in concurrent ranged parts into a temporary file next to the destination
// and renamed into place when complete.
package s3

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/qinguoyi/omnistore/internal/contenttype"
	"github.com/qinguoyi/omnistore/internal/validation"
	"github.com/qinguoyi/omnistore/objstore"
	"github.com/qinguoyi/omnistore/objstore/errors"
)

// Name is the backend identifier.
const Name = "s3"

// Defaults applied by New.
const (
	DefaultRegion      = "us-east-1"
	DefaultPartSize    = 8 * 1024 * 1024
	DefaultConcurrency = 5
	DefaultMaxRetries  = 3
)

// Config configures an S3 bucket handle.
type Config struct {
	// Bucket is the bucket name.
	Bucket string

	// Region defaults to the AWS config region, then us-east-1.
	Region string

	// Endpoint overrides the service endpoint for S3-compatible stores.
	Endpoint string

	// AccessKeyID, SecretAccessKey and SessionToken are static credentials.
	// When AccessKeyID is empty the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// ForcePathStyle addresses the bucket in the URL path instead of the host.
	ForcePathStyle bool

	// PartSize is the multipart part size. Values below 5MB are raised to 5MB.
	PartSize int64

	// Concurrency is the number of parts transferred at once.
	Concurrency int

	// MaxRetries is the maximum number of attempts per request.
	MaxRetries int

	// Timeout bounds each HTTP request. Zero means no timeout.
	Timeout time.Duration
}

// Driver implements objstore.Driver for one S3 bucket.
type Driver struct {
	api        S3API
	uploader   *manager.Uploader
	downloader *manager.Downloader
	bucket     string
}

var _ objstore.Driver = (*Driver)(nil)

// New creates a driver with an SDK client built from cfg.
//
// Example:
//
//	d, err := s3.New(ctx, s3.Config{
//	    Bucket:         "assets",
//	    Endpoint:       "http://localhost:9000",
//	    ForcePathStyle: true,
//	})
func New(ctx context.Context, cfg Config) (*Driver, error) {
	if err := validation.ValidateBucketName(cfg.Bucket, validation.S3Rules); err != nil {
		return nil, err
	}
	cfg = withDefaults(cfg)

	var loadOpts []func(*config.LoadOptions) error
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.NewError("new", errors.ErrAuthentication).
			WithBackend(Name, cfg.Bucket).
			WithMessage(err.Error())
	}

	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	} else if awsCfg.Region == "" {
		awsCfg.Region = DefaultRegion
	}
	awsCfg.RetryMaxAttempts = cfg.MaxRetries

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.Timeout > 0 {
			o.HTTPClient = &http.Client{Timeout: cfg.Timeout}
		}
	})
	return NewWithClient(cfg, client)
}

// NewWithClient creates a driver over an existing S3API implementation.
// This is primarily used for testing with mocked clients.
func NewWithClient(cfg Config, client S3API) (*Driver, error) {
	if err := validation.ValidateBucketName(cfg.Bucket, validation.S3Rules); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, errors.NewError("new", errors.ErrInvalidInput).
			WithBackend(Name, cfg.Bucket).
			WithMessage("client cannot be nil")
	}
	cfg = withDefaults(cfg)

	return &Driver{
		api: client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = cfg.PartSize
			u.Concurrency = cfg.Concurrency
		}),
		downloader: manager.NewDownloader(client, func(d *manager.Downloader) {
			d.PartSize = cfg.PartSize
			d.Concurrency = cfg.Concurrency
		}),
		bucket: cfg.Bucket,
	}, nil
}

// Open creates a Store over an S3 bucket.
func Open(ctx context.Context, cfg Config, opts ...objstore.Option) (*objstore.Store, error) {
	d, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return objstore.New(d, opts...)
}

func withDefaults(cfg Config) Config {
	if cfg.PartSize <= 0 {
		cfg.PartSize = DefaultPartSize
	}
	cfg.PartSize = max(cfg.PartSize, manager.MinUploadPartSize)
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	return cfg
}

// Name implements objstore.Driver.
func (d *Driver) Name() string { return Name }

// Bucket implements objstore.Driver.
func (d *Driver) Bucket() string { return d.bucket }

// PutObject implements objstore.Driver. The uploader buffers the body so
// unseekable readers can be signed.
func (d *Driver) PutObject(ctx context.Context, key string, body io.Reader, _ int64) error {
	ct, body := contenttype.ForReader(key, body)
	_, err := d.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(ct),
	})
	return convertAWSError(err)
}

// UploadFile implements objstore.Driver.
func (d *Driver) UploadFile(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Classify(errors.ErrLocalIO, err)
	}
	defer f.Close()

	_, err = d.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contenttype.ForFile(localPath)),
	})
	return convertAWSError(err)
}

// DownloadFile implements objstore.Driver. localPath is only replaced once
// every part has been written.
func (d *Driver) DownloadFile(ctx context.Context, key, localPath string) (err error) {
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

	_, err = d.downloader.Download(ctx, tmp, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return convertAWSError(err)
	}
	if err = tmp.Close(); err != nil {
		return errors.Classify(errors.ErrLocalIO, err)
	}
	if err = os.Rename(tmp.Name(), localPath); err != nil {
		return errors.Classify(errors.ErrLocalIO, err)
	}
	return nil
}

// DeleteObject implements objstore.Driver. S3 reports success for missing keys.
func (d *Driver) DeleteObject(ctx context.Context, key string) error {
	_, err := d.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	return convertAWSError(err)
}

// ObjectExists implements objstore.Driver.
func (d *Driver) ObjectExists(ctx context.Context, key string) (bool, error) {
	_, err := d.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	err = convertAWSError(err)
	if errors.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// ListObjects implements objstore.Driver.
func (d *Driver) ListObjects(ctx context.Context, in objstore.ListInput) (*objstore.ListPage, error) {
	req := &s3.ListObjectsV2Input{
		Bucket: aws.String(d.bucket),
	}
	if in.Prefix != "" {
		req.Prefix = aws.String(in.Prefix)
	}
	if in.Delimiter != "" {
		req.Delimiter = aws.String(in.Delimiter)
	}
	if in.ContinuationToken != "" {
		req.ContinuationToken = aws.String(in.ContinuationToken)
	}
	if in.MaxKeys > 0 {
		req.MaxKeys = aws.Int32(in.MaxKeys)
	}

	out, err := d.api.ListObjectsV2(ctx, req)
	if err != nil {
		return nil, convertAWSError(err)
	}

	page := &objstore.ListPage{
		IsTruncated:           aws.ToBool(out.IsTruncated),
		NextContinuationToken: aws.ToString(out.NextContinuationToken),
	}
	for _, obj := range out.Contents {
		page.Objects = append(page.Objects, objstore.Object{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified),
			ETag:         aws.ToString(obj.ETag),
		})
	}
	for _, cp := range out.CommonPrefixes {
		page.CommonPrefixes = append(page.CommonPrefixes, aws.ToString(cp.Prefix))
	}
	return page, nil
}
