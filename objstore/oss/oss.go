// Package oss provides an objstore driver for Alibaba Cloud Object Storage Service.
//
// Uploads and downloads of local files go through the SDK's resumable
// Uploader and Downloader with checkpoints enabled, so an interrupted transfer
// resumes from the last completed part when retried.
package oss

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	alioss "github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss"
	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss/credentials"

	"github.com/qinguoyi/omnistore/internal/contenttype"
	"github.com/qinguoyi/omnistore/internal/validation"
	"github.com/qinguoyi/omnistore/objstore"
	"github.com/qinguoyi/omnistore/objstore/errors"
)

// Name is the backend identifier.
const Name = "oss"

// Default transfer settings.
const (
	DefaultPartSize    = 6 * 1024 * 1024
	DefaultParallelNum = 3
)

// Environment variables read by CredentialsFromEnv.
const (
	EnvAccessKeyID     = "OSS_ACCESS_KEY_ID"
	EnvAccessKeySecret = "OSS_ACCESS_KEY_SECRET"
	EnvSessionToken    = "OSS_SESSION_TOKEN"
)

// Config configures an OSS bucket handle.
type Config struct {
	// Endpoint is the OSS endpoint, e.g. "https://oss-cn-hangzhou.aliyuncs.com".
	Endpoint string

	// Bucket is the bucket name.
	Bucket string

	// Region is the bucket region, e.g. "cn-hangzhou". When empty, requests
	// are signed with signature version 1, which needs no region.
	Region string

	// AccessKeyID, AccessKeySecret and SecurityToken are static credentials.
	AccessKeyID     string
	AccessKeySecret string
	SecurityToken   string

	// PartSize is the part size of resumable transfers. Default 6MB.
	PartSize int64

	// ParallelNum is the number of parts transferred at once. Default 3.
	ParallelNum int

	// CheckpointDir stores resumable transfer checkpoints. Defaults to the OS temp dir.
	CheckpointDir string

	// ConnectTimeout and ReadWriteTimeout bound network calls. Zero uses SDK defaults.
	ConnectTimeout   time.Duration
	ReadWriteTimeout time.Duration

	// MaxRetries is the maximum number of attempts per request. Zero uses the SDK default.
	MaxRetries int
}

// CredentialsFromEnv returns the static credentials from the standard OSS
// environment variables.
func CredentialsFromEnv() (accessKeyID, accessKeySecret, securityToken string) {
	return os.Getenv(EnvAccessKeyID), os.Getenv(EnvAccessKeySecret), os.Getenv(EnvSessionToken)
}

// Driver implements objstore.Driver for one OSS bucket.
type Driver struct {
	api      API
	transfer Transfer
	bucket   string
	cfg      Config
}

var _ objstore.Driver = (*Driver)(nil)

// New creates a driver with an SDK client built from cfg.
func New(cfg Config) (*Driver, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	if cfg.AccessKeyID == "" || cfg.AccessKeySecret == "" {
		return nil, errors.NewError("new", errors.ErrAuthentication).
			WithBackend(Name, cfg.Bucket).
			WithMessage("access key id and secret are required")
	}

	sdkCfg := alioss.LoadDefaultConfig().
		WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, cfg.SecurityToken,
		)).
		WithEndpoint(cfg.Endpoint)
	if cfg.Region != "" {
		sdkCfg = sdkCfg.WithRegion(cfg.Region)
	} else {
		sdkCfg = sdkCfg.WithSignatureVersion(alioss.SignatureVersionV1)
	}
	if cfg.ConnectTimeout > 0 {
		sdkCfg = sdkCfg.WithConnectTimeout(cfg.ConnectTimeout)
	}
	if cfg.ReadWriteTimeout > 0 {
		sdkCfg = sdkCfg.WithReadWriteTimeout(cfg.ReadWriteTimeout)
	}
	if cfg.MaxRetries > 0 {
		sdkCfg = sdkCfg.WithRetryMaxAttempts(cfg.MaxRetries)
	}

	client := alioss.NewClient(sdkCfg)
	cfg = withDefaults(cfg)
	transfer := &sdkTransfer{
		uploader: client.NewUploader(func(o *alioss.UploaderOptions) {
			o.PartSize = cfg.PartSize
			o.ParallelNum = cfg.ParallelNum
			o.EnableCheckpoint = true
			o.CheckpointDir = cfg.CheckpointDir
		}),
		downloader: client.NewDownloader(func(o *alioss.DownloaderOptions) {
			o.PartSize = cfg.PartSize
			o.ParallelNum = cfg.ParallelNum
			o.EnableCheckpoint = true
			o.CheckpointDir = cfg.CheckpointDir
		}),
	}
	return NewWithClient(cfg, client, transfer)
}

// NewWithClient creates a driver over existing client implementations.
// Credentials in cfg are ignored.
func NewWithClient(cfg Config, api API, transfer Transfer) (*Driver, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	if api == nil || transfer == nil {
		return nil, errors.NewError("new", errors.ErrInvalidInput).
			WithBackend(Name, cfg.Bucket).
			WithMessage("client cannot be nil")
	}
	return &Driver{api: api, transfer: transfer, bucket: cfg.Bucket, cfg: withDefaults(cfg)}, nil
}

// Open creates a Store over an OSS bucket.
func Open(_ context.Context, cfg Config, opts ...objstore.Option) (*objstore.Store, error) {
	d, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return objstore.New(d, opts...)
}

func validate(cfg Config) error {
	if cfg.Endpoint == "" {
		return errors.NewError("new", errors.ErrInvalidInput).
			WithBackend(Name, cfg.Bucket).
			WithMessage("endpoint cannot be empty")
	}
	return validation.ValidateBucketName(cfg.Bucket, validation.OSSRules)
}

func withDefaults(cfg Config) Config {
	if cfg.PartSize <= 0 {
		cfg.PartSize = DefaultPartSize
	}
	if cfg.ParallelNum <= 0 {
		cfg.ParallelNum = DefaultParallelNum
	}
	if cfg.CheckpointDir == "" {
		cfg.CheckpointDir = filepath.Join(os.TempDir(), "omnistore-oss-checkpoints")
	}
	return cfg
}

// Name implements objstore.Driver.
func (d *Driver) Name() string { return Name }

// Bucket implements objstore.Driver.
func (d *Driver) Bucket() string { return d.bucket }

// PutObject implements objstore.Driver.
func (d *Driver) PutObject(ctx context.Context, key string, body io.Reader, size int64) error {
	ct, body := contenttype.ForReader(key, body)
	_, err := d.api.PutObject(ctx, &alioss.PutObjectRequest{
		Bucket:        alioss.Ptr(d.bucket),
		Key:           alioss.Ptr(key),
		Body:          body,
		ContentLength: alioss.Ptr(size),
		ContentType:   alioss.Ptr(ct),
	})
	return classify(err)
}

// UploadFile implements objstore.Driver using the resumable uploader.
func (d *Driver) UploadFile(ctx context.Context, key, localPath string) error {
	if err := os.MkdirAll(d.cfg.CheckpointDir, 0o755); err != nil {
		return errors.Classify(errors.ErrLocalIO, err)
	}
	_, err := d.transfer.UploadFile(ctx, &alioss.PutObjectRequest{
		Bucket:      alioss.Ptr(d.bucket),
		Key:         alioss.Ptr(key),
		ContentType: alioss.Ptr(contenttype.ForFile(localPath)),
	}, localPath)
	return classify(err)
}

// DownloadFile implements objstore.Driver using the resumable downloader.
func (d *Driver) DownloadFile(ctx context.Context, key, localPath string) error {
	if err := os.MkdirAll(d.cfg.CheckpointDir, 0o755); err != nil {
		return errors.Classify(errors.ErrLocalIO, err)
	}
	_, err := d.transfer.DownloadFile(ctx, &alioss.GetObjectRequest{
		Bucket: alioss.Ptr(d.bucket),
		Key:    alioss.Ptr(key),
	}, localPath)
	return classify(err)
}

// DeleteObject implements objstore.Driver. OSS reports success for missing keys.
func (d *Driver) DeleteObject(ctx context.Context, key string) error {
	_, err := d.api.DeleteObject(ctx, &alioss.DeleteObjectRequest{
		Bucket: alioss.Ptr(d.bucket),
		Key:    alioss.Ptr(key),
	})
	return classify(err)
}

// ObjectExists implements objstore.Driver.
func (d *Driver) ObjectExists(ctx context.Context, key string) (bool, error) {
	ok, err := d.api.IsObjectExist(ctx, d.bucket, key)
	if err != nil {
		return false, classify(err)
	}
	return ok, nil
}

// ListObjects implements objstore.Driver.
func (d *Driver) ListObjects(ctx context.Context, in objstore.ListInput) (*objstore.ListPage, error) {
	req := &alioss.ListObjectsV2Request{
		Bucket:  alioss.Ptr(d.bucket),
		MaxKeys: in.MaxKeys,
	}
	if in.Prefix != "" {
		req.Prefix = alioss.Ptr(in.Prefix)
	}
	if in.Delimiter != "" {
		req.Delimiter = alioss.Ptr(in.Delimiter)
	}
	if in.ContinuationToken != "" {
		req.ContinuationToken = alioss.Ptr(in.ContinuationToken)
	}

	out, err := d.api.ListObjectsV2(ctx, req)
	if err != nil {
		return nil, classify(err)
	}

	page := &objstore.ListPage{
		IsTruncated:           out.IsTruncated,
		NextContinuationToken: alioss.ToString(out.NextContinuationToken),
	}
	for _, obj := range out.Contents {
		o := objstore.Object{
			Key:  alioss.ToString(obj.Key),
			Size: obj.Size,
			ETag: alioss.ToString(obj.ETag),
		}
		if obj.LastModified != nil {
			o.LastModified = *obj.LastModified
		}
		page.Objects = append(page.Objects, o)
	}
	for _, cp := range out.CommonPrefixes {
		page.CommonPrefixes = append(page.CommonPrefixes, alioss.ToString(cp.Prefix))
	}
	return page, nil
}
