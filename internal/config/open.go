package config

import (
	"context"

	"github.com/qinguoyi/omnistore/objstore"
	"github.com/qinguoyi/omnistore/objstore/errors"
	"github.com/qinguoyi/omnistore/objstore/gcs"
	"github.com/qinguoyi/omnistore/objstore/local"
	"github.com/qinguoyi/omnistore/objstore/minio"
	"github.com/qinguoyi/omnistore/objstore/oss"
	"github.com/qinguoyi/omnistore/objstore/s3"
)

// StoreOptions returns the Store options implied by the configuration.
func (c *Config) StoreOptions() []objstore.Option {
	opts := []objstore.Option{objstore.WithConcurrency(c.Concurrency)}
	if len(c.Exclude) > 0 {
		opts = append(opts, objstore.WithExclude(c.Exclude...))
	}
	return opts
}

// Open connects to the configured backend. opts are applied after
// StoreOptions.
func (c *Config) Open(ctx context.Context, opts ...objstore.Option) (*objstore.Store, error) {
	opts = append(c.StoreOptions(), opts...)

	switch c.Backend {
	case "local":
		return local.Open(ctx, local.Config{Root: c.Local.Root, Bucket: c.Bucket}, opts...)
	case "oss":
		return oss.Open(ctx, oss.Config{
			Endpoint:         c.Endpoint,
			Bucket:           c.Bucket,
			Region:           c.Region,
			AccessKeyID:      c.OSS.AccessKeyID,
			AccessKeySecret:  c.OSS.AccessKeySecret,
			SecurityToken:    c.OSS.SecurityToken,
			PartSize:         c.OSS.PartSize,
			ParallelNum:      c.OSS.ParallelNum,
			CheckpointDir:    c.OSS.CheckpointDir,
			ConnectTimeout:   c.OSS.ConnectTimeout,
			ReadWriteTimeout: c.OSS.ReadWriteTimeout,
			MaxRetries:       c.OSS.MaxRetries,
		}, opts...)
	case "s3":
		return s3.Open(ctx, s3.Config{
			Bucket:          c.Bucket,
			Region:          c.Region,
			Endpoint:        c.Endpoint,
			AccessKeyID:     c.S3.AccessKeyID,
			SecretAccessKey: c.S3.SecretAccessKey,
			SessionToken:    c.S3.SessionToken,
			ForcePathStyle:  c.S3.ForcePathStyle,
			PartSize:        c.S3.PartSize,
			Concurrency:     c.S3.Concurrency,
			MaxRetries:      c.S3.MaxRetries,
			Timeout:         c.S3.Timeout,
		}, opts...)
	case "minio":
		return minio.Open(ctx, minio.Config{
			Endpoint:        c.Endpoint,
			Bucket:          c.Bucket,
			Region:          c.Region,
			AccessKeyID:     c.MinIO.AccessKeyID,
			SecretAccessKey: c.MinIO.SecretAccessKey,
			SessionToken:    c.MinIO.SessionToken,
			Secure:          c.MinIO.Secure,
			PartSize:        c.MinIO.PartSize,
		}, opts...)
	case "gcs":
		return gcs.Open(ctx, gcs.Config{
			Bucket:                c.Bucket,
			CredentialsFile:       c.GCS.CredentialsFile,
			Endpoint:              c.Endpoint,
			WithoutAuthentication: c.GCS.WithoutAuthentication,
			ChunkSize:             c.GCS.ChunkSize,
		}, opts...)
	}
	return nil, errors.NewError("open", errors.ErrInvalidInput).
		WithMessage("unknown backend " + c.Backend)
}
