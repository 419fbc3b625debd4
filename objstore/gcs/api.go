package gcs

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// API defines the bucket operations used by the driver.
// This interface allows for mocking the GCS client in tests.
type API interface {
	// NewWriter returns a writer that creates key when closed. Cancelling
	// ctx before Close aborts the write.
	NewWriter(ctx context.Context, key, contentType string, chunkSize int) io.WriteCloser

	// NewReader opens key for reading.
	NewReader(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes key.
	Delete(ctx context.Context, key string) error

	// Attrs returns the metadata of key.
	Attrs(ctx context.Context, key string) (*storage.ObjectAttrs, error)

	// ListPage returns one page of the query. Common prefixes are returned as
	// attrs with only Prefix set.
	ListPage(
		ctx context.Context,
		q *storage.Query,
		pageSize int,
		pageToken string,
	) ([]*storage.ObjectAttrs, string, error)
}

// sdkBucket adapts a storage.BucketHandle to API.
type sdkBucket struct {
	handle *storage.BucketHandle
}

func (b *sdkBucket) NewWriter(ctx context.Context, key, contentType string, chunkSize int) io.WriteCloser {
	w := b.handle.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.ChunkSize = chunkSize
	return w
}

func (b *sdkBucket) NewReader(ctx context.Context, key string) (io.ReadCloser, error) {
	return b.handle.Object(key).NewReader(ctx)
}

func (b *sdkBucket) Delete(ctx context.Context, key string) error {
	return b.handle.Object(key).Delete(ctx)
}

func (b *sdkBucket) Attrs(ctx context.Context, key string) (*storage.ObjectAttrs, error) {
	return b.handle.Object(key).Attrs(ctx)
}

func (b *sdkBucket) ListPage(
	ctx context.Context,
	q *storage.Query,
	pageSize int,
	pageToken string,
) ([]*storage.ObjectAttrs, string, error) {
	var attrs []*storage.ObjectAttrs
	next, err := iterator.NewPager(b.handle.Objects(ctx, q), pageSize, pageToken).NextPage(&attrs)
	return attrs, next, err
}
