package objstore

import (
	"context"
	"io"
	"time"
)

// ObjStore is the directory-oriented capability set over one bucket.
type ObjStore interface {
	// CreateDir writes a zero-byte marker at dirname with a trailing slash.
	CreateDir(ctx context.Context, dirname string) error

	// DeleteDir deletes every object under the dirname prefix, marker included.
	DeleteDir(ctx context.Context, dirname string) error

	// Upload transfers one local file to the key dest.
	Upload(ctx context.Context, src, dest string) error

	// UploadDir mirrors a local directory tree under the key prefix destDir.
	UploadDir(ctx context.Context, srcDir, destDir string) error

	// Download transfers the object src to the local path dest.
	Download(ctx context.Context, src, dest string) error

	// DownloadDir mirrors every object under srcDir into the local destDir.
	DownloadDir(ctx context.Context, srcDir, destDir string) error

	// Delete removes one object. Deleting a missing key is not an error.
	Delete(ctx context.Context, filename string) error

	// Exists reports whether an object with exactly this key exists.
	Exists(ctx context.Context, filename string) (bool, error)
}

// Driver is the per-object contract a backend implements.
// Implementations must be safe for concurrent use.
type Driver interface {
	// Name identifies the backend (e.g., "oss", "s3").
	Name() string

	// Bucket returns the bucket the driver is bound to.
	Bucket() string

	// PutObject stores size bytes from body at key.
	PutObject(ctx context.Context, key string, body io.Reader, size int64) error

	// UploadFile stores a local regular file at key using the backend's
	// resumable or multipart mechanism.
	UploadFile(ctx context.Context, key, localPath string) error

	// DownloadFile writes the object at key to localPath. The parent
	// directory of localPath already exists.
	DownloadFile(ctx context.Context, key, localPath string) error

	// DeleteObject removes key. A missing key is not an error.
	DeleteObject(ctx context.Context, key string) error

	// ObjectExists reports whether key exists.
	ObjectExists(ctx context.Context, key string) (bool, error)

	// ListObjects returns one page of objects under a prefix.
	ListObjects(ctx context.Context, in ListInput) (*ListPage, error)
}

// Object describes a stored object.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
}

// ListInput selects one page of a prefix listing.
type ListInput struct {
	// Prefix restricts results to keys starting with it.
	Prefix string

	// Delimiter groups keys sharing a prefix up to the delimiter into
	// CommonPrefixes. Empty means a recursive listing.
	Delimiter string

	// ContinuationToken resumes a listing from a previous page.
	ContinuationToken string

	// MaxKeys caps the page size. Zero uses the backend default.
	MaxKeys int32
}

// ListPage is one page of a prefix listing.
type ListPage struct {
	Objects               []Object
	CommonPrefixes        []string
	NextContinuationToken string
	IsTruncated           bool
}
