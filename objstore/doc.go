// Package objstore provides directory-oriented operations over object storage.
//
// Object stores have no real directories. A directory is simulated by a
// zero-byte marker object whose key ends in "/", and every key sharing that
// prefix is treated as part of the directory. Store builds the directory
// operations (create, delete, upload, download, existence checks) on top of a
// small Driver contract, so each backend only implements per-object calls and
// delegates transfer internals to its vendor SDK.
//
// Bundled drivers live in sub-packages:
//   - objstore/oss: Alibaba Cloud OSS
//   - objstore/s3: Amazon S3 and S3-compatible endpoints
//   - objstore/minio: MinIO
//   - objstore/gcs: Google Cloud Storage
//   - objstore/local: a directory or in-memory filesystem
//
// Example usage:
//
//	store, err := oss.Open(ctx, oss.Config{
//	    Endpoint:        "https://oss-cn-hangzhou.aliyuncs.com",
//	    Region:          "cn-hangzhou",
//	    Bucket:          "media",
//	    AccessKeyID:     id,
//	    AccessKeySecret: secret,
//	})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	if err := store.UploadDir(ctx, "./site", "www"); err != nil {
//	    return err
//	}
//
// Directory operations are not atomic. The first failure stops the sequence
// and whatever already completed stays in place.
package objstore
