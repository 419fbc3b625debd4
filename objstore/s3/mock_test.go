package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/qinguoyi/omnistore/objstore/storetest"
)

// fakeS3 implements S3API over an in-memory bucket. Hook fields override
// single operations.
type fakeS3 struct {
	bucket *storetest.Bucket

	HeadObjectFunc   func(context.Context, *s3.HeadObjectInput) (*s3.HeadObjectOutput, error)
	DeleteObjectFunc func(context.Context, *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error)

	mu           sync.Mutex
	contentTypes map[string]string
	uploads      map[string]map[int32][]byte
	nextUpload   int
	completed    int
	rangedGets   int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		bucket:       storetest.NewBucket(),
		contentTypes: make(map[string]string),
		uploads:      make(map[string]map[int32][]byte),
	}
}

func (f *fakeS3) PutObject(
	_ context.Context,
	params *s3.PutObjectInput,
	_ ...func(*s3.Options),
) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(params.Key)
	f.bucket.Put(key, data)
	f.mu.Lock()
	f.contentTypes[key] = aws.ToString(params.ContentType)
	f.mu.Unlock()
	return &s3.PutObjectOutput{ETag: aws.String(etag(data))}, nil
}

func (f *fakeS3) GetObject(
	_ context.Context,
	params *s3.GetObjectInput,
	_ ...func(*s3.Options),
) (*s3.GetObjectOutput, error) {
	data, modTime, ok := f.bucket.Get(aws.ToString(params.Key))
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}

	size := int64(len(data))
	if size == 0 {
		return &s3.GetObjectOutput{
			Body:          io.NopCloser(bytes.NewReader(nil)),
			ContentLength: aws.Int64(0),
			ContentRange:  aws.String("bytes */0"),
			LastModified:  aws.Time(modTime),
		}, nil
	}

	start, end := int64(0), size-1
	if r := aws.ToString(params.Range); r != "" {
		if _, err := fmt.Sscanf(r, "bytes=%d-%d", &start, &end); err != nil {
			return nil, &smithy.GenericAPIError{Code: "InvalidArgument", Message: err.Error()}
		}
		f.mu.Lock()
		f.rangedGets++
		f.mu.Unlock()
	}
	if start >= size {
		return nil, &smithy.GenericAPIError{Code: "InvalidRange", Message: "range not satisfiable"}
	}
	end = min(end, size-1)

	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data[start : end+1])),
		ContentLength: aws.Int64(end - start + 1),
		ContentRange:  aws.String(fmt.Sprintf("bytes %d-%d/%d", start, end, size)),
		LastModified:  aws.Time(modTime),
	}, nil
}

func (f *fakeS3) DeleteObject(
	ctx context.Context,
	params *s3.DeleteObjectInput,
	_ ...func(*s3.Options),
) (*s3.DeleteObjectOutput, error) {
	if f.DeleteObjectFunc != nil {
		return f.DeleteObjectFunc(ctx, params)
	}
	f.bucket.Delete(aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(
	_ context.Context,
	params *s3.ListObjectsV2Input,
	_ ...func(*s3.Options),
) (*s3.ListObjectsV2Output, error) {
	res := f.bucket.List(
		aws.ToString(params.Prefix),
		aws.ToString(params.Delimiter),
		aws.ToString(params.ContinuationToken),
		int(aws.ToInt32(params.MaxKeys)),
	)

	out := &s3.ListObjectsV2Output{
		Name:        params.Bucket,
		Prefix:      params.Prefix,
		IsTruncated: aws.Bool(res.Truncated),
	}
	if res.NextToken != "" {
		out.NextContinuationToken = aws.String(res.NextToken)
	}
	for i, key := range res.Keys {
		out.Contents = append(out.Contents, types.Object{
			Key:  aws.String(key),
			Size: aws.Int64(res.Sizes[i]),
		})
	}
	for _, p := range res.Prefixes {
		out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(p)})
	}
	return out, nil
}

func (f *fakeS3) HeadObject(
	ctx context.Context,
	params *s3.HeadObjectInput,
	_ ...func(*s3.Options),
) (*s3.HeadObjectOutput, error) {
	if f.HeadObjectFunc != nil {
		return f.HeadObjectFunc(ctx, params)
	}
	data, _, ok := f.bucket.Get(aws.ToString(params.Key))
	if !ok {
		return nil, &types.NotFound{Message: aws.String("Not Found")}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeS3) CreateMultipartUpload(
	_ context.Context,
	params *s3.CreateMultipartUploadInput,
	_ ...func(*s3.Options),
) (*s3.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextUpload++
	id := fmt.Sprintf("upload-%d", f.nextUpload)
	f.uploads[id] = make(map[int32][]byte)
	f.contentTypes[aws.ToString(params.Key)] = aws.ToString(params.ContentType)
	return &s3.CreateMultipartUploadOutput{
		Bucket:   params.Bucket,
		Key:      params.Key,
		UploadId: aws.String(id),
	}, nil
}

func (f *fakeS3) UploadPart(
	_ context.Context,
	params *s3.UploadPartInput,
	_ ...func(*s3.Options),
) (*s3.UploadPartOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	parts, ok := f.uploads[aws.ToString(params.UploadId)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchUpload"}
	}
	parts[aws.ToInt32(params.PartNumber)] = data
	return &s3.UploadPartOutput{ETag: aws.String(etag(data))}, nil
}

func (f *fakeS3) CompleteMultipartUpload(
	_ context.Context,
	params *s3.CompleteMultipartUploadInput,
	_ ...func(*s3.Options),
) (*s3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := aws.ToString(params.UploadId)
	parts, ok := f.uploads[id]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchUpload"}
	}

	var numbers []int32
	for _, p := range params.MultipartUpload.Parts {
		numbers = append(numbers, aws.ToInt32(p.PartNumber))
	}
	slices.Sort(numbers)
	var buf bytes.Buffer
	for _, n := range numbers {
		buf.Write(parts[n])
	}

	f.bucket.Put(aws.ToString(params.Key), buf.Bytes())
	delete(f.uploads, id)
	f.completed++
	return &s3.CompleteMultipartUploadOutput{Bucket: params.Bucket, Key: params.Key}, nil
}

func (f *fakeS3) AbortMultipartUpload(
	_ context.Context,
	params *s3.AbortMultipartUploadInput,
	_ ...func(*s3.Options),
) (*s3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.uploads, aws.ToString(params.UploadId))
	return &s3.AbortMultipartUploadOutput{}, nil
}

func (f *fakeS3) contentType(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contentTypes[key]
}

func etag(data []byte) string {
	return fmt.Sprintf("%q", fmt.Sprintf("%x", len(data)))
}
