package oss

import (
	"context"

	alioss "github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss"
)

// API defines the OSS client operations used by the driver.
// This interface allows for mocking the OSS client in tests.
type API interface {
	PutObject(
		ctx context.Context,
		request *alioss.PutObjectRequest,
		optFns ...func(*alioss.Options),
	) (*alioss.PutObjectResult, error)
	DeleteObject(
		ctx context.Context,
		request *alioss.DeleteObjectRequest,
		optFns ...func(*alioss.Options),
	) (*alioss.DeleteObjectResult, error)
	ListObjectsV2(
		ctx context.Context,
		request *alioss.ListObjectsV2Request,
		optFns ...func(*alioss.Options),
	) (*alioss.ListObjectsV2Result, error)
	IsObjectExist(
		ctx context.Context,
		bucket string,
		key string,
		optFns ...func(*alioss.IsObjectExistOptions),
	) (bool, error)
}

// Transfer defines the resumable file transfers used by the driver.
// It is satisfied by the SDK Uploader and Downloader pair.
type Transfer interface {
	UploadFile(
		ctx context.Context,
		request *alioss.PutObjectRequest,
		filePath string,
		optFns ...func(*alioss.UploaderOptions),
	) (*alioss.UploadResult, error)
	DownloadFile(
		ctx context.Context,
		request *alioss.GetObjectRequest,
		filePath string,
		optFns ...func(*alioss.DownloaderOptions),
	) (*alioss.DownloadResult, error)
}

// sdkTransfer joins an SDK uploader and downloader.
type sdkTransfer struct {
	uploader   *alioss.Uploader
	downloader *alioss.Downloader
}

func (t *sdkTransfer) UploadFile(
	ctx context.Context,
	request *alioss.PutObjectRequest,
	filePath string,
	optFns ...func(*alioss.UploaderOptions),
) (*alioss.UploadResult, error) {
	return t.uploader.UploadFile(ctx, request, filePath, optFns...)
}

func (t *sdkTransfer) DownloadFile(
	ctx context.Context,
	request *alioss.GetObjectRequest,
	filePath string,
	optFns ...func(*alioss.DownloaderOptions),
) (*alioss.DownloadResult, error) {
	return t.downloader.DownloadFile(ctx, request, filePath, optFns...)
}
