package oss

import (
	"context"
	stderrors "errors"
	"net/http"

	alioss "github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss"

	"github.com/qinguoyi/omnistore/objstore/errors"
)

// authCodes are the 403 error codes caused by bad credentials rather than
// missing permissions.
var authCodes = map[string]bool{
	"InvalidAccessKeyId":    true,
	"SignatureDoesNotMatch": true,
	"SecurityTokenExpired":  true,
	"InvalidSecurityToken":  true,
}

// classify converts OSS SDK errors into the objstore taxonomy.
// The SDK error stays in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var serr *alioss.ServiceError
	if stderrors.As(err, &serr) {
		switch {
		case serr.StatusCode == http.StatusNotFound, serr.Code == "NoSuchKey":
			return errors.Classify(errors.ErrNotFound, err)
		case serr.StatusCode == http.StatusUnauthorized, authCodes[serr.Code]:
			return errors.Classify(errors.ErrAuthentication, err)
		case serr.StatusCode == http.StatusForbidden:
			return errors.Classify(errors.ErrAccessDenied, err)
		}
	}

	return errors.Classify(errors.ErrStorage, err)
}
