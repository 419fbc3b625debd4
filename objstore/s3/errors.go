package s3

import (
	"context"
	stderrors "errors"
	"net/http"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/qinguoyi/omnistore/objstore/errors"
)

var (
	notFoundCodes = map[string]bool{
		"NoSuchKey": true,
		"NotFound":  true,
	}
	authCodes = map[string]bool{
		"InvalidAccessKeyId":    true,
		"SignatureDoesNotMatch": true,
		"ExpiredToken":          true,
		"InvalidToken":          true,
		"TokenRefreshRequired":  true,
	}
	deniedCodes = map[string]bool{
		"AccessDenied":       true,
		"Forbidden":          true,
		"AllAccessDisabled":  true,
		"AccountProblem":     true,
		"InvalidObjectState": true,
	}
)

// convertAWSError classifies AWS SDK errors into the objstore taxonomy.
// The SDK error stays in the chain.
func convertAWSError(err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var noSuchKey *types.NoSuchKey
	if stderrors.As(err, &noSuchKey) {
		return errors.Classify(errors.ErrNotFound, err)
	}

	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case notFoundCodes[code]:
			return errors.Classify(errors.ErrNotFound, err)
		case authCodes[code]:
			return errors.Classify(errors.ErrAuthentication, err)
		case deniedCodes[code]:
			return errors.Classify(errors.ErrAccessDenied, err)
		}
	}

	var respErr *awshttp.ResponseError
	if stderrors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return errors.Classify(errors.ErrNotFound, err)
		case http.StatusUnauthorized:
			return errors.Classify(errors.ErrAuthentication, err)
		case http.StatusForbidden:
			return errors.Classify(errors.ErrAccessDenied, err)
		}
	}

	return errors.Classify(errors.ErrStorage, err)
}
