package minio

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/minio/minio-go/v7"

	"github.com/qinguoyi/omnistore/objstore/errors"
)

// translateError maps minio-go errors to objstore error kinds.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}

	resp := minio.ToErrorResponse(err)
	var wrapped minio.ErrorResponse
	if stderrors.As(err, &wrapped) {
		resp = wrapped
	}
	switch resp.Code {
	case "NoSuchKey", "NoSuchObject", "NotFound":
		return errors.Classify(errors.ErrNotFound, err)
	case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "InvalidToken":
		return errors.Classify(errors.ErrAuthentication, err)
	case "AccessDenied":
		return errors.Classify(errors.ErrAccessDenied, err)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return errors.Classify(errors.ErrNotFound, err)
	case http.StatusUnauthorized:
		return errors.Classify(errors.ErrAuthentication, err)
	case http.StatusForbidden:
		return errors.Classify(errors.ErrAccessDenied, err)
	}
	return errors.Classify(errors.ErrStorage, err)
}
