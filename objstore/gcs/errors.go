package gcs

import (
	"context"
	stderrors "errors"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/qinguoyi/omnistore/objstore/errors"
)

func classify(err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if stderrors.Is(err, storage.ErrObjectNotExist) || stderrors.Is(err, storage.ErrBucketNotExist) {
		return errors.Classify(errors.ErrNotFound, err)
	}

	var apiErr *googleapi.Error
	if stderrors.As(err, &apiErr) {
		switch apiErr.Code {
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
