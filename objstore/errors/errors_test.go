package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type vendorError struct {
	code string
}

func (e *vendorError) Error() string { return "vendor: " + e.code }

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "operation only",
			err:  NewError("createDir", errors.New("boom")),
			want: "objstore.createDir: boom",
		},
		{
			name: "backend bucket and key",
			err:  NewObjectError("upload", "oss", "media", "docs/notes.txt", errors.New("boom")),
			want: "objstore.upload oss://media/docs/notes.txt: boom",
		},
		{
			name: "key without bucket",
			err:  NewError("exists", errors.New("boom")).WithKey("a/b"),
			want: "objstore.exists a/b: boom",
		},
		{
			name: "local path",
			err:  NewLocalError("download", "/tmp/out.txt", fs.ErrPermission),
			want: "objstore.download (local /tmp/out.txt): permission denied",
		},
		{
			name: "kind without underlying error",
			err:  &Error{Op: "validate", Kind: ErrInvalidObjectKey},
			want: "objstore.validate: objstore: invalid object key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_UnwrapKeepsVendorError(t *testing.T) {
	vendor := &vendorError{code: "NoSuchKey"}
	err := NewObjectError("download", "oss", "media", "missing", vendor).WithKind(ErrNotFound)

	assert.True(t, IsNotFound(err))
	assert.False(t, IsLocalIO(err))

	var target *vendorError
	require.True(t, errors.As(err, &target))
	assert.Equal(t, "NoSuchKey", target.code)
}

func TestNewError_InheritsKind(t *testing.T) {
	inner := fmt.Errorf("head object: %w", ErrAccessDenied)
	err := NewError("exists", inner)

	assert.Equal(t, ErrAccessDenied, err.Kind)
	assert.True(t, IsAccessDenied(err))

	outer := NewError("deleteDir", err)
	assert.Equal(t, ErrAccessDenied, outer.Kind)
}

func TestNewLocalError(t *testing.T) {
	missing := NewLocalError("upload", "/nope", fs.ErrNotExist)
	assert.True(t, IsNotFound(missing))
	assert.False(t, IsLocalIO(missing))

	denied := NewLocalError("downloadDir", "/root", fs.ErrPermission)
	assert.True(t, IsLocalIO(denied))
	assert.True(t, errors.Is(denied, fs.ErrPermission))
}

func TestKindOf(t *testing.T) {
	assert.Nil(t, KindOf(nil))
	assert.Nil(t, KindOf(errors.New("plain")))
	assert.Equal(t, ErrStorage, KindOf(fmt.Errorf("wrapped: %w", ErrStorage)))
	assert.Equal(t, ErrInvalidObjectKey, KindOf(&Error{Op: "x", Kind: ErrInvalidObjectKey}))
}

func TestIsInvalidInput(t *testing.T) {
	assert.True(t, IsInvalidInput(ErrInvalidInput))
	assert.True(t, IsInvalidInput(NewError("x", ErrInvalidBucketName)))
	assert.True(t, IsInvalidInput(NewError("x", ErrInvalidObjectKey)))
	assert.False(t, IsInvalidInput(ErrStorage))
}

func TestWithMessage(t *testing.T) {
	err := NewError("upload", ErrInvalidInput).WithMessage("source is a directory")
	assert.Equal(t, "objstore.upload: source is a directory: objstore: invalid input", err.Error())
	assert.True(t, IsInvalidInput(err))

	bare := (&Error{Op: "x"}).WithMessage("only message")
	assert.Equal(t, "objstore.x: only message", bare.Error())
}

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify(ErrNotFound, nil))

	vendor := &vendorError{code: "NoSuchKey"}
	err := Classify(ErrNotFound, vendor)
	assert.Equal(t, "vendor: NoSuchKey", err.Error())
	assert.True(t, IsNotFound(err))

	var target *vendorError
	require.True(t, errors.As(err, &target))

	wrapped := NewObjectError("download", "s3", "logs", "x", err)
	assert.Equal(t, ErrNotFound, wrapped.Kind)
	assert.Equal(t, "objstore.download s3://logs/x: vendor: NoSuchKey", wrapped.Error())
}
