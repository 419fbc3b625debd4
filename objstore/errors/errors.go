// Package errors provides error types and classification for object store operations.
package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// Error represents a failed object store operation with context about what failed.
// It keeps the backend or filesystem error in the chain, so callers can still
// use errors.As on vendor SDK error types.
type Error struct {
	// Op is the operation that failed (e.g., "upload", "downloadDir", "exists")
	Op string

	// Backend is the driver name (e.g., "oss", "s3", "local")
	Backend string

	// Bucket is the bucket name (if applicable)
	Bucket string

	// Key is the object key (if applicable)
	Key string

	// Path is the local filesystem path (if applicable)
	Path string

	// Kind is one of the sentinel errors below; nil means unclassified
	Kind error

	// Err is the underlying error from the SDK, the filesystem, or validation
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("objstore.")
	b.WriteString(e.Op)

	if e.Backend != "" || e.Bucket != "" || e.Key != "" {
		b.WriteByte(' ')
		if e.Backend != "" {
			b.WriteString(e.Backend)
			b.WriteString("://")
		}
		b.WriteString(e.Bucket)
		if e.Key != "" {
			if e.Bucket != "" {
				b.WriteByte('/')
			}
			b.WriteString(e.Key)
		}
	}
	if e.Path != "" {
		b.WriteString(" (local ")
		b.WriteString(e.Path)
		b.WriteByte(')')
	}

	switch {
	case e.Err != nil:
		fmt.Fprintf(&b, ": %v", e.Err)
	case e.Kind != nil:
		fmt.Fprintf(&b, ": %v", e.Kind)
	}
	return b.String()
}

// Unwrap returns the classification sentinel and the underlying error.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// WithBackend adds backend and bucket context to an existing error.
func (e *Error) WithBackend(backend, bucket string) *Error {
	e.Backend = backend
	e.Bucket = bucket
	return e
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithPath adds local path context to an existing error.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithKind sets the classification of an existing error.
func (e *Error) WithKind(kind error) *Error {
	e.Kind = kind
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	if e.Err == nil {
		e.Err = errors.New(message)
		return e
	}
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
// If err already carries a classification, it is inherited.
func NewError(op string, err error) *Error {
	return &Error{
		Op:   op,
		Kind: KindOf(err),
		Err:  err,
	}
}

// NewObjectError creates a new Error with backend, bucket and key context.
func NewObjectError(op, backend, bucket, key string, err error) *Error {
	return NewError(op, err).WithBackend(backend, bucket).WithKey(key)
}

// NewLocalError creates a new Error for a local filesystem failure.
// A missing path is classified as ErrNotFound, anything else as ErrLocalIO.
func NewLocalError(op, path string, err error) *Error {
	kind := ErrLocalIO
	if isNotExist(err) {
		kind = ErrNotFound
	}
	return &Error{
		Op:   op,
		Path: path,
		Kind: kind,
		Err:  err,
	}
}

// Classify marks err with kind while keeping its message unchanged.
// Drivers use it on SDK errors so the Store can report the classification.
func Classify(kind, err error) error {
	if err == nil {
		return nil
	}
	return &classified{kind: kind, err: err}
}

type classified struct {
	kind error
	err  error
}

func (c *classified) Error() string { return c.err.Error() }

func (c *classified) Unwrap() []error { return []error{c.kind, c.err} }

// Sentinel errors classifying object store failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrNotFound indicates that a key or local path does not exist
	ErrNotFound = errors.New("objstore: not found")

	// ErrAuthentication indicates missing or invalid credentials
	ErrAuthentication = errors.New("objstore: authentication failed")

	// ErrAccessDenied indicates that valid credentials lack permission
	ErrAccessDenied = errors.New("objstore: access denied")

	// ErrStorage indicates a generic backend failure (network, quota, server)
	ErrStorage = errors.New("objstore: storage error")

	// ErrLocalIO indicates a local filesystem failure
	ErrLocalIO = errors.New("objstore: local i/o error")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("objstore: invalid input")

	// ErrInvalidBucketName indicates that the bucket name is invalid
	ErrInvalidBucketName = errors.New("objstore: invalid bucket name")

	// ErrInvalidObjectKey indicates that the object key is invalid
	ErrInvalidObjectKey = errors.New("objstore: invalid object key")
)

var kinds = []error{
	ErrNotFound,
	ErrAuthentication,
	ErrAccessDenied,
	ErrInvalidBucketName,
	ErrInvalidObjectKey,
	ErrInvalidInput,
	ErrLocalIO,
	ErrStorage,
}

// KindOf returns the sentinel classifying err, or nil if err is unclassified.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// IsNotFound checks if an error indicates that a key or local path was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAuthentication checks if an error indicates missing or invalid credentials.
func IsAuthentication(err error) bool {
	return errors.Is(err, ErrAuthentication)
}

// IsAccessDenied checks if an error indicates access was denied.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsLocalIO checks if an error indicates a local filesystem failure.
func IsLocalIO(err error) bool {
	return errors.Is(err, ErrLocalIO)
}

// IsInvalidInput checks if an error indicates invalid input, including
// invalid bucket names and object keys.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidBucketName) ||
		errors.Is(err, ErrInvalidObjectKey)
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
