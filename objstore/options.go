package objstore

import (
	"io/fs"
	"log/slog"
)

// Default values for Store options.
const (
	DefaultConcurrency  = 1
	DefaultDirMode      = fs.FileMode(0o755)
	DefaultFileMode     = fs.FileMode(0o644)
	DefaultListPageSize = int32(1000)
)

// Option configures a Store.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	concurrency int
	exclude     []string
	dirMode     fs.FileMode
	fileMode    fs.FileMode
	pageSize    int32
}

func defaultOptions() options {
	return options{
		concurrency: DefaultConcurrency,
		dirMode:     DefaultDirMode,
		fileMode:    DefaultFileMode,
		pageSize:    DefaultListPageSize,
	}
}

// WithLogger sets the logger used for operation logs.
// A nil logger (the default) disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithConcurrency sets how many file transfers or deletes run at once within
// one directory operation. Default is 1, a strict sequence.
// On the first failure the remaining work is cancelled.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithExclude skips local paths matching any of the patterns during
// UploadDir. Patterns are relative to the source directory; "name/" matches
// a directory tree, patterns without a slash match base names at any depth.
func WithExclude(patterns ...string) Option {
	return func(o *options) {
		o.exclude = append(o.exclude, patterns...)
	}
}

// WithDirMode sets the permission bits of local directories created by
// downloads. Default is 0755.
func WithDirMode(mode fs.FileMode) Option {
	return func(o *options) {
		o.dirMode = mode
	}
}

// WithFileMode sets the permission bits applied to downloaded files.
// Default is 0644.
func WithFileMode(mode fs.FileMode) Option {
	return func(o *options) {
		o.fileMode = mode
	}
}

// WithListPageSize sets the page size requested from the backend when
// listing a prefix. Default is 1000.
func WithListPageSize(n int32) Option {
	return func(o *options) {
		if n > 0 {
			o.pageSize = n
		}
	}
}
