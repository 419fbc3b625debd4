package objstore

import (
	"context"
	"io"
	"sync"
)

// mockDriver is a Driver whose calls can be customized through function
// fields. Every call is recorded.
type mockDriver struct {
	PutObjectFunc    func(ctx context.Context, key string, body io.Reader, size int64) error
	UploadFileFunc   func(ctx context.Context, key, localPath string) error
	DownloadFileFunc func(ctx context.Context, key, localPath string) error
	DeleteObjectFunc func(ctx context.Context, key string) error
	ExistsFunc       func(ctx context.Context, key string) (bool, error)
	ListObjectsFunc  func(ctx context.Context, in ListInput) (*ListPage, error)
	CloseFunc        func() error

	mu    sync.Mutex
	calls []call
}

type call struct {
	method string
	key    string
	path   string
}

func (m *mockDriver) record(method, key, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call{method: method, key: key, path: path})
}

// keys returns the keys passed to method, in call order.
func (m *mockDriver) keys(method string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.calls {
		if c.method == method {
			out = append(out, c.key)
		}
	}
	return out
}

func (m *mockDriver) Name() string   { return "mock" }
func (m *mockDriver) Bucket() string { return "bucket" }

func (m *mockDriver) PutObject(ctx context.Context, key string, body io.Reader, size int64) error {
	m.record("PutObject", key, "")
	if m.PutObjectFunc != nil {
		return m.PutObjectFunc(ctx, key, body, size)
	}
	return nil
}

func (m *mockDriver) UploadFile(ctx context.Context, key, localPath string) error {
	m.record("UploadFile", key, localPath)
	if m.UploadFileFunc != nil {
		return m.UploadFileFunc(ctx, key, localPath)
	}
	return nil
}

func (m *mockDriver) DownloadFile(ctx context.Context, key, localPath string) error {
	m.record("DownloadFile", key, localPath)
	if m.DownloadFileFunc != nil {
		return m.DownloadFileFunc(ctx, key, localPath)
	}
	return writeEmpty(localPath)
}

func (m *mockDriver) DeleteObject(ctx context.Context, key string) error {
	m.record("DeleteObject", key, "")
	if m.DeleteObjectFunc != nil {
		return m.DeleteObjectFunc(ctx, key)
	}
	return nil
}

func (m *mockDriver) ObjectExists(ctx context.Context, key string) (bool, error) {
	m.record("ObjectExists", key, "")
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, key)
	}
	return false, nil
}

func (m *mockDriver) ListObjects(ctx context.Context, in ListInput) (*ListPage, error) {
	m.record("ListObjects", in.Prefix, in.ContinuationToken)
	if m.ListObjectsFunc != nil {
		return m.ListObjectsFunc(ctx, in)
	}
	return &ListPage{}, nil
}

// closingDriver adds io.Closer to mockDriver.
type closingDriver struct {
	*mockDriver
}

func (c closingDriver) Close() error {
	if c.CloseFunc != nil {
		return c.CloseFunc()
	}
	return nil
}

// pages serves a fixed sequence of listing pages keyed by prefix. Tokens are
// page indexes.
func pages(byPrefix map[string][]*ListPage) func(context.Context, ListInput) (*ListPage, error) {
	return func(_ context.Context, in ListInput) (*ListPage, error) {
		seq := byPrefix[in.Prefix]
		idx := 0
		if in.ContinuationToken != "" {
			idx = int(in.ContinuationToken[0] - '0')
		}
		if idx >= len(seq) {
			return &ListPage{}, nil
		}
		page := *seq[idx]
		if idx+1 < len(seq) {
			page.IsTruncated = true
			page.NextContinuationToken = string(rune('0' + idx + 1))
		}
		return &page, nil
	}
}

func objects(keys ...string) []Object {
	out := make([]Object, 0, len(keys))
	for _, k := range keys {
		out = append(out, Object{Key: k})
	}
	return out
}
