package storetest

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Bucket is an in-memory object map with S3 listing semantics. Driver tests
// use it behind fake SDK clients.
type Bucket struct {
	mu      sync.Mutex
	objects map[string]object
}

type object struct {
	data    []byte
	modTime time.Time
}

// ListResult is one page of a Bucket listing.
type ListResult struct {
	Keys      []string
	Sizes     []int64
	Prefixes  []string
	NextToken string
	Truncated bool
}

// NewBucket returns an empty bucket.
func NewBucket() *Bucket {
	return &Bucket{objects: make(map[string]object)}
}

// Put stores a copy of data at key.
func (b *Bucket) Put(key string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = object{data: append([]byte(nil), data...), modTime: time.Now()}
}

// Get returns the data stored at key.
func (b *Bucket) Get(key string) ([]byte, time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.objects[key]
	return o.data, o.modTime, ok
}

// Delete removes key. Missing keys are ignored.
func (b *Bucket) Delete(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
}

// Keys returns all keys in sorted order.
func (b *Bucket) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// List returns keys starting with prefix in lexical order, after token.
// With a delimiter, keys sharing the segment after prefix are grouped into
// Prefixes. The continuation token is the last entry of the page.
func (b *Bucket) List(prefix, delimiter, token string, maxKeys int) ListResult {
	if maxKeys <= 0 {
		maxKeys = 1000
	}

	type entry struct {
		key      string
		size     int64
		isPrefix bool
	}
	var entries []entry
	seen := make(map[string]bool)

	b.mu.Lock()
	for key, o := range b.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if delimiter != "" {
			if i := strings.Index(key[len(prefix):], delimiter); i >= 0 {
				cp := key[:len(prefix)+i+len(delimiter)]
				if !seen[cp] {
					seen[cp] = true
					entries = append(entries, entry{key: cp, isPrefix: true})
				}
				continue
			}
		}
		entries = append(entries, entry{key: key, size: int64(len(o.data))})
	}
	b.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	var res ListResult
	for _, e := range entries {
		if token != "" && e.key <= token {
			continue
		}
		if len(res.Keys)+len(res.Prefixes) == maxKeys {
			res.Truncated = true
			break
		}
		if e.isPrefix {
			res.Prefixes = append(res.Prefixes, e.key)
		} else {
			res.Keys = append(res.Keys, e.key)
			res.Sizes = append(res.Sizes, e.size)
		}
		res.NextToken = e.key
	}
	if !res.Truncated {
		res.NextToken = ""
	}
	return res
}
