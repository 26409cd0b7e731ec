package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	data []byte
	info ObjectInfo
}

// Memory is an in-process Storage for development (STORAGE_DRIVER=memory) and tests.
// Its bucket can be dropped with DropBucket to exercise provisioning paths, and Get and
// List let tests inspect what was written.
type Memory struct {
	mu        sync.RWMutex
	bucket    string
	hasBucket bool
	objects   map[string]memoryObject
}

// NewMemory returns an empty in-memory store with its bucket already created.
func NewMemory(bucket string) *Memory {
	return &Memory{bucket: bucket, hasBucket: true, objects: make(map[string]memoryObject)}
}

var _ Storage = (*Memory)(nil)

// DropBucket removes the bucket and every object in it.
func (m *Memory) DropBucket() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hasBucket = false
	m.objects = make(map[string]memoryObject)
}

func (m *Memory) EnsureBucket(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hasBucket = true
	return nil
}

func (m *Memory) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ObjectInfo{}, err
	}
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasBucket {
		return ObjectInfo{}, fmt.Errorf("%w: %s", ErrBucketNotFound, m.bucket)
	}
	sum := md5.Sum(data)
	info := ObjectInfo{
		Key:          key,
		Size:         int64(len(data)),
		ETag:         hex.EncodeToString(sum[:]),
		ContentType:  opt.ContentType,
		LastModified: time.Now(),
		Metadata:     opt.Metadata,
	}
	m.objects[key] = memoryObject{data: data, info: info}
	return info, nil
}

func (m *Memory) Get(_ context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, ObjectInfo{}, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.info, nil
}

// Delete is idempotent, as S3 RemoveObject is.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ObjectInfo, 0)
	for key, obj := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, obj.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *Memory) PresignGet(_ context.Context, key string, expiry time.Duration) (string, error) {
	u := url.URL{
		Scheme:   "memory",
		Host:     m.bucket,
		Path:     "/" + key,
		RawQuery: url.Values{"expires": {time.Now().Add(expiry).UTC().Format(time.RFC3339)}}.Encode(),
	}
	return u.String(), nil
}
