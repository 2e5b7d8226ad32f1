package blob

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrInjected is the failure MemoryStore returns for keys marked to fail.
var ErrInjected = errors.New("injected blob failure")

type memoryObject struct {
	payload     []byte
	contentType string
	modified    time.Time
}

// MemoryStore is an in-process Store for local development and tests.
// Failures can be injected per key.
type MemoryStore struct {
	mu          sync.Mutex
	baseURL     string
	objects     map[string]memoryObject
	failPut     bool
	failDelete  map[string]bool
	deleteCalls []string
	now         func() time.Time
}

// NewMemoryStore creates an empty store whose presigned URLs start with baseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = "memory://blob"
	}
	return &MemoryStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		objects:    make(map[string]memoryObject),
		failDelete: make(map[string]bool),
		now:        time.Now,
	}
}

func (m *MemoryStore) Put(ctx context.Context, key string, payload []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut {
		return fmt.Errorf("put %s: %w", key, ErrInjected)
	}
	m.objects[key] = memoryObject{
		payload:     append([]byte(nil), payload...),
		contentType: contentType,
		modified:    m.now(),
	}
	return nil
}

func (m *MemoryStore) Presign(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return "", false, nil
	}
	return fmt.Sprintf("%s/%s?expires=%d", m.baseURL, key, m.now().Add(ttl).Unix()), true, nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls = append(m.deleteCalls, key)
	if m.failDelete[key] {
		return fmt.Errorf("delete %s: %w", key, ErrInjected)
	}
	if _, ok := m.objects[key]; !ok {
		return ErrNotFound
	}
	delete(m.objects, key)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, prefix string) ([]Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Object, 0, len(m.objects))
	for key, obj := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, Object{Key: key, Size: int64(len(obj.payload)), LastModified: obj.modified})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Has reports whether key is stored.
func (m *MemoryStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// Keys returns every stored key, sorted.
func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// DeleteCalls returns every key Delete was called with, in call order.
func (m *MemoryStore) DeleteCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleteCalls...)
}

// FailPuts makes every Put fail until called with false.
func (m *MemoryStore) FailPuts(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPut = fail
}

// FailDeletes makes Delete fail for the given keys.
func (m *MemoryStore) FailDeletes(keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		m.failDelete[key] = true
	}
}

// Backdate shifts the modification time of key into the past.
func (m *MemoryStore) Backdate(key string, age time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if obj, ok := m.objects[key]; ok {
		obj.modified = m.now().Add(-age)
		m.objects[key] = obj
	}
}
