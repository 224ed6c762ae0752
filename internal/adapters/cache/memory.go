package cache

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dlystyr/fantasypl-mcp/pkg/metrics"
)

const defaultMaxEntries = 10000

// node is one link of the insertion-order queue.
type node struct {
	key  string
	next *node
}

func (n *node) reset() {
	n.key = ""
	n.next = nil
}

type memEntry struct {
	value   []byte
	expires time.Time
	node    *node
}

// MemoryBackend is a bounded in-process Backend. When full, the oldest
// insertion is evicted first; expired entries are dropped when next read or
// when they reach the front of the queue.
type MemoryBackend struct {
	mu         sync.RWMutex
	entries    map[string]*memEntry
	head, tail *node // head is the oldest insertion
	queued     int
	maxEntries int
	size       atomic.Int64
	nodePool   sync.Pool
	now        func() time.Time
}

// MemoryOption configures a MemoryBackend.
type MemoryOption func(*MemoryBackend)

// WithMaxEntries bounds the number of live entries.
func WithMaxEntries(n int) MemoryOption {
	return func(m *MemoryBackend) {
		if n > 0 {
			m.maxEntries = n
		}
	}
}

// WithMemoryClock overrides the clock used for expiry.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *MemoryBackend) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend(opts ...MemoryOption) *MemoryBackend {
	m := &MemoryBackend{
		entries:    make(map[string]*memEntry),
		maxEntries: defaultMaxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.nodePool = sync.Pool{
		New: func() any {
			return &node{}
		},
	}
	return m
}

// Get implements Backend.
func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	if !ok {
		m.mu.RUnlock()
		return nil, false, nil
	}
	if m.now().Before(e.expires) {
		v := bytes.Clone(e.value)
		m.mu.RUnlock()
		return v, true, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	// the entry may have been replaced since the read lock was released
	if cur, ok := m.entries[key]; ok && cur == e {
		m.drop(key)
	}
	return nil, false, nil
}

// SetNX implements Backend.
func (m *MemoryBackend) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.entries[key]; ok {
		if now.Before(e.expires) {
			return false, nil
		}
		m.drop(key)
	}
	for len(m.entries) >= m.maxEntries && m.head != nil {
		m.evictOldest()
	}
	if m.queued >= 2*m.maxEntries {
		m.compact()
	}

	n := m.nodePool.Get().(*node)
	n.key = key
	if m.tail == nil {
		m.head, m.tail = n, n
	} else {
		m.tail.next = n
		m.tail = n
	}
	m.queued++
	m.entries[key] = &memEntry{value: bytes.Clone(value), expires: now.Add(ttl), node: n}
	metrics.UpdateCacheEntries(int(m.size.Add(1)))
	return true, nil
}

// drop removes a map entry; its queue node is skipped when it reaches the front.
// Callers hold m.mu.
func (m *MemoryBackend) drop(key string) {
	delete(m.entries, key)
	metrics.UpdateCacheEntries(int(m.size.Add(-1)))
}

// evictOldest pops the front of the queue and removes its entry if the node
// still owns it. Callers hold m.mu.
func (m *MemoryBackend) evictOldest() {
	n := m.head
	m.head = n.next
	if m.head == nil {
		m.tail = nil
	}
	m.queued--
	if m.owns(n) {
		m.drop(n.key)
		metrics.RecordCacheEviction(1)
	}
	n.reset()
	m.nodePool.Put(n)
}

func (m *MemoryBackend) owns(n *node) bool {
	e, ok := m.entries[n.key]
	return ok && e.node == n
}

// compact unlinks queue nodes whose entries were dropped. Callers hold m.mu.
func (m *MemoryBackend) compact() {
	var head, tail *node
	m.queued = 0
	for n := m.head; n != nil; {
		next := n.next
		if m.owns(n) {
			n.next = nil
			if tail == nil {
				head = n
			} else {
				tail.next = n
			}
			tail = n
			m.queued++
		} else {
			n.reset()
			m.nodePool.Put(n)
		}
		n = next
	}
	m.head, m.tail = head, tail
}

// Len returns the number of stored entries, expired ones included until touched.
func (m *MemoryBackend) Len() int {
	return int(m.size.Load())
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*memEntry)
	m.head, m.tail = nil, nil
	m.queued = 0
	m.size.Store(0)
	metrics.UpdateCacheEntries(0)
	return nil
}
