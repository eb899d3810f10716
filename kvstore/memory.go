package kvstore

import (
	"context"
	"sync"
)

// Memory is a process-local Backend.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, ns string, keys []string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bucket := m.data[ns]
	out := make(map[string][]byte)
	if len(keys) == 0 {
		for k, v := range bucket {
			out[k] = clone(v)
		}
		return out, nil
	}
	for _, k := range keys {
		if v, ok := bucket[k]; ok {
			out[k] = clone(v)
		}
	}
	return out, nil
}

func (m *Memory) Set(_ context.Context, ns string, items map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.data[ns]
	if !ok {
		bucket = make(map[string][]byte, len(items))
		m.data[ns] = bucket
	}
	for k, v := range items {
		bucket[k] = clone(v)
	}
	return nil
}

func (m *Memory) Remove(_ context.Context, ns string, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data[ns], k)
	}
	return nil
}

func (m *Memory) Close() error { return nil }

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
