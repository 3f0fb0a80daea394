// Package blob stores attachment payloads: in memory for development and
// tests, or in an S3-compatible bucket.
package blob

import (
	"context"
	"sync"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
)

type object struct {
	body        []byte
	contentType string
}

// Memory is an in-process blob store.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]object
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]object)}
}

func (m *Memory) Put(_ context.Context, key, contentType string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = object{body: append([]byte(nil), body...), contentType: contentType}
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, "", &domain.ErrNotFound{Resource: "blob", ID: key}
	}
	return append([]byte(nil), obj.body...), obj.contentType, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
