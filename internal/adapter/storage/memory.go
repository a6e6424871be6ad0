// Package storage implements per-client durable storage backends.
package storage

import (
	"context"
	"sync"

	"github.com/arturoeanton/godsplan/internal/port"
)

// MemoryBackend keeps client storage in process memory. Intended for local
// development and tests; contents are lost on restart.
type MemoryBackend struct {
	mu      sync.RWMutex
	clients map[string]map[string]string
}

// NewMemoryBackend returns an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{clients: make(map[string]map[string]string)}
}

// Scope implements port.StorageBackend.
func (b *MemoryBackend) Scope(clientID string) port.LocalStorage {
	return &memoryScope{backend: b, clientID: clientID}
}

type memoryScope struct {
	backend  *MemoryBackend
	clientID string
}

func (s *memoryScope) GetItem(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()
	v, ok := s.backend.clients[s.clientID][key]
	return v, ok, nil
}

func (s *memoryScope) SetItem(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	items, ok := s.backend.clients[s.clientID]
	if !ok {
		items = make(map[string]string)
		s.backend.clients[s.clientID] = items
	}
	items[key] = value
	return nil
}

func (s *memoryScope) RemoveItem(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	items, ok := s.backend.clients[s.clientID]
	if !ok {
		return nil
	}
	delete(items, key)
	if len(items) == 0 {
		delete(s.backend.clients, s.clientID)
	}
	return nil
}
