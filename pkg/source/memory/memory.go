// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/leseb/filereader/pkg/source"
)

func init() {
	source.Fetchers.Register("memory", func(_ context.Context, _ map[string]string) (source.Fetcher, error) {
		return New(), nil
	})
}

// compile-time check
var _ source.Fetcher = (*Store)(nil)

// Store is an in-memory object source keyed by name.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// New creates an empty in-memory source.
func New() *Store {
	return &Store{
		objects: make(map[string][]byte),
	}
}

// Put stores body under name, replacing any previous object.
func (s *Store) Put(name string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]byte, len(body))
	copy(cp, body)
	s.objects[key(name)] = cp
}

// URI returns the mem:// URI for name.
func URI(name string) string {
	return "mem://" + key(name)
}

// Fetch returns the object stored under uri (mem://name or a bare name).
func (s *Store) Fetch(_ context.Context, uri string) (*source.Object, error) {
	k := key(uri)
	if k == "" {
		return nil, fmt.Errorf("%w: empty name", source.ErrInvalidURI)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	body, exists := s.objects[k]
	if !exists {
		return nil, fmt.Errorf("object %s: %w", k, source.ErrObjectNotFound)
	}

	cp := make([]byte, len(body))
	copy(cp, body)
	return source.NewObject(k, cp), nil
}

// Close is a no-op for the in-memory source.
func (s *Store) Close(_ context.Context) error {
	return nil
}

func key(uri string) string {
	uri = strings.TrimSpace(uri)
	if len(uri) >= len("mem://") && strings.EqualFold(uri[:len("mem://")], "mem://") {
		uri = uri[len("mem://"):]
	}
	return strings.TrimLeft(uri, "/")
}
