package upload

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// MemoryStore keeps uploads in memory. It is meant for tests and local experiments.
type MemoryStore struct {
	publicBase string
	namer      *Namer

	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(publicBase string) *MemoryStore {
	return &MemoryStore{
		publicBase: publicBase,
		namer:      NewNamer(),
		files:      make(map[string][]byte),
	}
}

// WithNamer replaces the name generator.
func (s *MemoryStore) WithNamer(n *Namer) *MemoryStore {
	s.namer = n
	return s
}

func (s *MemoryStore) Put(ctx context.Context, r io.Reader, ext string) (StoredFile, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return StoredFile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := s.namer.Generate(ext)
		if _, taken := s.files[name]; taken {
			continue
		}
		s.files[name] = buf.Bytes()
		return StoredFile{
			Name: name,
			Dir:  "memory",
			Ext:  ext,
			Size: int64(buf.Len()),
			URL:  publicURL(s.publicBase, name),
		}, nil
	}
	return StoredFile{}, ErrNamesExhausted
}

func (s *MemoryStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	delete(s.files, name)
	s.mu.Unlock()
	return nil
}

// Get returns the stored bytes for name.
func (s *MemoryStore) Get(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.files[name]
	return b, ok
}

// Len returns the number of stored files.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
