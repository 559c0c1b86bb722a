package store

import (
	"context"
	"sort"
	"time"
)

// MemoryFileStore is an in-memory FileStore used by tests and the inbox
// watcher's dry-run mode. Not safe for concurrent use.
type MemoryFileStore struct {
	byName map[string]*MediaFile
	byID   map[string]*MediaFile
}

func NewMemoryFileStore() *MemoryFileStore {
	return &MemoryFileStore{
		byName: make(map[string]*MediaFile),
		byID:   make(map[string]*MediaFile),
	}
}

func (s *MemoryFileStore) Register(ctx context.Context, f *MediaFile) error {
	if f.ID == "" {
		f.ID = NewID()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	cp := *f
	s.byName[f.Name] = &cp
	s.byID[f.ID] = &cp
	return nil
}

func (s *MemoryFileStore) ResolveByName(ctx context.Context, name string) (*MediaFile, error) {
	f, ok := s.byName[name]
	if !ok {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

func (s *MemoryFileStore) Get(ctx context.Context, id string) (*MediaFile, error) {
	f, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

func (s *MemoryFileStore) List(ctx context.Context) ([]*MediaFile, error) {
	files := make([]*MediaFile, 0, len(s.byName))
	for _, f := range s.byName {
		cp := *f
		files = append(files, &cp)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}
