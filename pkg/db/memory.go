package db

import (
	"context"
	"sync"

	"tubenote/pkg/domain"
)

// MemoryStore is an in-process TranscriptStore. Records live as long as the
// process does.
type MemoryStore struct {
	mu          sync.RWMutex
	transcripts map[string]domain.Transcript
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{transcripts: make(map[string]domain.Transcript)}
}

func (m *MemoryStore) FindTranscript(_ context.Context, videoID string) (*domain.Transcript, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.transcripts[videoID]
	if !ok {
		return nil, ErrTranscriptNotFound
	}
	return &t, nil
}

func (m *MemoryStore) SaveTranscript(_ context.Context, t *domain.Transcript) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transcripts[t.VideoID]; ok {
		return ErrDuplicateTranscript
	}
	m.transcripts[t.VideoID] = *t
	return nil
}

// Len returns the number of stored transcripts.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.transcripts)
}
