package history

import (
	"context"
	"sync"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/models"
)

// MemoryStore is the history store used when Redis is not configured, and
// in tests. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]models.Message
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string][]models.Message)}
}

func (s *MemoryStore) Get(_ context.Context, agent, threadID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.threads[threadKey(agent, threadID)]
	if !ok || len(stored) == 0 {
		return models.NoHistoryPlaceholder(), nil
	}
	out := make([]models.Message, len(stored))
	copy(out, stored)
	return out, nil
}

func (s *MemoryStore) Set(_ context.Context, agent, threadID string, messages []models.Message) error {
	stored := make([]models.Message, len(messages))
	copy(stored, messages)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[threadKey(agent, threadID)] = stored
	return nil
}
