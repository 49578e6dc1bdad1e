package memory

import (
	"context"
	"sync"

	"github.com/PabloGalante/insighter/internal/domain"
)

type StateStore struct {
	mu          sync.RWMutex
	checkpoints map[domain.SessionID]domain.Checkpoint
}

func NewStateStore() *StateStore {
	return &StateStore{checkpoints: make(map[domain.SessionID]domain.Checkpoint)}
}

func (s *StateStore) SaveCheckpoint(_ context.Context, cp *domain.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *cp
	c.PendingTasks = append([]string(nil), cp.PendingTasks...)
	s.checkpoints[cp.SessionID] = c
	return nil
}

func (s *StateStore) LoadCheckpoint(_ context.Context, sessionID domain.SessionID) (*domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.checkpoints[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c.PendingTasks = append([]string(nil), c.PendingTasks...)
	return &c, nil
}
