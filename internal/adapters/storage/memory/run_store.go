package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/PabloGalante/insighter/internal/domain"
)

// RunStore keeps run records in memory. Not persistent; local mode only.
type RunStore struct {
	mu       sync.RWMutex
	runs     map[domain.RunID]*domain.RunRecord
	byUserID map[domain.UserID][]domain.RunID
}

func NewRunStore() *RunStore {
	return &RunStore{
		runs:     make(map[domain.RunID]*domain.RunRecord),
		byUserID: make(map[domain.UserID][]domain.RunID),
	}
}

func (s *RunStore) AppendRun(_ context.Context, run *domain.RunRecord) error {
	if run == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = domain.RunID(uuid.NewString())
	}

	s.runs[run.ID] = run
	s.byUserID[run.UserID] = append(s.byUserID[run.UserID], run.ID)
	return nil
}

// ListRunsByUser returns the last limit runs, newest first. limit <= 0 returns all.
func (s *RunStore) ListRunsByUser(_ context.Context, userID domain.UserID, limit int) ([]*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byUserID[userID]
	if limit <= 0 || limit > len(ids) {
		limit = len(ids)
	}

	out := make([]*domain.RunRecord, 0, limit)
	for i := len(ids) - 1; i >= len(ids)-limit; i-- {
		if r, ok := s.runs[ids[i]]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}
