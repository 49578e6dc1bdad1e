package runlog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/insighter/internal/domain"
)

const defaultLimit = 20

// Service records orchestrator runs and reads them back per user.
type Service struct {
	store domain.RunStore
	now   func() time.Time
}

// NewService creates a run log from a RunStore. A nil store disables recording.
func NewService(store domain.RunStore) *Service {
	return &Service{
		store: store,
		now:   time.Now,
	}
}

// Record stores rec, filling in its ID and creation time when missing.
func (s *Service) Record(ctx context.Context, rec *domain.RunRecord) error {
	if s.store == nil || rec == nil {
		return nil
	}
	if rec.ID == "" {
		rec.ID = domain.RunID(uuid.NewString())
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	return s.store.AppendRun(ctx, rec)
}

// ListByUser returns the last limit runs of a user, newest first.
// If limit <= 0, a reasonable default value is used.
func (s *Service) ListByUser(ctx context.Context, userID domain.UserID, limit int) ([]*domain.RunRecord, error) {
	if s.store == nil {
		return []*domain.RunRecord{}, nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	return s.store.ListRunsByUser(ctx, userID, limit)
}
