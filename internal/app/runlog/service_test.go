package runlog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/insighter/internal/adapters/storage/memory"
	"github.com/PabloGalante/insighter/internal/domain"
)

func TestRecordFillsDefaults(t *testing.T) {
	svc := NewService(memory.NewRunStore())
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	rec := &domain.RunRecord{UserID: "u", Request: "show sales"}
	require.NoError(t, svc.Record(context.Background(), rec))
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, fixed, rec.CreatedAt)

	runs, err := svc.ListByUser(context.Background(), "u", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "show sales", runs[0].Request)
}

func TestListByUserDefaultLimit(t *testing.T) {
	svc := NewService(memory.NewRunStore())
	ctx := context.Background()
	for i := 0; i < defaultLimit+5; i++ {
		require.NoError(t, svc.Record(ctx, &domain.RunRecord{UserID: "u", Request: fmt.Sprint(i)}))
	}

	runs, err := svc.ListByUser(ctx, "u", -1)
	require.NoError(t, err)
	assert.Len(t, runs, defaultLimit)
	assert.Equal(t, fmt.Sprint(defaultLimit+4), runs[0].Request)
}

func TestNilStore(t *testing.T) {
	svc := NewService(nil)
	require.NoError(t, svc.Record(context.Background(), &domain.RunRecord{}))
	runs, err := svc.ListByUser(context.Background(), "u", 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
