package datastore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func detectionAt(label string, at time.Time) *Detection {
	return &Detection{
		EventID:    uuid.NewString(),
		Label:      label,
		Score:      700,
		Confidence: 0.9,
		DetectedAt: at,
	}
}

func TestSaveAssignsID(t *testing.T) {
	s := openMemory(t)

	d := detectionAt("yes", time.Now())
	require.NoError(t, s.Save(context.Background(), d))
	assert.NotZero(t, d.ID)
}

func TestSaveRejectsDuplicateEventID(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	d := detectionAt("yes", time.Now())
	require.NoError(t, s.Save(ctx, d))

	dup := *d
	dup.ID = 0
	assert.Error(t, s.Save(ctx, &dup))
}

func TestListNewestFirstWithFilters(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, label := range []string{"yes", "no", "yes", "no", "yes"} {
		require.NoError(t, s.Save(ctx, detectionAt(label, base.Add(time.Duration(i)*time.Minute))))
	}

	all, err := s.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.True(t, all[0].DetectedAt.After(all[4].DetectedAt))

	yes, err := s.List(ctx, ListOptions{Label: "yes"})
	require.NoError(t, err)
	assert.Len(t, yes, 3)

	recent, err := s.List(ctx, ListOptions{Since: base.Add(3 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	limited, err := s.List(ctx, ListOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "yes", limited[0].Label)
}

func TestSummary(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, detectionAt("no", base)))
	require.NoError(t, s.Save(ctx, detectionAt("yes", base.Add(time.Minute))))
	require.NoError(t, s.Save(ctx, detectionAt("yes", base.Add(2*time.Minute))))

	rows, err := s.Summary(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "yes", rows[0].Label)
	assert.Equal(t, int64(2), rows[0].Count)
	assert.Equal(t, "no", rows[1].Label)
}

func TestOpenFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kws.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), detectionAt("yes", time.Now())))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	rows, err := s.List(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
