package history

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/kws-go/internal/datastore"
)

func seededStore(t *testing.T) *datastore.Store {
	t.Helper()
	store, err := datastore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, label := range []string{"yes", "no", "yes"} {
		require.NoError(t, store.Save(context.Background(), &datastore.Detection{
			EventID:    []string{"a", "b", "c"}[i],
			Source:     "mic",
			Label:      label,
			Score:      700 + i,
			Confidence: 0.9,
			DetectedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	return store
}

func TestWriteDetections(t *testing.T) {
	store := seededStore(t)

	var out bytes.Buffer
	require.NoError(t, writeDetections(context.Background(), &out, store, datastore.ListOptions{Label: "yes"}))

	text := out.String()
	assert.Contains(t, text, "LABEL")
	assert.Equal(t, 2, bytes.Count(out.Bytes(), []byte("yes")))
	assert.Equal(t, 3, bytes.Count(out.Bytes(), []byte("\n")), "header and two rows")
	assert.Contains(t, text, "702")
}

func TestWriteSummary(t *testing.T) {
	store := seededStore(t)

	var out bytes.Buffer
	require.NoError(t, writeSummary(context.Background(), &out, store))
	assert.Contains(t, out.String(), "COUNT")
	assert.Regexp(t, `yes\s+2`, out.String())
	assert.Regexp(t, `no\s+1`, out.String())
}

func TestWriteDetectionsEmpty(t *testing.T) {
	store, err := datastore.Open(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	var out bytes.Buffer
	require.NoError(t, writeDetections(context.Background(), &out, store, datastore.ListOptions{}))
	assert.Equal(t, "no detections\n", out.String())
}
