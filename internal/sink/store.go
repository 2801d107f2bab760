package sink

import (
	"context"

	"github.com/tphakala/kws-go/internal/datastore"
	"github.com/tphakala/kws-go/internal/detection"
)

// StoreSink saves detections to the history database.
type StoreSink struct {
	store  datastore.Interface
	node   string
	source string
}

// NewStoreSink returns a sink saving into store.
func NewStoreSink(store datastore.Interface, node, source string) *StoreSink {
	return &StoreSink{store: store, node: node, source: source}
}

// Name implements DetectionSink.
func (s *StoreSink) Name() string { return "store" }

// Deliver implements DetectionSink.
func (s *StoreSink) Deliver(ctx context.Context, ev detection.Event) error {
	return s.store.Save(ctx, &datastore.Detection{
		EventID:    ev.ID.String(),
		SourceNode: s.node,
		Source:     s.source,
		Label:      ev.Label,
		Category:   int(ev.Category),
		Score:      ev.Score,
		Confidence: ev.Confidence,
		DetectedAt: ev.Timestamp,
	})
}
