package sink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tphakala/kws-go/internal/detection"
	"github.com/tphakala/kws-go/internal/errors"
	"github.com/tphakala/kws-go/internal/mqtt"
)

// DetectionMessage is the JSON payload published for each detection.
type DetectionMessage struct {
	ID         string    `json:"id"`
	Node       string    `json:"node"`
	Source     string    `json:"source,omitempty"`
	Label      string    `json:"label"`
	Category   int       `json:"category"`
	Score      int       `json:"score"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewDetectionMessage builds the payload for ev.
func NewDetectionMessage(ev detection.Event, node, source string) DetectionMessage {
	return DetectionMessage{
		ID:         ev.ID.String(),
		Node:       node,
		Source:     source,
		Label:      ev.Label,
		Category:   int(ev.Category),
		Score:      ev.Score,
		Confidence: ev.Confidence,
		Timestamp:  ev.Timestamp,
	}
}

// MQTTSink publishes detections as JSON.
type MQTTSink struct {
	client mqtt.Client
	topic  string
	node   string
	source string
}

// NewMQTTSink returns a sink publishing to topic through a connected client.
func NewMQTTSink(client mqtt.Client, topic, node, source string) *MQTTSink {
	return &MQTTSink{client: client, topic: topic, node: node, source: source}
}

// Name implements DetectionSink.
func (s *MQTTSink) Name() string { return "mqtt" }

// Deliver implements DetectionSink.
func (s *MQTTSink) Deliver(ctx context.Context, ev detection.Event) error {
	payload, err := json.Marshal(NewDetectionMessage(ev, s.node, s.source))
	if err != nil {
		return errors.New(err).
			Component("sink").
			Category(errors.CategoryMQTTPublish).
			Context("operation", "marshal-detection").
			Build()
	}

	if !s.client.IsConnected() {
		return ErrSkipped
	}
	return s.client.Publish(ctx, s.topic, payload)
}
