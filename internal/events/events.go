// Package events publishes crop lifecycle telemetry. Delivery is fire and
// forget: a failed publish is logged by the caller and never fails a crop.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Event types.
const (
	TypeCropStarted   = "crop.started"
	TypeCropStage     = "crop.stage"
	TypeCropCompleted = "crop.completed"
	TypeCropFailed    = "crop.failed"
)

// Event is one crop lifecycle notification, encoded as JSON on the wire.
type Event struct {
	Type     string    `json:"type"`
	CropID   string    `json:"crop_id"`
	SourceID string    `json:"source_id,omitempty"`
	Stage    string    `json:"stage,omitempty"`
	Kind     string    `json:"kind,omitempty"`
	VideoID  string    `json:"video_id,omitempty"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher is the sink the crop orchestrator reports to.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// LogPublisher writes events to a structured logger. It is the default when
// no NATS URL is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, ev Event) error {
	attrs := []any{"type", ev.Type, "crop_id", ev.CropID}
	if ev.SourceID != "" {
		attrs = append(attrs, "source_id", ev.SourceID)
	}
	if ev.Stage != "" {
		attrs = append(attrs, "stage", ev.Stage)
	}
	if ev.Kind != "" {
		attrs = append(attrs, "kind", ev.Kind)
	}
	if ev.VideoID != "" {
		attrs = append(attrs, "video_id", ev.VideoID)
	}
	if ev.Error != "" {
		attrs = append(attrs, "error", ev.Error)
	}
	p.logger.InfoContext(ctx, "crop event", attrs...)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

func encode(ev Event) ([]byte, error) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	return json.Marshal(ev)
}
