// Package events announces newly tracked records to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hongminglow/iptrack-be/internal/models"
)

// TrackedEventType names the event emitted after a record is stored.
const TrackedEventType = "ip.tracked"

// Publisher delivers tracked-record events. Implementations must be safe for concurrent use.
type Publisher interface {
	PublishTracked(ctx context.Context, rec models.TrackingRecord) error
	Close() error
}

// TrackedEvent is the wire payload for TrackedEventType.
type TrackedEvent struct {
	Type       string                `json:"type"`
	OccurredAt time.Time             `json:"occurred_at"`
	Record     models.TrackingRecord `json:"record"`
}

func encodeTracked(rec models.TrackingRecord) ([]byte, error) {
	return json.Marshal(TrackedEvent{
		Type:       TrackedEventType,
		OccurredAt: time.Now().UTC(),
		Record:     rec,
	})
}

// LogPublisher writes events to the structured log instead of a broker.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher returns a publisher that only logs.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger.With("module", "events.publisher")}
}

func (p *LogPublisher) PublishTracked(ctx context.Context, rec models.TrackingRecord) error {
	p.logger.InfoContext(ctx, "event published",
		"operation", "publish",
		"outcome", "success",
		"event_type", TrackedEventType,
		"record_id", rec.ID,
		"ip", rec.IP,
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
