package analytics

import (
	"context"
	"time"

	"github.com/dev7ch/api/internal/domain"
	pkglogger "github.com/dev7ch/api/pkg/logger"
)

// Mirror forwards activity entries to ClickHouse best-effort. Nil-safe:
// without a client every call is a no-op. Mirroring never blocks or
// fails a request; a rolled-back transaction can over-report, which is
// acceptable for non-authoritative analytics.
type Mirror struct {
	client *ClickHouseClient
}

// NewMirror creates a mirror over the given client (nil disables it)
func NewMirror(client *ClickHouseClient) *Mirror {
	return &Mirror{client: client}
}

// Enabled reports whether a ClickHouse connection is configured
func (m *Mirror) Enabled() bool {
	return m != nil && m.client != nil
}

// Record mirrors one activity entry asynchronously
func (m *Mirror) Record(a *domain.Activity) {
	if !m.Enabled() {
		return
	}
	event := Event{
		ActivityID: a.ID,
		Action:     a.Action,
		ActionBy:   a.ActionBy,
		ActionOn:   a.ActionOn,
		Collection: a.Collection,
		Item:       a.Item,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.client.Insert(ctx, event); err != nil {
			pkglogger.GetLogger().Warn().
				Err(err).
				Uint64("activity_id", event.ActivityID).
				Msg("activity analytics mirror failed")
		}
	}()
}

// ActionCounts proxies the reporting query; empty when disabled
func (m *Mirror) ActionCounts(ctx context.Context, since time.Time) (map[string]uint64, error) {
	if !m.Enabled() {
		return map[string]uint64{}, nil
	}
	return m.client.ActionCounts(ctx, since)
}
