package service

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/relay/internal/metrics"
	"github.com/vedran77/relay/internal/realtime"
)

// publisher hands events to the bus. A refused event is logged and counted,
// the command that produced it still succeeds.
type publisher struct {
	bus     realtime.Bus
	log     *slog.Logger
	metrics *metrics.Metrics
}

func (p publisher) publish(room, event string, payload any) {
	if p.bus == nil {
		return
	}
	if err := p.bus.Publish(room, event, payload); err != nil {
		p.metrics.PublishFailures.WithLabelValues(event).Inc()
		p.log.Warn("publish event", "room", room, "event", event, "error", err)
		return
	}
	p.metrics.EventsPublished.WithLabelValues(event).Inc()
}

// clock returns UTC time at the precision postgres keeps, so both stores
// order and compare timestamps identically.
func clock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// newMessageID returns a UUIDv7. Ids from one process sort in creation order,
// which breaks timestamp ties in the ledger the same way sends happened.
func newMessageID() string {
	return uuid.Must(uuid.NewV7()).String()
}
