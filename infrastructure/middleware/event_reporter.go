package middleware

import (
	"context"
	"maps"
	"slices"

	"github.com/ahrav/treadpick/internal/logging"
	"github.com/ahrav/treadpick/internal/ports"
)

// EventReporter counts events in a MetricsCollector and writes them to the
// request logger. It never blocks the caller on anything but the log write.
type EventReporter struct {
	metrics ports.MetricsCollector
}

var _ ports.EventReporter = (*EventReporter)(nil)

// NewEventReporter returns a reporter. metrics may be nil.
func NewEventReporter(metrics ports.MetricsCollector) *EventReporter {
	return &EventReporter{metrics: metrics}
}

// Report implements ports.EventReporter.
func (r *EventReporter) Report(ctx context.Context, event string, attrs map[string]string) {
	if r.metrics != nil {
		r.metrics.RecordCounter(ports.MetricEvents, 1, map[string]string{"event": event})
	}

	e := logging.Ctx(ctx).Info().Str("event", event)
	for _, k := range slices.Sorted(maps.Keys(attrs)) {
		e = e.Str(k, attrs[k])
	}
	e.Msg("event reported")
}
