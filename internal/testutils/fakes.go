package testutils

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ahrav/treadpick/internal/domain"
	"github.com/ahrav/treadpick/internal/ports"
)

// FakeSource is an in-memory CandidateSource.
type FakeSource struct {
	Candidates []domain.Candidate
	Err        error

	mu    sync.Mutex
	calls int
}

// ListCandidates implements ports.CandidateSource.
func (f *FakeSource) ListCandidates(context.Context) ([]domain.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return nil, f.Err
	}
	return append([]domain.Candidate(nil), f.Candidates...), nil
}

// Calls returns how many times ListCandidates ran.
func (f *FakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FakeExplainer answers by tire ID. IDs listed in Fail return an error.
// Delay is applied to every call so tests can observe concurrency.
type FakeExplainer struct {
	Fail  map[string]bool
	Delay time.Duration

	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	requests    []ports.ExplainRequest
}

// Explain implements ports.Explainer.
func (f *FakeExplainer) Explain(ctx context.Context, req ports.ExplainRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.inFlight++
	f.maxInFlight = max(f.maxInFlight, f.inFlight)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.Fail[req.Tire.ID] {
		return "", ports.NewExplainError("fake", req.Tire.ID, ports.ErrServiceUnavailable)
	}
	return fmt.Sprintf("%s suits a %s wet preference", req.Tire.DisplayName(), req.WetPref), nil
}

// MaxInFlight returns the highest number of concurrent Explain calls seen.
func (f *FakeExplainer) MaxInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

// Requests returns every request received.
func (f *FakeExplainer) Requests() []ports.ExplainRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.ExplainRequest(nil), f.requests...)
}

// FakeSink records feedback in memory.
type FakeSink struct {
	Err error

	mu    sync.Mutex
	saved []domain.Feedback
}

// SaveFeedback implements ports.FeedbackSink.
func (f *FakeSink) SaveFeedback(_ context.Context, fb domain.Feedback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.saved = append(f.saved, fb)
	return nil
}

// Saved returns the stored records.
func (f *FakeSink) Saved() []domain.Feedback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Feedback(nil), f.saved...)
}

// ReportedEvent is one call to FakeReporter.Report.
type ReportedEvent struct {
	Name  string
	Attrs map[string]string
}

// FakeReporter records events.
type FakeReporter struct {
	mu     sync.Mutex
	events []ReportedEvent
}

// Report implements ports.EventReporter.
func (f *FakeReporter) Report(_ context.Context, event string, attrs map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ReportedEvent{Name: event, Attrs: attrs})
}

// Events returns the recorded events.
func (f *FakeReporter) Events() []ReportedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ReportedEvent(nil), f.events...)
}

// Metric is one recorded metric sample.
type Metric struct {
	Name   string
	Value  float64
	Labels map[string]string
}

// FakeMetrics implements ports.MetricsCollector in memory.
type FakeMetrics struct {
	mu      sync.Mutex
	samples []Metric
}

func (f *FakeMetrics) record(name string, v float64, labels map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, Metric{Name: name, Value: v, Labels: labels})
}

// RecordLatency implements ports.MetricsCollector.
func (f *FakeMetrics) RecordLatency(op string, d time.Duration, labels map[string]string) {
	f.record(op, d.Seconds(), labels)
}

// RecordCounter implements ports.MetricsCollector.
func (f *FakeMetrics) RecordCounter(name string, v float64, labels map[string]string) {
	f.record(name, v, labels)
}

// RecordGauge implements ports.MetricsCollector.
func (f *FakeMetrics) RecordGauge(name string, v float64, labels map[string]string) {
	f.record(name, v, labels)
}

// RecordHistogram implements ports.MetricsCollector.
func (f *FakeMetrics) RecordHistogram(name string, v float64, labels map[string]string) {
	f.record(name, v, labels)
}

// Samples returns samples with the given name.
func (f *FakeMetrics) Samples(name string) []Metric {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Metric
	for _, s := range f.samples {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

var (
	_ ports.CandidateSource  = (*FakeSource)(nil)
	_ ports.Explainer        = (*FakeExplainer)(nil)
	_ ports.FeedbackSink     = (*FakeSink)(nil)
	_ ports.EventReporter    = (*FakeReporter)(nil)
	_ ports.MetricsCollector = (*FakeMetrics)(nil)
)
