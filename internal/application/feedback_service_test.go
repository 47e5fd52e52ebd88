package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/treadpick/internal/domain"
	"github.com/ahrav/treadpick/internal/ports"
	"github.com/ahrav/treadpick/internal/testutils"
)

func validFeedback() domain.Feedback {
	return domain.Feedback{
		Helpfulness:  domain.Helpful,
		Q1Importance: domain.WetVery,
		Q2WidthPref:  domain.WidthWide,
		Top1:         "Pirelli P Zero Race (32mm)",
	}
}

func TestFeedbackService_Submit(t *testing.T) {
	sink := &testutils.FakeSink{}
	reporter := &testutils.FakeReporter{}
	metrics := &testutils.FakeMetrics{}
	svc, err := NewFeedbackService(sink, reporter, metrics)
	require.NoError(t, err)

	fixed := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	require.NoError(t, svc.Submit(context.Background(), validFeedback()))

	saved := sink.Saved()
	require.Len(t, saved, 1)
	assert.Equal(t, fixed, saved[0].CreatedAt)
	assert.Equal(t, "Pirelli P Zero Race (32mm)", saved[0].Top1)

	events := reporter.Events()
	require.Len(t, events, 1)
	assert.Equal(t, ports.EventFeedbackSubmitted, events[0].Name)
	assert.Equal(t, "helpful", events[0].Attrs["helpfulness"])

	samples := metrics.Samples(ports.MetricFeedback)
	require.Len(t, samples, 1)
	assert.Equal(t, "accepted", samples[0].Labels["outcome"])
}

func TestFeedbackService_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Feedback)
	}{
		{name: "helpfulness", mutate: func(f *domain.Feedback) { f.Helpfulness = "meh" }},
		{name: "wet", mutate: func(f *domain.Feedback) { f.Q1Importance = "" }},
		{name: "width", mutate: func(f *domain.Feedback) { f.Q2WidthPref = "huge" }},
		{name: "long top", mutate: func(f *domain.Feedback) { f.Top2 = strings.Repeat("x", domain.MaxTopLength+1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &testutils.FakeSink{}
			svc, err := NewFeedbackService(sink, nil, nil)
			require.NoError(t, err)

			fb := validFeedback()
			tt.mutate(&fb)
			err = svc.Submit(context.Background(), fb)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidFeedback)
			assert.Empty(t, sink.Saved())
		})
	}
}

func TestFeedbackService_SinkFailure(t *testing.T) {
	sink := &testutils.FakeSink{Err: errors.New("disk full")}
	reporter := &testutils.FakeReporter{}
	metrics := &testutils.FakeMetrics{}
	svc, err := NewFeedbackService(sink, reporter, metrics)
	require.NoError(t, err)

	err = svc.Submit(context.Background(), validFeedback())
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrFeedbackRejected)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, reporter.Events())

	samples := metrics.Samples(ports.MetricFeedback)
	require.Len(t, samples, 1)
	assert.Equal(t, "rejected", samples[0].Labels["outcome"])
}

func TestFeedbackService_KeepsCreatedAt(t *testing.T) {
	sink := &testutils.FakeSink{}
	svc, err := NewFeedbackService(sink, nil, nil)
	require.NoError(t, err)

	fb := validFeedback()
	fb.CreatedAt = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, svc.Submit(context.Background(), fb))
	assert.Equal(t, fb.CreatedAt, sink.Saved()[0].CreatedAt)
}

func TestNewFeedbackService_RequiresSink(t *testing.T) {
	_, err := NewFeedbackService(nil, nil, nil)
	assert.Error(t, err)
}
