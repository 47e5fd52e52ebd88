package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/treadpick/infrastructure/relay"
	"github.com/ahrav/treadpick/internal/application"
	"github.com/ahrav/treadpick/internal/domain"
	"github.com/ahrav/treadpick/internal/ports"
	"github.com/ahrav/treadpick/internal/testutils"
)

type fakeSender struct {
	configured bool
	err        error
	sent       []string
}

func (f *fakeSender) Configured() bool { return f.configured }

func (f *fakeSender) Send(_ context.Context, text string) error {
	f.sent = append(f.sent, text)
	return f.err
}

type testServer struct {
	handler http.Handler
	source  *testutils.FakeSource
	sink    *testutils.FakeSink
	sender  *fakeSender
}

func newTestServer(t *testing.T, cfg MiddlewareConfig) *testServer {
	t.Helper()
	source := &testutils.FakeSource{Candidates: testutils.WorkedExample()}
	sink := &testutils.FakeSink{}
	sender := &fakeSender{configured: true}

	recommender, err := application.NewRecommendationService(source)
	require.NoError(t, err)
	feedback, err := application.NewFeedbackService(sink, nil, nil)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "treadpick_test_total"}))

	h := NewRouter(Dependencies{
		Recommender: recommender,
		Feedback:    feedback,
		Relay:       relay.NewHandler(sender),
		Gatherer:    reg,
	}, cfg)
	return &testServer{handler: h, source: source, sink: sink, sender: sender}
}

func (s *testServer) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeRecommendation(t *testing.T, rec *httptest.ResponseRecorder) application.Recommendation {
	t.Helper()
	var out application.Recommendation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var out ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.Error
}

func TestRecommend_WorkedExample(t *testing.T) {
	s := newTestServer(t, MiddlewareConfig{})

	rec := s.do(http.MethodPost, "/api/v1/recommendations", `{"wet_pref":"not","width_pref":"narrow"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	out := decodeRecommendation(t, rec)
	require.Len(t, out.Results, 3)
	assert.Equal(t, "item1", out.Results[0].ID)
	assert.Equal(t, "item3", out.Results[1].ID)
	assert.Equal(t, "item2", out.Results[2].ID)
	assert.InDelta(t, 37.5, out.Results[0].Score, 1e-9)
	assert.True(t, out.Results[0].Fallback)
	assert.NotEmpty(t, out.Results[0].Explanation)
	assert.Equal(t, domain.WetNot, out.Meta.WetPref)
}

func TestRecommend_Defaults(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ""},
		{name: "empty object", body: "{}"},
		{name: "blank fields", body: `{"wet_pref":" ","width_pref":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, MiddlewareConfig{})
			rec := s.do(http.MethodPost, "/api/v1/recommendations", tt.body)
			require.Equal(t, http.StatusOK, rec.Code)

			out := decodeRecommendation(t, rec)
			assert.Equal(t, DefaultWetPref, out.Meta.WetPref)
			assert.Equal(t, DefaultWidthPref, out.Meta.WidthPref)
		})
	}
}

func TestRecommend_LenientParsing(t *testing.T) {
	s := newTestServer(t, MiddlewareConfig{})
	rec := s.do(http.MethodPost, "/api/v1/recommendations", `{"wet_pref":" VERY ","width_pref":"30mm"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decodeRecommendation(t, rec)
	assert.Equal(t, domain.WetVery, out.Meta.WetPref)
	assert.Equal(t, domain.WidthWide, out.Meta.WidthPref)
	assert.Equal(t, "item2", out.Results[0].ID)
}

func TestRecommend_BadRequests(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{name: "unknown wet", body: `{"wet_pref":"soaked"}`, wantCode: "invalid_preference"},
		{name: "unknown width", body: `{"width_pref":"fat"}`, wantCode: "invalid_preference"},
		{name: "malformed json", body: `{"wet_pref":`, wantCode: "invalid_body"},
		{name: "wrong type", body: `{"wet_pref":5}`, wantCode: "invalid_body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, MiddlewareConfig{})
			rec := s.do(http.MethodPost, "/api/v1/recommendations", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
			assert.Zero(t, s.source.Calls())
		})
	}
}

func TestRecommend_SuggestsClosestValue(t *testing.T) {
	s := newTestServer(t, MiddlewareConfig{})
	rec := s.do(http.MethodPost, "/api/v1/recommendations", `{"wet_pref":"vrey"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, `did you mean "very"`)
}

func TestRecommend_FetchFailureAnswersEmptyList(t *testing.T) {
	s := newTestServer(t, MiddlewareConfig{})
	s.source.Err = ports.NewSourceError("file", errors.New("no such file"))

	rec := s.do(http.MethodPost, "/api/v1/recommendations", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"results":[]`)
	assert.NotContains(t, rec.Body.String(), "no such file")
}

func TestFeedback(t *testing.T) {
	valid := `{"helpfulness":"helpful","q1_importance":"not","q2_width_pref":"narrow","top1":"Alpha Road (28mm)"}`

	t.Run("accepted", func(t *testing.T) {
		s := newTestServer(t, MiddlewareConfig{})
		rec := s.do(http.MethodPost, "/api/v1/feedback", valid)
		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.JSONEq(t, `{"status":"accepted"}`, rec.Body.String())

		saved := s.sink.Saved()
		require.Len(t, saved, 1)
		assert.Equal(t, domain.Helpful, saved[0].Helpfulness)
		assert.Equal(t, domain.WetNot, saved[0].Q1Importance)
		assert.Equal(t, "Alpha Road (28mm)", saved[0].Top1)
		assert.False(t, saved[0].CreatedAt.IsZero())
	})

	t.Run("normalizes case", func(t *testing.T) {
		s := newTestServer(t, MiddlewareConfig{})
		rec := s.do(http.MethodPost, "/api/v1/feedback", `{"helpfulness":"Neutral","q1_importance":"Very","q2_width_pref":"WIDE"}`)
		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, domain.WidthWide, s.sink.Saved()[0].Q2WidthPref)
	})

	t.Run("invalid", func(t *testing.T) {
		s := newTestServer(t, MiddlewareConfig{})
		rec := s.do(http.MethodPost, "/api/v1/feedback", `{"helpfulness":"meh","q1_importance":"not","q2_width_pref":"narrow"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_feedback", decodeError(t, rec).Code)
		assert.Empty(t, s.sink.Saved())
	})

	t.Run("sink failure", func(t *testing.T) {
		s := newTestServer(t, MiddlewareConfig{})
		s.sink.Err = errors.New("db down")
		rec := s.do(http.MethodPost, "/api/v1/feedback", valid)
		require.Equal(t, http.StatusBadGateway, rec.Code)
		detail := decodeError(t, rec)
		assert.Equal(t, "feedback_rejected", detail.Code)
		assert.NotContains(t, detail.Message, "db down")
	})
}

func TestRelayRoutes(t *testing.T) {
	for _, path := range []string{"/relay", "/api/v1/relay"} {
		t.Run(path, func(t *testing.T) {
			s := newTestServer(t, MiddlewareConfig{})

			rec := s.do(http.MethodGet, path, "")
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

			rec = s.do(http.MethodPost, path, `{}`)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			rec = s.do(http.MethodPost, path, `{"text":"deploy finished"}`)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "ok", rec.Body.String())
			assert.Equal(t, []string{"deploy finished"}, s.sender.sent)
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, MiddlewareConfig{})

	rec := s.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "treadpick_test_total")
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t, MiddlewareConfig{})

	rec := s.do(http.MethodPost, "/api/v1/recommendations", `{}`, RequestIDHeader, "client-id-1")
	assert.Equal(t, "client-id-1", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "client-id-1", decodeRecommendation(t, rec).Meta.RequestID)

	rec = s.do(http.MethodPost, "/api/v1/recommendations", `{}`)
	generated := rec.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, decodeRecommendation(t, rec).Meta.RequestID)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, MiddlewareConfig{RateLimit: 1, RateWindow: time.Hour})

	first := s.do(http.MethodPost, "/api/v1/recommendations", `{}`)
	assert.Equal(t, http.StatusOK, first.Code)

	second := s.do(http.MethodPost, "/api/v1/recommendations", `{}`)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "rate_limited", decodeError(t, second).Code)

	// Health checks are not limited.
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", "").Code)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, MiddlewareConfig{CORSOrigins: []string{"https://app.example.com"}})

	rec := s.do(http.MethodPost, "/api/v1/recommendations", `{}`, "Origin", "https://app.example.com")
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = s.do(http.MethodPost, "/api/v1/recommendations", `{}`, "Origin", "https://evil.example.com")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
