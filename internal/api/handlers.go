package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/ahrav/treadpick/internal/application"
	"github.com/ahrav/treadpick/internal/domain"
	"github.com/ahrav/treadpick/internal/logging"
	"github.com/ahrav/treadpick/internal/ports"
)

// Defaults applied when a request omits a preference.
const (
	DefaultWetPref   = domain.WetNormal
	DefaultWidthPref = domain.WidthNarrow
)

const maxBodyBytes = 64 << 10

type handler struct {
	recommender Recommender
	feedback    FeedbackSubmitter
}

type recommendRequest struct {
	WetPref   string `json:"wet_pref"`
	WidthPref string `json:"width_pref"`
}

type feedbackRequest struct {
	Helpfulness  string `json:"helpfulness"`
	Q1Importance string `json:"q1_importance"`
	Q2WidthPref  string `json:"q2_width_pref"`
	Top1         string `json:"top1"`
	Top2         string `json:"top2"`
	Top3         string `json:"top3"`
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one API error.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) recommend(w http.ResponseWriter, r *http.Request) {
	var body recommendRequest
	if err := decodeBody(w, r, &body); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_body", "request body must be a JSON object", err)
		return
	}

	req := application.Request{Wet: DefaultWetPref, Width: DefaultWidthPref}
	if strings.TrimSpace(body.WetPref) != "" {
		wet, err := domain.ParseWetPreference(body.WetPref)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "invalid_preference", err.Error(), nil)
			return
		}
		req.Wet = wet
	}
	if strings.TrimSpace(body.WidthPref) != "" {
		width, err := domain.ParseWidthPreference(body.WidthPref)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "invalid_preference", err.Error(), nil)
			return
		}
		req.Width = width
	}

	rec, err := h.recommender.Recommend(r.Context(), req)
	switch {
	case err == nil:
	case errors.Is(err, application.ErrFetchFailed):
		// Already logged by the service. The client sees an empty list.
	case errors.Is(err, domain.ErrInvalidPreference):
		respondError(w, r, http.StatusBadRequest, "invalid_preference", err.Error(), nil)
		return
	default:
		respondError(w, r, http.StatusInternalServerError, "internal", "failed to build recommendations", err)
		return
	}
	if rec.Results == nil {
		rec.Results = []domain.ScoredCandidate{}
	}
	respondJSON(w, r, http.StatusOK, rec)
}

func (h *handler) submitFeedback(w http.ResponseWriter, r *http.Request) {
	var body feedbackRequest
	if err := decodeBody(w, r, &body); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_body", "request body must be a JSON object", err)
		return
	}

	fb := domain.Feedback{
		Helpfulness:  domain.Helpfulness(strings.ToLower(strings.TrimSpace(body.Helpfulness))),
		Q1Importance: domain.WetPreference(body.Q1Importance),
		Q2WidthPref:  domain.WidthPreference(body.Q2WidthPref),
		Top1:         body.Top1,
		Top2:         body.Top2,
		Top3:         body.Top3,
	}
	if wet, err := domain.ParseWetPreference(body.Q1Importance); err == nil {
		fb.Q1Importance = wet
	}
	if width, err := domain.ParseWidthPreference(body.Q2WidthPref); err == nil {
		fb.Q2WidthPref = width
	}

	err := h.feedback.Submit(r.Context(), fb)
	switch {
	case err == nil:
		respondJSON(w, r, http.StatusAccepted, map[string]string{"status": "accepted"})
	case errors.Is(err, domain.ErrInvalidFeedback):
		respondError(w, r, http.StatusBadRequest, "invalid_feedback", err.Error(), nil)
	case errors.Is(err, ports.ErrFeedbackRejected):
		respondError(w, r, http.StatusBadGateway, "feedback_rejected", "feedback could not be stored", err)
	default:
		respondError(w, r, http.StatusInternalServerError, "internal", "failed to submit feedback", err)
	}
}

// decodeBody reads a JSON object into dst. An empty body leaves dst unchanged.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("failed to write JSON response")
	}
}

// respondError writes an ErrorBody. err, when set, is logged but never sent
// to the client.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("code", code).Int("status", status).Msg("api error")
	}
	respondJSON(w, r, status, ErrorBody{Error: ErrorDetail{
		Code:      code,
		Message:   message,
		RequestID: logging.RequestIDFromContext(r.Context()),
	}})
}
