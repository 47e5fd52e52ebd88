package relay

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/ahrav/treadpick/internal/logging"
)

// Sender is the subset of Client the handler needs.
type Sender interface {
	Configured() bool
	Send(ctx context.Context, text string) error
}

// Handler accepts POST {"text": "..."} and forwards it through a Sender.
//
//	405  method is not POST
//	500  no webhook configured
//	400  body is not JSON or text is missing or not a string
//	xxx  upstream status and body on webhook failure
//	502  transport failure
//	503  breaker open
//	200  "ok"
type Handler struct {
	sender Sender
}

// NewHandler returns a handler forwarding to sender.
func NewHandler(sender Sender) *Handler {
	return &Handler{sender: sender}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.sender == nil || !h.sender.Configured() {
		http.Error(w, "webhook url not configured", http.StatusInternalServerError)
		return
	}

	text, err := readText(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	log := logging.Ctx(r.Context())
	if err := h.sender.Send(r.Context(), text); err != nil {
		var up *UpstreamError
		switch {
		case errors.As(err, &up):
			log.Warn().Int("status", up.Status).Msg("webhook rejected relay message")
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(up.Status)
			_, _ = io.WriteString(w, up.Body)
		case errors.Is(err, ErrCircuitOpen):
			log.Warn().Err(err).Msg("relay circuit open")
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			log.Warn().Err(err).Msg("relay delivery failed")
			http.Error(w, err.Error(), http.StatusBadGateway)
		}
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok")
}

var errMissingText = errors.New("text is required and must be a string")

func readText(body io.Reader) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(io.LimitReader(body, 1<<20)).Decode(&fields); err != nil {
		return "", errMissingText
	}
	raw, ok := fields["text"]
	if !ok || string(raw) == "null" {
		return "", errMissingText
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", errMissingText
	}
	return text, nil
}
