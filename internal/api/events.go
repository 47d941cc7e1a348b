package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/parcelworks/eventgate/internal/engine"
	"github.com/parcelworks/eventgate/internal/ingress"
)

const maxBodyBytes = 1 << 20 // 1 MiB

type EventHandler struct {
	normalizer *ingress.Normalizer
	router     *engine.Router
	limiter    *engine.RateLimiter
	rateLimit  int

	// Placeholder producer charged for envelopes that omit source.
	defaultSource string
}

func NewEventHandler(normalizer *ingress.Normalizer, router *engine.Router, limiter *engine.RateLimiter, rateLimit int, defaultSource string) *EventHandler {
	return &EventHandler{
		normalizer:    normalizer,
		router:        router,
		limiter:       limiter,
		rateLimit:     rateLimit,
		defaultSource: defaultSource,
	}
}

// Ingest accepts one inbound payload in any of the recognized envelope
// shapes, routes it, and returns the ordered outcome list.
func (h *EventHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	raw, ok := readBody(w, r)
	if !ok {
		return
	}
	if len(raw) == 0 {
		respondError(w, http.StatusBadRequest, "request body is required")
		return
	}

	if !h.allow(r, raw) {
		respondError(w, http.StatusTooManyRequests, "producer rate limit exceeded")
		return
	}

	hint, payload := ingress.DetectEnvelope(raw)
	h.route(w, r, payload, hint)
}

// IngestBatch accepts a queue-delivered batch: {"Records": [{"body": ...}]}.
func (h *EventHandler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	raw, ok := readBody(w, r)
	if !ok {
		return
	}

	if !h.allow(r, raw) {
		respondError(w, http.StatusTooManyRequests, "producer rate limit exceeded")
		return
	}

	h.route(w, r, raw, ingress.HintBatch)
}

// readBody reads the request body up to maxBodyBytes. Oversized bodies are
// answered 413 rather than silently truncated; on any failure the error
// response has already been written.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, "request body exceeds 1 MiB")
			return nil, false
		}
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	return raw, true
}

func (h *EventHandler) route(w http.ResponseWriter, r *http.Request, payload []byte, hint ingress.Hint) {
	outcomes, err := h.router.RouteAll(r.Context(), h.normalizer.Normalize(payload, hint))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to route event")
		return
	}
	respondJSON(w, http.StatusOK, outcomes)
}

// allow charges the envelope's declared producer against the sliding-window
// limit. Envelopes without a source are charged to the placeholder producer.
func (h *EventHandler) allow(r *http.Request, raw []byte) bool {
	if h.limiter == nil || h.rateLimit <= 0 {
		return true
	}
	producer := gjson.GetBytes(raw, "source").String()
	if producer == "" {
		producer = h.defaultSource
	}
	return h.limiter.Allow(r.Context(), producer, h.rateLimit)
}
