package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/parcelworks/eventgate/internal/domain"
	"github.com/parcelworks/eventgate/internal/schema"
)

type SchemaHandler struct {
	registry *schema.Registry
}

func NewSchemaHandler(registry *schema.Registry) *SchemaHandler {
	return &SchemaHandler{registry: registry}
}

type registerSchemaRequest struct {
	Producer   string          `json:"producer"`
	EventType  string          `json:"eventType"`
	Version    json.RawMessage `json:"version"`
	SchemaJSON json.RawMessage `json:"schemaJson"`
}

type registerSchemaResponse struct {
	Status    string `json:"status"`
	Producer  string `json:"producer"`
	EventType string `json:"eventType"`
	Version   string `json:"version"`
	Written   bool   `json:"written"`
}

// Register validates and stores one contract version. The version field may
// arrive as a string or a bare number and defaults to "1"; either way it is
// kept as an opaque string key.
func (h *SchemaHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerSchemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Producer == "" {
		respondError(w, http.StatusBadRequest, "missing 'producer'")
		return
	}
	if req.EventType == "" {
		respondError(w, http.StatusBadRequest, "missing 'eventType'")
		return
	}
	if len(req.SchemaJSON) == 0 {
		respondError(w, http.StatusBadRequest, "missing 'schemaJson'")
		return
	}

	key := domain.SchemaKey{
		Producer:  req.Producer,
		EventType: req.EventType,
		Version:   versionString(req.Version),
	}

	if _, err := h.registry.Put(r.Context(), key, req.SchemaJSON); err != nil {
		var shapeErr *schema.ShapeError
		if errors.As(err, &shapeErr) {
			respondError(w, http.StatusBadRequest, shapeErr.Detail)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to store schema")
		return
	}

	respondJSON(w, http.StatusOK, registerSchemaResponse{
		Status:    "schema_valid",
		Producer:  key.Producer,
		EventType: key.EventType,
		Version:   key.Version,
		Written:   true,
	})
}

// Get fetches one registered contract by its exact key. The stored document
// is returned verbatim, keywords beyond the validated shape included.
func (h *SchemaHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := domain.SchemaKey{
		Producer:  chi.URLParam(r, "producer"),
		EventType: chi.URLParam(r, "eventType"),
		Version:   chi.URLParam(r, "version"),
	}

	raw, err := h.registry.GetRaw(r.Context(), key)
	if err != nil {
		if errors.Is(err, schema.ErrSchemaNotFound) {
			respondError(w, http.StatusNotFound, "schema not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get schema")
		return
	}

	respondJSON(w, http.StatusOK, raw)
}

// versionString normalizes a JSON version value (string, number, or absent)
// to an opaque string key. Absent versions default to "1".
func versionString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return domain.DefaultSchemaVersion
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return domain.DefaultSchemaVersion
		}
		return s
	}
	return strings.TrimSpace(string(raw))
}
