package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/parcelworks/eventgate/internal/domain"
)

// DeadLetterReader reads back archived rejections for inspection.
type DeadLetterReader interface {
	ReadRecent(ctx context.Context, limit int64) ([]domain.DeadLetter, error)
}

type DeadLetterHandler struct {
	reader DeadLetterReader
}

func NewDeadLetterHandler(reader DeadLetterReader) *DeadLetterHandler {
	return &DeadLetterHandler{reader: reader}
}

func (h *DeadLetterHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := int64(50)
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.ParseInt(limitStr, 10, 64); err == nil && n > 0 {
			limit = n
		}
	}

	letters, err := h.reader.ReadRecent(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list dead letters")
		return
	}
	if letters == nil {
		letters = []domain.DeadLetter{}
	}

	respondJSON(w, http.StatusOK, letters)
}
