package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/heartmarshall/filmstats-backend/internal/domain"
)

type progressService interface {
	GetProgress(ctx context.Context, sessionID uuid.UUID) (domain.Progress, error)
}

// ProgressHandler serves session progress reads.
type ProgressHandler struct {
	svc progressService
	log *slog.Logger
}

// NewProgressHandler creates a ProgressHandler.
func NewProgressHandler(svc progressService, logger *slog.Logger) *ProgressHandler {
	return &ProgressHandler{svc: svc, log: logger.With("handler", "progress")}
}

// ProgressResponse is the JSON body of GET /sessions/{id}/progress.
type ProgressResponse struct {
	SessionID     string  `json:"session_id"`
	Status        string  `json:"status"`
	TotalCount    int     `json:"total_count"`
	EnrichedCount int     `json:"enriched_count"`
	Percent       float64 `json:"percent"`
	ErrorMessage  *string `json:"error_message,omitempty"`
}

// Get handles GET /sessions/{id}/progress.
func (h *ProgressHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	p, err := h.svc.GetProgress(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "session not found")
		case errors.Is(err, domain.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.log.ErrorContext(r.Context(), "get progress",
				slog.String("session_id", id.String()),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, ProgressResponse{
		SessionID:     p.SessionID.String(),
		Status:        string(p.Status),
		TotalCount:    p.TotalCount,
		EnrichedCount: p.EnrichedCount,
		Percent:       p.Percent(),
		ErrorMessage:  p.ErrorMessage,
	})
}
