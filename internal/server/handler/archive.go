package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
)

// ArchiveHandler triggers cold-storage exports of agent history.
type ArchiveHandler struct {
	archiver domain.Archiver
	logger   *slog.Logger
	now      func() time.Time
}

// NewArchiveHandler creates an ArchiveHandler. A nil archiver makes every
// request fail with 503.
func NewArchiveHandler(archiver domain.Archiver, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{archiver: archiver, logger: logger, now: time.Now}
}

// archiveRequestBody selects the agent and cut-off. Before defaults to now.
type archiveRequestBody struct {
	AgentID string     `json:"agent_id"`
	Before  *time.Time `json:"before"`
}

// Archive exports closed positions and trades older than Before.
// POST /api/archive
func (h *ArchiveHandler) Archive(w http.ResponseWriter, r *http.Request) {
	if h.archiver == nil {
		writeError(w, http.StatusServiceUnavailable, "archiving is disabled")
		return
	}

	var body archiveRequestBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<12)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if body.AgentID == "" {
		writeError(w, http.StatusBadRequest, "agent_id is required")
		return
	}
	before := h.now().UTC()
	if body.Before != nil {
		before = body.Before.UTC()
	}

	report, err := h.archiver.ArchiveAgent(r.Context(), body.AgentID, before)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: archive failed",
			slog.String("agent_id", body.AgentID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "archive failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
