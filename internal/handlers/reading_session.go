package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bireader-backend/internal/middleware"
	"bireader-backend/internal/models"
)

type readingService interface {
	CreateSession(ctx context.Context, userID uuid.UUID, req models.CreateSessionRequest) (*models.ReadingSession, error)
	GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.ReadingSession, error)
	ListSessions(ctx context.Context, userID uuid.UUID, articleID *uuid.UUID, limit, offset int) ([]*models.ReadingSession, int, error)
	Stats(ctx context.Context, userID uuid.UUID) (*models.ReadingStats, error)
	PatchSession(ctx context.Context, userID, sessionID uuid.UUID, patch models.SessionPatch) (*models.ReadingSession, error)
	RecordCardCompletion(ctx context.Context, userID, sessionID uuid.UUID, c models.CardCompletion) (*models.CompletionResult, error)
}

type ReadingSessionHandler struct {
	reading readingService
}

func NewReadingSessionHandler(reading readingService) *ReadingSessionHandler {
	return &ReadingSessionHandler{reading: reading}
}

func (h *ReadingSessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	session, err := h.reading.CreateSession(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// List returns the caller's sessions, newest activity first. ?article_id
// narrows it to one article so a client can find a session to resume.
func (h *ReadingSessionHandler) List(w http.ResponseWriter, r *http.Request) {
	var articleID *uuid.UUID
	if raw := r.URL.Query().Get("article_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid article ID", r))
			return
		}
		articleID = &id
	}
	limit, offset := pagination(r)

	sessions, total, err := h.reading.ListSessions(r.Context(), middleware.GetUserID(r.Context()), articleID, limit, offset)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

func (h *ReadingSessionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reading.Stats(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *ReadingSessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "Invalid session ID")
	if !ok {
		return
	}

	session, err := h.reading.GetSession(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *ReadingSessionHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "Invalid session ID")
	if !ok {
		return
	}

	var patch models.SessionPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	session, err := h.reading.PatchSession(r.Context(), middleware.GetUserID(r.Context()), id, patch)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// CompleteCard records one finished card. The index comes from the path.
func (h *ReadingSessionHandler) CompleteCard(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "Invalid session ID")
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid card index", r))
		return
	}

	var body struct {
		TimeSpent        int  `json:"timeSpent"`
		WasFlipped       bool `json:"wasFlipped"`
		AudioReplayCount int  `json:"audioReplayCount"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	result, err := h.reading.RecordCardCompletion(r.Context(), middleware.GetUserID(r.Context()), id, models.CardCompletion{
		CardIndex:        index,
		TimeSpent:        body.TimeSpent,
		WasFlipped:       body.WasFlipped,
		AudioReplayCount: body.AudioReplayCount,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
