package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bireader-backend/internal/middleware"
	"bireader-backend/internal/models"
)

type userRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetSettings(ctx context.Context, userID uuid.UUID) (*models.UserSettings, error)
	UpdateSettings(ctx context.Context, s *models.UserSettings) error
}

type UserHandler struct {
	userRepo userRepository
}

func NewUserHandler(userRepo userRepository) *UserHandler {
	return &UserHandler{userRepo: userRepo}
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	user, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "User not found", r))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GetSettings returns the reading defaults used for new sessions.
func (h *UserHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	settings, err := h.currentSettings(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load settings", r))
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// UpdateSettings merges a partial settings payload into the stored defaults.
func (h *UserHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var patch models.SettingsPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if patch.IsEmpty() {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"settings": "No fields to update"}, r))
		return
	}
	if fields := patch.Validate(); fields != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	settings, err := h.currentSettings(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load settings", r))
		return
	}

	if patch.AutoPlayTTS != nil {
		settings.AutoPlayTTS = *patch.AutoPlayTTS
	}
	if patch.TTSSpeed != nil {
		settings.TTSSpeed = *patch.TTSSpeed
	}
	if patch.ShowTranslation != nil {
		settings.ShowTranslation = *patch.ShowTranslation
	}

	if err := h.userRepo.UpdateSettings(r.Context(), settings); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update settings", r))
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

func (h *UserHandler) currentSettings(ctx context.Context, userID uuid.UUID) (*models.UserSettings, error) {
	settings, err := h.userRepo.GetSettings(ctx, userID)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	defaults := models.DefaultReadingSettings()
	return &models.UserSettings{
		UserID:          userID,
		AutoPlayTTS:     defaults.AutoPlayTTS,
		TTSSpeed:        defaults.TTSSpeed,
		ShowTranslation: defaults.ShowTranslation,
	}, nil
}
