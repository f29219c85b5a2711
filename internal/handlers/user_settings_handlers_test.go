package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bireader-backend/internal/middleware"
	"bireader-backend/internal/models"
)

type stubUserRepoForSettingsHandlers struct {
	user              *models.User
	settings          *models.UserSettings
	getSettingsErr    error
	updateSettingsErr error

	updatedSettings *models.UserSettings
}

func (s *stubUserRepoForSettingsHandlers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil {
		return nil, errors.New("user not found")
	}
	return s.user, nil
}

func (s *stubUserRepoForSettingsHandlers) GetSettings(ctx context.Context, userID uuid.UUID) (*models.UserSettings, error) {
	if s.getSettingsErr != nil {
		return nil, s.getSettingsErr
	}
	if s.settings == nil {
		return nil, pgx.ErrNoRows
	}
	copied := *s.settings
	return &copied, nil
}

func (s *stubUserRepoForSettingsHandlers) UpdateSettings(ctx context.Context, settings *models.UserSettings) error {
	s.updatedSettings = settings
	return s.updateSettingsErr
}

func settingsRequest(userID uuid.UUID, method, body string) *http.Request {
	req := httptest.NewRequest(method, "/api/v1/user/settings", strings.NewReader(body))
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestUserHandler_GetMe(t *testing.T) {
	userID := uuid.New()
	h := NewUserHandler(&stubUserRepoForSettingsHandlers{
		user: &models.User{ID: userID, DisplayName: "Mei", Email: "mei@example.com", PasswordHash: "secret"},
	})

	rr := httptest.NewRecorder()
	h.GetMe(rr, settingsRequest(userID, http.MethodGet, ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if strings.Contains(rr.Body.String(), "secret") {
		t.Fatalf("password hash must not be serialized")
	}
}

func TestUserHandler_GetSettings_DefaultsWhenMissing(t *testing.T) {
	userID := uuid.New()
	h := NewUserHandler(&stubUserRepoForSettingsHandlers{})

	rr := httptest.NewRecorder()
	h.GetSettings(rr, settingsRequest(userID, http.MethodGet, ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var got models.UserSettings
	json.NewDecoder(rr.Body).Decode(&got)
	if !got.AutoPlayTTS || got.TTSSpeed != 1.0 || got.ShowTranslation {
		t.Fatalf("expected reading defaults, got %+v", got)
	}
}

func TestUserHandler_UpdateSettings_Merges(t *testing.T) {
	userID := uuid.New()
	repo := &stubUserRepoForSettingsHandlers{
		settings: &models.UserSettings{UserID: userID, AutoPlayTTS: true, TTSSpeed: 1.0},
	}
	h := NewUserHandler(repo)

	rr := httptest.NewRecorder()
	h.UpdateSettings(rr, settingsRequest(userID, http.MethodPut, `{"ttsSpeed":4.0,"showTranslation":true}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	got := repo.updatedSettings
	if got == nil || got.TTSSpeed != 4.0 || !got.ShowTranslation || !got.AutoPlayTTS {
		t.Fatalf("unexpected merged settings: %+v", got)
	}
}

func TestUserHandler_UpdateSettings_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"speed above max", `{"ttsSpeed":4.01}`, "ttsSpeed"},
		{"speed below min", `{"ttsSpeed":0.2}`, "ttsSpeed"},
		{"empty patch", `{}`, "settings"},
		{"unknown field", `{"ttsSpeed":1.0,"volume":3}`, ""},
		{"wrong type", `{"autoPlayTTS":"yes"}`, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			userID := uuid.New()
			repo := &stubUserRepoForSettingsHandlers{}
			h := NewUserHandler(repo)

			rr := httptest.NewRecorder()
			h.UpdateSettings(rr, settingsRequest(userID, http.MethodPut, tc.body))

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
			}
			if repo.updatedSettings != nil {
				t.Fatalf("settings should not be updated")
			}
			if tc.field != "" {
				if apiErr := decodeError(t, rr); apiErr.Fields[tc.field] == "" {
					t.Fatalf("expected field error on %s, got %+v", tc.field, apiErr)
				}
			}
		})
	}
}

func TestUserHandler_UpdateSettings_RepoFailure(t *testing.T) {
	userID := uuid.New()
	repo := &stubUserRepoForSettingsHandlers{updateSettingsErr: errors.New("write failed")}
	h := NewUserHandler(repo)

	rr := httptest.NewRecorder()
	h.UpdateSettings(rr, settingsRequest(userID, http.MethodPut, `{"autoPlayTTS":false}`))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rr.Code)
	}
	if repo.updatedSettings == nil {
		t.Fatalf("expected settings update to be attempted")
	}
}
