package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"bireader-backend/internal/handlers"
	"bireader-backend/internal/middleware"
	"bireader-backend/internal/models"
	"bireader-backend/internal/websocket"
)

type stubReading struct {
	completedIndex int
}

func (s *stubReading) CreateSession(ctx context.Context, userID uuid.UUID, req models.CreateSessionRequest) (*models.ReadingSession, error) {
	return nil, nil
}

func (s *stubReading) GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.ReadingSession, error) {
	return &models.ReadingSession{ID: sessionID, UserID: userID}, nil
}

func (s *stubReading) ListSessions(ctx context.Context, userID uuid.UUID, articleID *uuid.UUID, limit, offset int) ([]*models.ReadingSession, int, error) {
	return nil, 0, nil
}

func (s *stubReading) Stats(ctx context.Context, userID uuid.UUID) (*models.ReadingStats, error) {
	return &models.ReadingStats{}, nil
}

func (s *stubReading) PatchSession(ctx context.Context, userID, sessionID uuid.UUID, patch models.SessionPatch) (*models.ReadingSession, error) {
	return nil, nil
}

func (s *stubReading) RecordCardCompletion(ctx context.Context, userID, sessionID uuid.UUID, c models.CardCompletion) (*models.CompletionResult, error) {
	s.completedIndex = c.CardIndex
	return &models.CompletionResult{}, nil
}

func newTestRouter(reading *stubReading) (http.Handler, *middleware.JWTAuth) {
	jwtAuth := middleware.NewJWTAuth("router-secret")
	h := New(
		jwtAuth,
		handlers.NewAuthHandler(nil),
		nil,
		nil,
		handlers.NewReadingSessionHandler(reading),
		nil,
		websocket.NewHub(nil, jwtAuth),
		"http://localhost:5173",
	)
	return h, jwtAuth
}

func TestRouter_Health(t *testing.T) {
	h, _ := newTestRouter(&stubReading{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "ok") {
		t.Fatalf("unexpected health response %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestRouter_RequiresAuth(t *testing.T) {
	h, _ := newTestRouter(&stubReading{})

	for _, path := range []string{"/api/v1/reading-sessions/stats", "/api/v1/articles", "/api/v1/user/me", "/api/v1/jobs/" + uuid.NewString()} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected %d, got %d", path, http.StatusUnauthorized, rr.Code)
		}
	}
}

func TestRouter_CompleteCardRoute(t *testing.T) {
	reading := &stubReading{}
	h, jwtAuth := newTestRouter(reading)
	token, _ := jwtAuth.GenerateAccessToken(uuid.New(), "reader@example.com")

	path := "/api/v1/reading-sessions/" + uuid.NewString() + "/cards/2/complete"
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"timeSpent":3}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	if reading.completedIndex != 2 {
		t.Fatalf("expected card index 2 from the path, got %d", reading.completedIndex)
	}
}
