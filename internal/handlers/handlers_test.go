package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bireader-backend/internal/middleware"
	"bireader-backend/internal/models"
	"bireader-backend/internal/services"
)

// withRoute attaches chi URL params and the authenticated user to a request.
func withRoute(req *http.Request, userID uuid.UUID, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, middleware.UserIDKey, userID)
	return req.WithContext(ctx)
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.APIError {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Error
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &services.ValidationError{Fields: map[string]string{"ttsSpeed": "out of range"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"input", &services.InputError{Message: "no sentences"}, http.StatusUnprocessableEntity, "INPUT_ERROR"},
		{"conflict", &services.ConflictError{Message: "taken"}, http.StatusConflict, "CONFLICT"},
		{"not found", &services.NotFoundError{Message: "missing"}, http.StatusNotFound, "NOT_FOUND"},
		{"unauthorized", &services.UnauthorizedError{Message: "no"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", &services.ForbiddenError{Message: "no"}, http.StatusForbidden, "FORBIDDEN"},
		{"rate limited", &services.RateLimitError{Message: "slow down"}, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"unexpected", errors.New("db down"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-Request-ID", "req-1")
			rr := httptest.NewRecorder()

			handleServiceError(rr, req, tc.err)

			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
			apiErr := decodeError(t, rr)
			if apiErr.Code != tc.code || apiErr.RequestID != "req-1" {
				t.Fatalf("unexpected error body: %+v", apiErr)
			}
		})
	}
}

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co","password":"x","extra":1}`))
	var login models.LoginRequest
	if err := decodeJSON(req, &login); err == nil {
		t.Fatalf("expected unknown field to be rejected")
	}
}

func TestPagination(t *testing.T) {
	tests := []struct {
		query         string
		limit, offset int
	}{
		{"", 20, 0},
		{"?limit=5&offset=10", 5, 10},
		{"?limit=500", 20, 0},
		{"?limit=-1&offset=-4", 20, 0},
	}

	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/"+tc.query, nil)
		limit, offset := pagination(req)
		if limit != tc.limit || offset != tc.offset {
			t.Errorf("%q: expected %d/%d, got %d/%d", tc.query, tc.limit, tc.offset, limit, offset)
		}
	}
}

type stubJobRepo struct {
	job *models.Job
}

func (s *stubJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	if s.job == nil || s.job.ID != id {
		return nil, errors.New("not found")
	}
	return s.job, nil
}

func TestJobHandler_GetJob(t *testing.T) {
	owner := uuid.New()
	job := &models.Job{ID: uuid.New(), UserID: owner, Type: models.JobTypeArticleAlignment, Status: "processing"}
	h := NewJobHandler(&stubJobRepo{job: job})

	tests := []struct {
		name   string
		userID uuid.UUID
		id     string
		status int
	}{
		{"owner", owner, job.ID.String(), http.StatusOK},
		{"other user", uuid.New(), job.ID.String(), http.StatusForbidden},
		{"unknown", owner, uuid.NewString(), http.StatusNotFound},
		{"bad id", owner, "nope", http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := withRoute(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+tc.id, nil), tc.userID, map[string]string{"id": tc.id})
			rr := httptest.NewRecorder()
			h.GetJob(rr, req)
			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
		})
	}
}
