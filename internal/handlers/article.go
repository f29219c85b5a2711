package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bireader-backend/internal/middleware"
	"bireader-backend/internal/models"
)

type articleService interface {
	Submit(ctx context.Context, userID uuid.UUID, req models.CreateArticleRequest) (*models.Article, *models.Job, error)
	Preview(req models.CreateArticleRequest) (*models.ProcessedArticle, error)
	Get(ctx context.Context, userID, articleID uuid.UUID) (*models.Article, error)
	Cards(ctx context.Context, userID, articleID uuid.UUID) (*models.ProcessedArticle, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.ArticleSummary, int, error)
	Delete(ctx context.Context, userID, articleID uuid.UUID) error
}

type ArticleHandler struct {
	articles articleService
}

func NewArticleHandler(articles articleService) *ArticleHandler {
	return &ArticleHandler{articles: articles}
}

func (h *ArticleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateArticleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	article, job, err := h.articles.Submit(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	status := http.StatusAccepted
	if article.Status == "completed" {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]interface{}{
		"job_id":     job.ID,
		"article_id": article.ID,
		"status":     article.Status,
	})
}

func (h *ArticleHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req models.CreateArticleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	processed, err := h.articles.Preview(req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, processed)
}

func (h *ArticleHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	limit, offset := pagination(r)

	articles, total, err := h.articles.List(r.Context(), userID, limit, offset)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"articles": articles,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

func (h *ArticleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "Invalid article ID")
	if !ok {
		return
	}

	article, err := h.articles.Get(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, article)
}

// Cards returns the aligned sentence cards a reading session is built on.
func (h *ArticleHandler) Cards(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "Invalid article ID")
	if !ok {
		return
	}

	processed, err := h.articles.Cards(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, processed)
}

func (h *ArticleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "Invalid article ID")
	if !ok {
		return
	}

	if err := h.articles.Delete(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Article deleted"})
}

func parseIDParam(w http.ResponseWriter, r *http.Request, name, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", message, r))
		return uuid.Nil, false
	}
	return id, true
}
