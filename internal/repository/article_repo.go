package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"bireader-backend/internal/models"
)

type ArticleRepo struct {
	pool *pgxpool.Pool
}

func NewArticleRepo(pool *pgxpool.Pool) *ArticleRepo {
	return &ArticleRepo{pool: pool}
}

func (r *ArticleRepo) Create(ctx context.Context, a *models.Article) error {
	a.ID = uuid.New()
	if a.Status == "" {
		a.Status = "pending"
	}

	query := `INSERT INTO articles (id, user_id, title, source_paragraphs, target_paragraphs, status)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		a.ID, a.UserID, a.Title, a.SourceParagraphs, a.TargetParagraphs, a.Status,
	).Scan(&a.CreatedAt)
}

func (r *ArticleRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Article, error) {
	a := &models.Article{}
	var (
		sentencesJSON []byte
		difficulty    *string
		count         int
		minutes       int
	)
	query := `SELECT id, user_id, title, source_paragraphs, target_paragraphs, status,
		sentences_json, sentence_count, difficulty, estimated_minutes, created_at, aligned_at
		FROM articles WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.UserID, &a.Title, &a.SourceParagraphs, &a.TargetParagraphs, &a.Status,
		&sentencesJSON, &count, &difficulty, &minutes, &a.CreatedAt, &a.AlignedAt,
	)
	if err != nil {
		return nil, err
	}

	if sentencesJSON != nil {
		p := &models.ProcessedArticle{SentenceCount: count, EstimatedMinutes: minutes}
		if err := json.Unmarshal(sentencesJSON, &p.Sentences); err != nil {
			return nil, fmt.Errorf("decode sentences for article %s: %w", id, err)
		}
		if difficulty != nil {
			p.Difficulty = models.Difficulty(*difficulty)
		}
		a.Processed = p
	}
	return a, nil
}

func (r *ArticleRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.ArticleSummary, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM articles WHERE user_id = $1", userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, title, status, sentence_count, COALESCE(difficulty, ''), estimated_minutes, created_at
		FROM articles WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	articles := make([]*models.ArticleSummary, 0)
	for rows.Next() {
		a := &models.ArticleSummary{}
		var difficulty string
		if err := rows.Scan(&a.ID, &a.Title, &a.Status, &a.SentenceCount, &difficulty, &a.EstimatedMinutes, &a.CreatedAt); err != nil {
			return nil, 0, err
		}
		a.Difficulty = models.Difficulty(difficulty)
		articles = append(articles, a)
	}
	return articles, total, rows.Err()
}

func (r *ArticleRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, "UPDATE articles SET status = $1 WHERE id = $2", status, id)
	return err
}

// SaveAlignment stores the processed result and marks the article completed.
func (r *ArticleRepo) SaveAlignment(ctx context.Context, id uuid.UUID, p *models.ProcessedArticle) error {
	sentences, err := json.Marshal(p.Sentences)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		UPDATE articles
		SET sentences_json = $1, sentence_count = $2, difficulty = $3, estimated_minutes = $4,
			status = 'completed', aligned_at = $5
		WHERE id = $6`,
		sentences, p.SentenceCount, string(p.Difficulty), p.EstimatedMinutes, time.Now(), id,
	)
	return err
}

func (r *ArticleRepo) Delete(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, "DELETE FROM articles WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
