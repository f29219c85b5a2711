package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"bireader-backend/internal/aligner"
	"bireader-backend/internal/models"
)

type ArticleRepository interface {
	Create(ctx context.Context, a *models.Article) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Article, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.ArticleSummary, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	SaveAlignment(ctx context.Context, id uuid.UUID, p *models.ProcessedArticle) error
	Delete(ctx context.Context, id, userID uuid.UUID) (bool, error)
}

type JobRepository interface {
	Create(ctx context.Context, j *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateError(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error
}

// JobQueue hands a job to the worker pool.
type JobQueue interface {
	Push(ctx context.Context, job *models.Job) error
}

// RedisQueue pushes jobs onto the list the worker pool BLPOPs from.
type RedisQueue struct {
	redis *redis.Client
}

func NewRedisQueue(redisClient *redis.Client) *RedisQueue {
	return &RedisQueue{redis: redisClient}
}

func (q *RedisQueue) Push(ctx context.Context, job *models.Job) error {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.redis.LPush(ctx, JobQueueName(job.Type), string(jobBytes)).Err()
}

func JobQueueName(jobType string) string {
	switch jobType {
	case models.JobTypeArticleAlignment:
		return models.ArticleAlignmentQueue
	default:
		return "queue:" + jobType
	}
}

type ArticleService struct {
	articles ArticleRepository
	jobs     JobRepository
	queue    JobQueue
}

// NewArticleService builds the article service. With a nil queue, alignment
// runs inline during Submit.
func NewArticleService(articles ArticleRepository, jobs JobRepository, queue JobQueue) *ArticleService {
	return &ArticleService{articles: articles, jobs: jobs, queue: queue}
}

// Submit stores a new article and schedules its alignment.
func (s *ArticleService) Submit(ctx context.Context, userID uuid.UUID, req models.CreateArticleRequest) (*models.Article, *models.Job, error) {
	if fields := validateArticle(req, true); len(fields) > 0 {
		return nil, nil, &ValidationError{Fields: fields}
	}

	article := &models.Article{
		UserID:           userID,
		Title:            strings.TrimSpace(req.Title),
		SourceParagraphs: req.SourceParagraphs,
		TargetParagraphs: req.TargetParagraphs,
		Status:           "pending",
	}
	if err := s.articles.Create(ctx, article); err != nil {
		return nil, nil, fmt.Errorf("failed to create article: %w", err)
	}

	job := &models.Job{
		UserID:      userID,
		Type:        models.JobTypeArticleAlignment,
		ReferenceID: article.ID,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, nil, fmt.Errorf("failed to create job: %w", err)
	}

	if s.queue == nil {
		if err := s.AlignArticle(ctx, article.ID); err != nil {
			_ = s.jobs.UpdateError(ctx, job.ID, err.Error(), 0)
			_ = s.jobs.UpdateStatus(ctx, job.ID, "failed")
			job.Status = "failed"
			return nil, nil, err
		}
		_ = s.jobs.UpdateStatus(ctx, job.ID, "completed")
		job.Status = "completed"

		aligned, err := s.articles.GetByID(ctx, article.ID)
		if err != nil {
			return nil, nil, err
		}
		return aligned, job, nil
	}

	if err := s.queue.Push(ctx, job); err != nil {
		log.Printf("failed to enqueue article-alignment job %s: %v", job.ID, err)
		_ = s.jobs.UpdateStatus(ctx, job.ID, "failed")
		_ = s.articles.UpdateStatus(ctx, article.ID, "failed")
		return nil, nil, fmt.Errorf("failed to enqueue alignment job: %w", err)
	}
	return article, job, nil
}

// AlignArticle runs the aligner over a stored article and saves the cards.
// An article whose texts pair into zero sentences is still saved; it just
// cannot back a reading session.
func (s *ArticleService) AlignArticle(ctx context.Context, articleID uuid.UUID) error {
	article, err := s.articles.GetByID(ctx, articleID)
	if err != nil {
		return fmt.Errorf("failed to get article: %w", err)
	}

	if err := s.articles.UpdateStatus(ctx, articleID, "processing"); err != nil {
		return fmt.Errorf("failed to mark article processing: %w", err)
	}

	processed := aligner.Align(article.SourceParagraphs, article.TargetParagraphs)
	if processed.SentenceCount > 0 {
		if err := aligner.ValidateCards(processed.Sentences); err != nil {
			return err
		}
	}

	if err := s.articles.SaveAlignment(ctx, articleID, processed); err != nil {
		return fmt.Errorf("failed to save alignment: %w", err)
	}
	return nil
}

// MarkFailed records that alignment gave up on an article.
func (s *ArticleService) MarkFailed(ctx context.Context, articleID uuid.UUID) error {
	return s.articles.UpdateStatus(ctx, articleID, "failed")
}

// Preview aligns without storing anything.
func (s *ArticleService) Preview(req models.CreateArticleRequest) (*models.ProcessedArticle, error) {
	if fields := validateArticle(req, false); len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	return aligner.Align(req.SourceParagraphs, req.TargetParagraphs), nil
}

func (s *ArticleService) Get(ctx context.Context, userID, articleID uuid.UUID) (*models.Article, error) {
	article, err := s.articles.GetByID(ctx, articleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Article not found"}
		}
		return nil, err
	}
	if article.UserID != userID {
		return nil, &NotFoundError{Message: "Article not found"}
	}
	return article, nil
}

// Cards returns the processed article once alignment has finished.
func (s *ArticleService) Cards(ctx context.Context, userID, articleID uuid.UUID) (*models.ProcessedArticle, error) {
	article, err := s.Get(ctx, userID, articleID)
	if err != nil {
		return nil, err
	}
	if article.Processed == nil {
		return nil, &ConflictError{Message: "Article has not been aligned yet"}
	}
	return article.Processed, nil
}

func (s *ArticleService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.ArticleSummary, int, error) {
	return s.articles.ListByUser(ctx, userID, limit, offset)
}

func (s *ArticleService) Delete(ctx context.Context, userID, articleID uuid.UUID) error {
	deleted, err := s.articles.Delete(ctx, articleID, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return &NotFoundError{Message: "Article not found"}
	}
	return nil
}

func validateArticle(req models.CreateArticleRequest, requireTitle bool) map[string]string {
	fields := make(map[string]string)
	if requireTitle && strings.TrimSpace(req.Title) == "" {
		fields["title"] = "Title is required"
	}
	if isBlank(req.SourceParagraphs) {
		fields["source_paragraphs"] = "Source text is required"
	}
	if isBlank(req.TargetParagraphs) {
		fields["target_paragraphs"] = "Translation is required"
	}
	return fields
}

func isBlank(paragraphs []string) bool {
	for _, p := range paragraphs {
		if strings.TrimSpace(p) != "" {
			return false
		}
	}
	return true
}
