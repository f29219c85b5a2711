package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"bireader-backend/internal/models"
	"bireader-backend/internal/services"
)

const maxAttempts = 3

// Aligner runs and fails article alignments. *services.ArticleService
// satisfies it.
type Aligner interface {
	AlignArticle(ctx context.Context, articleID uuid.UUID) error
	MarkFailed(ctx context.Context, articleID uuid.UUID) error
}

type JobStore interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateError(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error
}

type Pool struct {
	redis       *redis.Client
	aligner     Aligner
	jobs        JobStore
	events      services.Publisher
	workerCount int
	stopChan    chan struct{}

	// requeue schedules a failed job for another attempt after delay.
	requeue func(job *models.Job, delay time.Duration)
}

func NewPool(
	redisClient *redis.Client,
	aligner Aligner,
	jobs JobStore,
	events services.Publisher,
	workerCount int,
) *Pool {
	p := &Pool{
		redis:       redisClient,
		aligner:     aligner,
		jobs:        jobs,
		events:      events,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
	p.requeue = p.redisRequeue
	return p
}

func (p *Pool) Start() {
	queues := []string{models.ArticleAlignmentQueue}

	for i := 0; i < p.workerCount; i++ {
		go p.worker(i, queues)
	}

	log.Printf("Started %d worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int, queues []string) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, queues...).Result()
		if err != nil {
			continue // Timeout or error, retry
		}

		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Worker %d: failed to parse job: %v", id, err)
			continue
		}

		lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		log.Printf("Worker %d: processing job %s (type: %s)", id, job.ID, job.Type)
		p.process(ctx, &job)

		p.redis.Del(ctx, lockKey)
	}
}

// process runs one job to completion or schedules its retry.
func (p *Pool) process(ctx context.Context, job *models.Job) {
	p.jobs.UpdateStatus(ctx, job.ID, "processing")

	p.events.PublishUpdate(ctx, job.UserID, models.WSMessage{
		Type: "status_update",
		Payload: models.StatusUpdate{
			JobID:    job.ID,
			Step:     1,
			StepName: "Aligning sentences",
		},
	})

	var processErr error
	switch job.Type {
	case models.JobTypeArticleAlignment:
		processErr = p.aligner.AlignArticle(ctx, job.ReferenceID)
	default:
		processErr = fmt.Errorf("unknown job type: %s", job.Type)
	}

	if processErr != nil {
		p.handleFailure(ctx, job, processErr)
		return
	}
	p.handleSuccess(ctx, job)
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job) {
	p.jobs.UpdateStatus(ctx, job.ID, "completed")

	p.events.PublishUpdate(ctx, job.UserID, models.WSMessage{
		Type: "completed",
		Payload: models.CompletedEvent{
			JobID:      job.ID,
			ResultID:   job.ReferenceID,
			ResultType: "article",
		},
	})

	log.Printf("Job %s completed successfully", job.ID)
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()

	limit := job.MaxRetries
	if limit <= 0 {
		limit = maxAttempts
	}

	if job.RetryCount < limit {
		log.Printf("Job %s failed (attempt %d): %s, retrying", job.ID, job.RetryCount, errMsg)
		p.jobs.UpdateStatus(ctx, job.ID, "pending")
		p.jobs.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

		backoff := time.Duration(1<<uint(job.RetryCount)) * time.Second
		p.requeue(job, backoff)
		return
	}

	log.Printf("Job %s failed permanently: %s", job.ID, errMsg)
	p.jobs.UpdateStatus(ctx, job.ID, "failed")
	p.jobs.UpdateError(ctx, job.ID, errMsg, job.RetryCount)
	if job.Type == models.JobTypeArticleAlignment {
		if err := p.aligner.MarkFailed(ctx, job.ReferenceID); err != nil {
			log.Printf("failed to mark article %s failed: %v", job.ReferenceID, err)
		}
	}

	p.events.PublishUpdate(ctx, job.UserID, models.WSMessage{
		Type: "error",
		Payload: models.ErrorEvent{
			JobID:        job.ID,
			ErrorCode:    "JOB_FAILED",
			ErrorMessage: errMsg,
		},
	})
}

func (p *Pool) redisRequeue(job *models.Job, delay time.Duration) {
	jobBytes, _ := json.Marshal(job)
	time.AfterFunc(delay, func() {
		p.redis.LPush(context.Background(), services.JobQueueName(job.Type), string(jobBytes))
	})
}
