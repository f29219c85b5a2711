package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bireader-backend/internal/models"
)

type SessionRepository interface {
	Create(ctx context.Context, s *models.ReadingSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ReadingSession, error)
	ListByUser(ctx context.Context, userID uuid.UUID, articleID *uuid.UUID, limit, offset int) ([]*models.ReadingSession, int, error)
	Update(ctx context.Context, id uuid.UUID, fn func(*models.ReadingSession) error) (*models.ReadingSession, error)
	Stats(ctx context.Context, userID uuid.UUID) (*models.ReadingStats, error)
}

type ArticleReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Article, error)
}

type SettingsReader interface {
	GetSettings(ctx context.Context, userID uuid.UUID) (*models.UserSettings, error)
}

// ReadingService is the durable record behind the session engine. Every
// method is scoped to the calling user; other users' sessions are reported
// as not found.
type ReadingService struct {
	sessions SessionRepository
	articles ArticleReader
	settings SettingsReader
	events   Publisher
	now      func() time.Time
}

func NewReadingService(sessions SessionRepository, articles ArticleReader, settings SettingsReader, events Publisher) *ReadingService {
	if events == nil {
		events = nopPublisher{}
	}
	return &ReadingService{
		sessions: sessions,
		articles: articles,
		settings: settings,
		events:   events,
		now:      time.Now,
	}
}

func (s *ReadingService) CreateSession(ctx context.Context, userID uuid.UUID, req models.CreateSessionRequest) (*models.ReadingSession, error) {
	if req.ArticleID == uuid.Nil {
		return nil, &ValidationError{Fields: map[string]string{"articleId": "Article ID is required"}}
	}

	article, err := s.articles.GetByID(ctx, req.ArticleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Article not found"}
		}
		return nil, err
	}
	if article.UserID != userID {
		return nil, &NotFoundError{Message: "Article not found"}
	}
	if article.Status != "completed" || article.Processed == nil {
		return nil, &ConflictError{Message: "Article has not been aligned yet"}
	}

	count := article.Processed.SentenceCount
	if count == 0 {
		return nil, &InputError{Message: "Article has no aligned sentences"}
	}
	if req.TotalCards != 0 && req.TotalCards != count {
		return nil, &ValidationError{Fields: map[string]string{"totalCards": "Does not match the article's sentence count"}}
	}

	settings := s.defaultSettings(ctx, userID)
	if req.Settings != nil {
		settings = *req.Settings
	}
	if fields := settings.Validate(); fields != nil {
		return nil, &ValidationError{Fields: fields}
	}

	session := models.NewReadingSession(userID, article.ID, count, settings, s.now())
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *ReadingService) GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.ReadingSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if session.UserID != userID {
		return nil, sessionNotFound()
	}
	return session, nil
}

func (s *ReadingService) ListSessions(ctx context.Context, userID uuid.UUID, articleID *uuid.UUID, limit, offset int) ([]*models.ReadingSession, int, error) {
	return s.sessions.ListByUser(ctx, userID, articleID, limit, offset)
}

func (s *ReadingService) Stats(ctx context.Context, userID uuid.UUID) (*models.ReadingStats, error) {
	return s.sessions.Stats(ctx, userID)
}

// PatchSession merges settings, position and telemetry. Settings are
// validated before the row is touched.
func (s *ReadingService) PatchSession(ctx context.Context, userID, sessionID uuid.UUID, patch models.SessionPatch) (*models.ReadingSession, error) {
	if patch.IsEmpty() {
		return nil, &ValidationError{Fields: map[string]string{"patch": "No fields to update"}}
	}
	if fields := patch.SettingsPatch.Validate(); fields != nil {
		return nil, &ValidationError{Fields: fields}
	}

	session, err := s.sessions.Update(ctx, sessionID, func(rs *models.ReadingSession) error {
		if rs.UserID != userID {
			return sessionNotFound()
		}
		return asValidation(rs.ApplyPatch(patch, s.now()))
	})
	if err != nil {
		return nil, mapNotFound(err)
	}
	return session, nil
}

// RecordCardCompletion applies one completed card. Resending a completion
// for an index is accepted and overwrites that card's telemetry.
func (s *ReadingService) RecordCardCompletion(ctx context.Context, userID, sessionID uuid.UUID, c models.CardCompletion) (*models.CompletionResult, error) {
	var wasCompleted bool
	session, err := s.sessions.Update(ctx, sessionID, func(rs *models.ReadingSession) error {
		if rs.UserID != userID {
			return sessionNotFound()
		}
		wasCompleted = rs.IsCompleted()
		return asValidation(rs.ApplyCompletion(c, s.now()))
	})
	if err != nil {
		return nil, mapNotFound(err)
	}

	result := session.CompletionResult()

	s.events.PublishUpdate(ctx, userID, models.WSMessage{
		Type: "session_progress",
		Payload: models.SessionProgressEvent{
			SessionID: session.ID,
			ArticleID: session.ArticleID,
			CardIndex: c.CardIndex,
			Progress:  result.Progress,
		},
	})
	if result.IsCompleted && !wasCompleted {
		s.events.PublishUpdate(ctx, userID, models.WSMessage{
			Type: "session_completed",
			Payload: models.SessionProgressEvent{
				SessionID: session.ID,
				ArticleID: session.ArticleID,
				CardIndex: c.CardIndex,
				Progress:  result.Progress,
			},
		})
		log.Printf("Reading session %s completed by user %s", session.ID, userID)
	}

	return result, nil
}

func (s *ReadingService) defaultSettings(ctx context.Context, userID uuid.UUID) models.ReadingSettings {
	if s.settings == nil {
		return models.DefaultReadingSettings()
	}
	us, err := s.settings.GetSettings(ctx, userID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			log.Printf("failed to load reading settings for user %s: %v", userID, err)
		}
		return models.DefaultReadingSettings()
	}
	return us.ReadingSettings()
}

func sessionNotFound() error {
	return &NotFoundError{Message: "Reading session not found"}
}

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sessionNotFound()
	}
	return err
}

// asValidation converts model validation failures into a ValidationError.
func asValidation(err error) error {
	if err == nil {
		return nil
	}
	var fields models.FieldErrors
	if errors.As(err, &fields) {
		return &ValidationError{Fields: fields}
	}
	switch {
	case errors.Is(err, models.ErrCardOutOfRange):
		return &ValidationError{Fields: map[string]string{"cardIndex": err.Error()}}
	case errors.Is(err, models.ErrNegativeTelemetry):
		return &ValidationError{Fields: map[string]string{"timeSpent": err.Error()}}
	}
	return err
}
