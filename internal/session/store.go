package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"bireader-backend/internal/models"
)

// Store is the durable, authoritative record of reading sessions. Updates
// are expected to be atomic per session id.
type Store interface {
	Create(ctx context.Context, req models.CreateSessionRequest) (*models.ReadingSession, error)
	Fetch(ctx context.Context, sessionID uuid.UUID) (*models.ReadingSession, error)
	Patch(ctx context.Context, sessionID uuid.UUID, patch models.SessionPatch) (*models.ReadingSession, error)
	RecordCardCompletion(ctx context.Context, sessionID uuid.UUID, c models.CardCompletion) (*models.CompletionResult, error)
}

// MemoryStore keeps sessions in process. It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.ReadingSession
	clock    Clock
	userID   uuid.UUID
}

func NewMemoryStore(clock Clock) *MemoryStore {
	if clock == nil {
		clock = SystemClock
	}
	return &MemoryStore{
		sessions: make(map[uuid.UUID]*models.ReadingSession),
		clock:    clock,
	}
}

func (m *MemoryStore) Create(ctx context.Context, req models.CreateSessionRequest) (*models.ReadingSession, error) {
	if req.TotalCards <= 0 {
		return nil, fmt.Errorf("session: total cards must be positive, got %d", req.TotalCards)
	}
	settings := models.DefaultReadingSettings()
	if req.Settings != nil {
		settings = *req.Settings
	}
	if fields := settings.Validate(); fields != nil {
		return nil, fields
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := models.NewReadingSession(m.userID, req.ArticleID, req.TotalCards, settings, m.clock.Now())
	m.sessions[s.ID] = s
	return s.Clone(), nil
}

func (m *MemoryStore) Fetch(ctx context.Context, sessionID uuid.UUID) (*models.ReadingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Patch(ctx context.Context, sessionID uuid.UUID, patch models.SessionPatch) (*models.ReadingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if err := s.ApplyPatch(patch, m.clock.Now()); err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

func (m *MemoryStore) RecordCardCompletion(ctx context.Context, sessionID uuid.UUID, c models.CardCompletion) (*models.CompletionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if err := s.ApplyCompletion(c, m.clock.Now()); err != nil {
		return nil, err
	}
	return s.Clone().CompletionResult(), nil
}

// Clock supplies the current time. Tests inject a fake to control elapsed
// time per card.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

var SystemClock Clock = ClockFunc(time.Now)
