package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	JobTypeArticleAlignment = "article-alignment"
	ArticleAlignmentQueue   = "queue:article-alignment"
)

type Job struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Type         string          `json:"type"` // "article-alignment"
	ReferenceID  uuid.UUID       `json:"reference_id"`
	ConfigJSON   json.RawMessage `json:"config"`
	Status       string          `json:"status"` // "pending" | "processing" | "completed" | "failed"
	RetryCount   int             `json:"retry_count"`
	MaxRetries   int             `json:"max_retries"`
	ErrorMessage *string         `json:"error_message"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at"`
}

// UserSettings holds the reading defaults applied to new sessions.
type UserSettings struct {
	UserID          uuid.UUID `json:"user_id"`
	AutoPlayTTS     bool      `json:"auto_play_tts"`
	TTSSpeed        float64   `json:"tts_speed"`
	ShowTranslation bool      `json:"show_translation"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (s *UserSettings) ReadingSettings() ReadingSettings {
	return ReadingSettings{
		AutoPlayTTS:     s.AutoPlayTTS,
		TTSSpeed:        s.TTSSpeed,
		ShowTranslation: s.ShowTranslation,
	}
}

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type StatusUpdate struct {
	JobID    uuid.UUID `json:"job_id"`
	Step     int       `json:"step"`
	StepName string    `json:"step_name"`
}

type CompletedEvent struct {
	JobID      uuid.UUID `json:"job_id"`
	ResultID   uuid.UUID `json:"result_id"`
	ResultType string    `json:"result_type"`
}

type ErrorEvent struct {
	JobID        uuid.UUID `json:"job_id"`
	ErrorCode    string    `json:"error_code"`
	ErrorMessage string    `json:"error_message"`
}

type SessionProgressEvent struct {
	SessionID uuid.UUID `json:"sessionId"`
	ArticleID uuid.UUID `json:"articleId"`
	CardIndex int       `json:"cardIndex"`
	Progress  Progress  `json:"progress"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
