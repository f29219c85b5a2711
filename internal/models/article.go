package models

import (
	"time"

	"github.com/google/uuid"
)

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// SentenceCard is one aligned source/target sentence pair.
type SentenceCard struct {
	Chinese   string `json:"chinese"`
	English   string `json:"english"`
	CardIndex int    `json:"cardIndex"`
}

// ProcessedArticle is the output of alignment. SentenceCount always equals
// len(Sentences).
type ProcessedArticle struct {
	Sentences        []SentenceCard `json:"sentences"`
	SentenceCount    int            `json:"sentenceCount"`
	Difficulty       Difficulty     `json:"difficulty"`
	EstimatedMinutes int            `json:"estimatedMinutes"`
}

type Article struct {
	ID               uuid.UUID         `json:"id"`
	UserID           uuid.UUID         `json:"user_id"`
	Title            string            `json:"title"`
	SourceParagraphs []string          `json:"source_paragraphs"`
	TargetParagraphs []string          `json:"target_paragraphs"`
	Status           string            `json:"status"` // "pending" | "processing" | "completed" | "failed"
	Processed        *ProcessedArticle `json:"processed,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	AlignedAt        *time.Time        `json:"aligned_at"`
}

// ArticleSummary is the list view of an article, without paragraphs or cards.
type ArticleSummary struct {
	ID               uuid.UUID  `json:"id"`
	Title            string     `json:"title"`
	Status           string     `json:"status"`
	SentenceCount    int        `json:"sentence_count"`
	Difficulty       Difficulty `json:"difficulty"`
	EstimatedMinutes int        `json:"estimated_minutes"`
	CreatedAt        time.Time  `json:"created_at"`
}

type CreateArticleRequest struct {
	Title            string   `json:"title"`
	SourceParagraphs []string `json:"source_paragraphs"`
	TargetParagraphs []string `json:"target_paragraphs"`
}
