// Package aligner turns a source-language text and its translation into an
// ordered sequence of sentence cards.
package aligner

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"bireader-backend/internal/models"
)

const (
	SourceBoundaries = "。！？；"
	TargetBoundaries = ".!?;"

	secondsPerSentence = 2.5
)

var ErrInvalidCards = errors.New("aligner: invalid card sequence")

// SplitIntoSentences splits text on any rune in boundaries. Segments are
// trimmed and empty segments are dropped.
func SplitIntoSentences(text, boundaries string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return strings.ContainsRune(boundaries, r)
	})

	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// Align pairs source and target sentences by position. Surplus sentences on
// the longer side are dropped.
func Align(sourceParagraphs, targetParagraphs []string) *models.ProcessedArticle {
	source := SplitIntoSentences(strings.Join(sourceParagraphs, "\n"), SourceBoundaries)
	target := SplitIntoSentences(strings.Join(targetParagraphs, "\n"), TargetBoundaries)

	n := min(len(source), len(target))
	cards := make([]models.SentenceCard, n)
	for i := 0; i < n; i++ {
		cards[i] = models.SentenceCard{
			Chinese:   source[i],
			English:   target[i],
			CardIndex: i,
		}
	}

	return &models.ProcessedArticle{
		Sentences:        cards,
		SentenceCount:    n,
		Difficulty:       ClassifyDifficulty(cards),
		EstimatedMinutes: EstimateMinutes(n),
	}
}

// EstimateMinutes returns ceil(count * 2.5s / 60).
func EstimateMinutes(sentenceCount int) int {
	return int(math.Ceil(float64(sentenceCount) * secondsPerSentence / 60))
}

// ValidateCards checks that cards is non-empty, every card has text on both
// sides, and each CardIndex matches its position.
func ValidateCards(cards []models.SentenceCard) error {
	if len(cards) == 0 {
		return fmt.Errorf("%w: no cards", ErrInvalidCards)
	}
	for i, c := range cards {
		if c.CardIndex != i {
			return fmt.Errorf("%w: card at position %d has index %d", ErrInvalidCards, i, c.CardIndex)
		}
		if strings.TrimSpace(c.Chinese) == "" || strings.TrimSpace(c.English) == "" {
			return fmt.Errorf("%w: card %d has empty text", ErrInvalidCards, i)
		}
	}
	return nil
}
