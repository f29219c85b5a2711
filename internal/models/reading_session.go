package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MinTTSSpeed = 0.25
	MaxTTSSpeed = 4.0
)

var (
	ErrCardOutOfRange    = errors.New("card index out of range")
	ErrNegativeTelemetry = errors.New("time spent and audio replay count must not be negative")
)

// IndexSet is a set of card indices. It marshals as a sorted JSON array.
type IndexSet map[int]struct{}

func NewIndexSet(indices ...int) IndexSet {
	s := make(IndexSet, len(indices))
	for _, i := range indices {
		s[i] = struct{}{}
	}
	return s
}

// Add inserts i and reports whether it was newly added.
func (s *IndexSet) Add(i int) bool {
	if *s == nil {
		*s = IndexSet{}
	}
	if _, ok := (*s)[i]; ok {
		return false
	}
	(*s)[i] = struct{}{}
	return true
}

func (s IndexSet) Has(i int) bool {
	_, ok := s[i]
	return ok
}

func (s IndexSet) Len() int { return len(s) }

func (s IndexSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for i := range s {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func (s IndexSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *IndexSet) UnmarshalJSON(data []byte) error {
	var indices []int
	if err := json.Unmarshal(data, &indices); err != nil {
		return err
	}
	*s = NewIndexSet(indices...)
	return nil
}

type ReadingSettings struct {
	AutoPlayTTS     bool    `json:"autoPlayTTS"`
	TTSSpeed        float64 `json:"ttsSpeed"`
	ShowTranslation bool    `json:"showTranslation"`
}

func DefaultReadingSettings() ReadingSettings {
	return ReadingSettings{AutoPlayTTS: true, TTSSpeed: 1.0, ShowTranslation: false}
}

func (s ReadingSettings) Validate() FieldErrors {
	return validateSpeed(s.TTSSpeed)
}

// SettingsPatch carries any subset of the reading settings.
type SettingsPatch struct {
	AutoPlayTTS     *bool    `json:"autoPlayTTS,omitempty"`
	TTSSpeed        *float64 `json:"ttsSpeed,omitempty"`
	ShowTranslation *bool    `json:"showTranslation,omitempty"`
}

func (p SettingsPatch) IsEmpty() bool {
	return p.AutoPlayTTS == nil && p.TTSSpeed == nil && p.ShowTranslation == nil
}

func (p SettingsPatch) Validate() FieldErrors {
	if p.TTSSpeed == nil {
		return nil
	}
	return validateSpeed(*p.TTSSpeed)
}

func (p SettingsPatch) applyTo(s *ReadingSettings) {
	if p.AutoPlayTTS != nil {
		s.AutoPlayTTS = *p.AutoPlayTTS
	}
	if p.TTSSpeed != nil {
		s.TTSSpeed = *p.TTSSpeed
	}
	if p.ShowTranslation != nil {
		s.ShowTranslation = *p.ShowTranslation
	}
}

func validateSpeed(v float64) FieldErrors {
	// Written as a negated range test so NaN is rejected too.
	if !(v >= MinTTSSpeed && v <= MaxTTSSpeed) {
		return FieldErrors{"ttsSpeed": fmt.Sprintf("must be between %.2f and %.1f", MinTTSSpeed, MaxTTSSpeed)}
	}
	return nil
}

// FieldErrors maps a field name to a validation message.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return "invalid " + strings.Join(parts, "; ")
}

// SessionPatch merges settings, position and per-card telemetry into a
// session. Telemetry maps are merged key by key, last write wins.
type SessionPatch struct {
	SettingsPatch
	CurrentCardIndex *int        `json:"currentCardIndex,omitempty"`
	TimePerCard      map[int]int `json:"timePerCard,omitempty"`
	AudioReplays     map[int]int `json:"audioReplays,omitempty"`
}

func (p SessionPatch) IsEmpty() bool {
	return p.SettingsPatch.IsEmpty() && p.CurrentCardIndex == nil && len(p.TimePerCard) == 0 && len(p.AudioReplays) == 0
}

func (p SessionPatch) Validate(totalCards int) FieldErrors {
	fields := FieldErrors{}
	if p.IsEmpty() {
		fields["patch"] = "no fields to update"
		return fields
	}
	for k, v := range p.SettingsPatch.Validate() {
		fields[k] = v
	}
	if p.CurrentCardIndex != nil && (*p.CurrentCardIndex < 0 || *p.CurrentCardIndex >= totalCards) {
		fields["currentCardIndex"] = "out of range"
	}
	for idx, v := range p.TimePerCard {
		if idx < 0 || idx >= totalCards || v < 0 {
			fields["timePerCard"] = fmt.Sprintf("invalid entry for card %d", idx)
			break
		}
	}
	for idx, v := range p.AudioReplays {
		if idx < 0 || idx >= totalCards || v < 0 {
			fields["audioReplays"] = fmt.Sprintf("invalid entry for card %d", idx)
			break
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// CardCompletion is the telemetry recorded when a card is marked done.
type CardCompletion struct {
	CardIndex        int  `json:"cardIndex"`
	TimeSpent        int  `json:"timeSpent"`
	WasFlipped       bool `json:"wasFlipped"`
	AudioReplayCount int  `json:"audioReplayCount"`
}

type Progress struct {
	CompletedCards int `json:"completedCards"`
	TotalCards     int `json:"totalCards"`
	Percentage     int `json:"percentage"`
}

type CompletionResult struct {
	Session       *ReadingSession `json:"session"`
	Progress      Progress        `json:"progress"`
	NextCardIndex *int            `json:"nextCardIndex"`
	IsCompleted   bool            `json:"isCompleted"`
}

type CreateSessionRequest struct {
	ArticleID  uuid.UUID        `json:"articleId"`
	TotalCards int              `json:"totalCards,omitempty"`
	Settings   *ReadingSettings `json:"settings,omitempty"`
}

// ReadingSession is one learner's pass through an article's cards.
// CompletedAt is set exactly when every card index is in CompletedCards.
type ReadingSession struct {
	ID               uuid.UUID   `json:"id"`
	UserID           uuid.UUID   `json:"userId"`
	ArticleID        uuid.UUID   `json:"articleId"`
	TotalCards       int         `json:"totalCards"`
	CurrentCardIndex int         `json:"currentCardIndex"`
	CompletedCards   IndexSet    `json:"completedCards"`
	CardsFlipped     IndexSet    `json:"cardsFlipped"`
	AudioReplays     map[int]int `json:"audioReplays"`
	TimePerCard      map[int]int `json:"timePerCard"`
	ReadingSettings
	StartedAt    time.Time  `json:"startedAt"`
	LastActiveAt time.Time  `json:"lastActiveAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

func NewReadingSession(userID, articleID uuid.UUID, totalCards int, settings ReadingSettings, now time.Time) *ReadingSession {
	return &ReadingSession{
		ID:              uuid.New(),
		UserID:          userID,
		ArticleID:       articleID,
		TotalCards:      totalCards,
		CompletedCards:  IndexSet{},
		CardsFlipped:    IndexSet{},
		AudioReplays:    map[int]int{},
		TimePerCard:     map[int]int{},
		ReadingSettings: settings,
		StartedAt:       now,
		LastActiveAt:    now,
	}
}

func (s *ReadingSession) IsCompleted() bool {
	return s.CompletedAt != nil
}

func (s *ReadingSession) Progress() Progress {
	p := Progress{CompletedCards: s.CompletedCards.Len(), TotalCards: s.TotalCards}
	if s.TotalCards > 0 {
		p.Percentage = int(math.Round(float64(p.CompletedCards) * 100 / float64(s.TotalCards)))
	}
	return p
}

// ApplyCompletion records a finished card. Completing an index twice keeps
// the set size but overwrites that card's time and replay count. When the set
// becomes full the session is completed; otherwise the position moves to the
// card after the completed one.
func (s *ReadingSession) ApplyCompletion(c CardCompletion, now time.Time) error {
	if c.CardIndex < 0 || c.CardIndex >= s.TotalCards {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrCardOutOfRange, c.CardIndex, s.TotalCards)
	}
	if c.TimeSpent < 0 || c.AudioReplayCount < 0 {
		return ErrNegativeTelemetry
	}
	s.ensureCollections()

	s.CompletedCards.Add(c.CardIndex)
	if c.WasFlipped {
		s.CardsFlipped.Add(c.CardIndex)
	}
	s.TimePerCard[c.CardIndex] = c.TimeSpent
	s.AudioReplays[c.CardIndex] = c.AudioReplayCount
	s.LastActiveAt = now

	if s.CompletedCards.Len() == s.TotalCards {
		if s.CompletedAt == nil {
			completedAt := now
			s.CompletedAt = &completedAt
		}
		return nil
	}

	next := c.CardIndex + 1
	if next >= s.TotalCards {
		next = s.TotalCards - 1
	}
	s.CurrentCardIndex = next
	return nil
}

// ApplyPatch validates and merges p. Nothing is applied when validation fails.
func (s *ReadingSession) ApplyPatch(p SessionPatch, now time.Time) error {
	if fields := p.Validate(s.TotalCards); fields != nil {
		return fields
	}
	s.ensureCollections()

	p.SettingsPatch.applyTo(&s.ReadingSettings)
	if p.CurrentCardIndex != nil {
		s.CurrentCardIndex = *p.CurrentCardIndex
	}
	for idx, v := range p.TimePerCard {
		s.TimePerCard[idx] = v
	}
	for idx, v := range p.AudioReplays {
		s.AudioReplays[idx] = v
	}
	s.LastActiveAt = now
	return nil
}

// CompletionResult builds the response for a just-applied completion.
func (s *ReadingSession) CompletionResult() *CompletionResult {
	res := &CompletionResult{
		Session:     s,
		Progress:    s.Progress(),
		IsCompleted: s.IsCompleted(),
	}
	if !res.IsCompleted {
		next := s.CurrentCardIndex
		res.NextCardIndex = &next
	}
	return res
}

// Clone returns a deep copy.
func (s *ReadingSession) Clone() *ReadingSession {
	c := *s
	c.CompletedCards = NewIndexSet(s.CompletedCards.Sorted()...)
	c.CardsFlipped = NewIndexSet(s.CardsFlipped.Sorted()...)
	c.AudioReplays = make(map[int]int, len(s.AudioReplays))
	for k, v := range s.AudioReplays {
		c.AudioReplays[k] = v
	}
	c.TimePerCard = make(map[int]int, len(s.TimePerCard))
	for k, v := range s.TimePerCard {
		c.TimePerCard[k] = v
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func (s *ReadingSession) ensureCollections() {
	if s.CompletedCards == nil {
		s.CompletedCards = IndexSet{}
	}
	if s.CardsFlipped == nil {
		s.CardsFlipped = IndexSet{}
	}
	if s.AudioReplays == nil {
		s.AudioReplays = map[int]int{}
	}
	if s.TimePerCard == nil {
		s.TimePerCard = map[int]int{}
	}
}

type ReadingStats struct {
	TotalSessions     int `json:"total_sessions"`
	CompletedSessions int `json:"completed_sessions"`
	CompletedCards    int `json:"completed_cards"`
	SecondsRead       int `json:"seconds_read"`
}
