package models

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestSession(total int) *ReadingSession {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return NewReadingSession(uuid.New(), uuid.New(), total, DefaultReadingSettings(), start)
}

func TestApplyCompletion_AdvancesAndCompletes(t *testing.T) {
	s := newTestSession(2)
	now := s.StartedAt.Add(5 * time.Second)

	if err := s.ApplyCompletion(CardCompletion{CardIndex: 0, TimeSpent: 5}, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.CurrentCardIndex != 1 || s.IsCompleted() {
		t.Fatalf("expected to advance to card 1, got index %d completed=%v", s.CurrentCardIndex, s.IsCompleted())
	}

	if err := s.ApplyCompletion(CardCompletion{CardIndex: 1, TimeSpent: 3, WasFlipped: true}, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.IsCompleted() || !s.CompletedAt.Equal(now) {
		t.Fatalf("expected session completed at %v, got %v", now, s.CompletedAt)
	}
	if !s.CardsFlipped.Has(1) || s.CardsFlipped.Has(0) {
		t.Fatalf("unexpected flipped set: %v", s.CardsFlipped.Sorted())
	}
	if p := s.Progress(); p.Percentage != 100 || p.CompletedCards != 2 {
		t.Fatalf("unexpected progress: %+v", p)
	}
}

func TestApplyCompletion_RepeatOverwritesTelemetry(t *testing.T) {
	s := newTestSession(3)

	s.ApplyCompletion(CardCompletion{CardIndex: 0, TimeSpent: 4, AudioReplayCount: 2}, s.StartedAt)
	s.ApplyCompletion(CardCompletion{CardIndex: 0, TimeSpent: 9, AudioReplayCount: 0}, s.StartedAt)

	if s.CompletedCards.Len() != 1 {
		t.Fatalf("expected 1 completed card, got %d", s.CompletedCards.Len())
	}
	if s.TimePerCard[0] != 9 || s.AudioReplays[0] != 0 {
		t.Fatalf("expected last write to win, got time=%d replays=%d", s.TimePerCard[0], s.AudioReplays[0])
	}
}

func TestApplyCompletion_KeepsCompletedAtOnResend(t *testing.T) {
	s := newTestSession(1)
	first := s.StartedAt.Add(time.Second)

	s.ApplyCompletion(CardCompletion{CardIndex: 0, TimeSpent: 1}, first)
	s.ApplyCompletion(CardCompletion{CardIndex: 0, TimeSpent: 2}, first.Add(time.Minute))

	if !s.CompletedAt.Equal(first) {
		t.Fatalf("expected completedAt to stay %v, got %v", first, s.CompletedAt)
	}
}

func TestApplyCompletion_RejectsBadInput(t *testing.T) {
	s := newTestSession(2)

	if err := s.ApplyCompletion(CardCompletion{CardIndex: 2}, s.StartedAt); !errors.Is(err, ErrCardOutOfRange) {
		t.Fatalf("expected ErrCardOutOfRange, got %v", err)
	}
	if err := s.ApplyCompletion(CardCompletion{CardIndex: 0, TimeSpent: -1}, s.StartedAt); !errors.Is(err, ErrNegativeTelemetry) {
		t.Fatalf("expected ErrNegativeTelemetry, got %v", err)
	}
	if s.CompletedCards.Len() != 0 {
		t.Fatalf("rejected completion must not change the session")
	}
}

func TestApplyPatch(t *testing.T) {
	speed := 4.0
	tooFast := 4.01
	nan := math.NaN()
	index := 2
	badIndex := 5

	tests := []struct {
		name  string
		patch SessionPatch
		valid bool
	}{
		{"max speed", SessionPatch{SettingsPatch: SettingsPatch{TTSSpeed: &speed}}, true},
		{"speed above max", SessionPatch{SettingsPatch: SettingsPatch{TTSSpeed: &tooFast}}, false},
		{"nan speed", SessionPatch{SettingsPatch: SettingsPatch{TTSSpeed: &nan}}, false},
		{"empty patch", SessionPatch{}, false},
		{"position", SessionPatch{CurrentCardIndex: &index}, true},
		{"position out of range", SessionPatch{CurrentCardIndex: &badIndex}, false},
		{"telemetry", SessionPatch{TimePerCard: map[int]int{1: 7}, AudioReplays: map[int]int{1: 2}}, true},
		{"negative telemetry", SessionPatch{TimePerCard: map[int]int{1: -7}}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestSession(3)
			before := s.TTSSpeed

			err := s.ApplyPatch(tc.patch, s.StartedAt.Add(time.Minute))
			if tc.valid && err != nil {
				t.Fatalf("expected patch to apply, got %v", err)
			}
			if !tc.valid {
				var fields FieldErrors
				if !errors.As(err, &fields) {
					t.Fatalf("expected FieldErrors, got %v", err)
				}
				if s.TTSSpeed != before || !s.LastActiveAt.Equal(s.StartedAt) {
					t.Fatalf("invalid patch must not change the session")
				}
			}
		})
	}
}

func TestReadingSession_JSONShape(t *testing.T) {
	s := newTestSession(3)
	s.ApplyCompletion(CardCompletion{CardIndex: 0, TimeSpent: 4, WasFlipped: true, AudioReplayCount: 1}, s.StartedAt)

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"totalCards", "currentCardIndex", "completedCards", "cardsFlipped", "audioReplays", "timePerCard", "autoPlayTTS", "ttsSpeed", "showTranslation", "startedAt", "lastActiveAt"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("expected key %q in session JSON", key)
		}
	}
	if _, ok := raw["completedAt"]; ok {
		t.Errorf("completedAt must be absent while the session is active")
	}

	var decoded ReadingSession
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !decoded.CompletedCards.Has(0) || decoded.TimePerCard[0] != 4 {
		t.Fatalf("unexpected decoded session: %+v", decoded)
	}
}
