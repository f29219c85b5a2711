package aligner

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"bireader-backend/internal/models"
)

func TestSplitIntoSentences(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		boundaries string
		expected   []string
	}{
		{"source boundaries", "A。B！C？", SourceBoundaries, []string{"A", "B", "C"}},
		{"consecutive boundaries", "你好。。  ！再见；", SourceBoundaries, []string{"你好", "再见"}},
		{"target boundaries", "Hello. World!  ; Bye", TargetBoundaries, []string{"Hello", "World", "Bye"}},
		{"no boundary", "  just one sentence  ", TargetBoundaries, []string{"just one sentence"}},
		{"only boundaries", "。！？", SourceBoundaries, []string{}},
		{"empty", "", TargetBoundaries, []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := SplitIntoSentences(tc.text, tc.boundaries)
			if !reflect.DeepEqual(result, tc.expected) {
				t.Errorf("Expected %q, got %q", tc.expected, result)
			}
		})
	}
}

func TestAlign_CardIndexMatchesPosition(t *testing.T) {
	article := Align(
		[]string{"今天天气很好。我们去公园吧！", "你想去吗？"},
		[]string{"The weather is nice today. Let's go to the park!", "Do you want to go?"},
	)

	if article.SentenceCount != 3 {
		t.Fatalf("expected 3 sentences, got %d", article.SentenceCount)
	}
	if len(article.Sentences) != article.SentenceCount {
		t.Fatalf("sentence count %d does not match %d cards", article.SentenceCount, len(article.Sentences))
	}
	for i, c := range article.Sentences {
		if c.CardIndex != i {
			t.Fatalf("card %d has index %d", i, c.CardIndex)
		}
	}
	if article.Sentences[2].Chinese != "你想去吗" || article.Sentences[2].English != "Do you want to go" {
		t.Fatalf("unexpected last card: %+v", article.Sentences[2])
	}
	if err := ValidateCards(article.Sentences); err != nil {
		t.Fatalf("expected aligned cards to validate, got %v", err)
	}
}

func TestAlign_TruncatesToShorterSide(t *testing.T) {
	article := Align(
		[]string{"一。二。三。四。五。"},
		[]string{"One. Two. Three."},
	)

	if article.SentenceCount != 3 {
		t.Fatalf("expected 3 sentences, got %d", article.SentenceCount)
	}
	want := []models.SentenceCard{
		{Chinese: "一", English: "One", CardIndex: 0},
		{Chinese: "二", English: "Two", CardIndex: 1},
		{Chinese: "三", English: "Three", CardIndex: 2},
	}
	if !reflect.DeepEqual(article.Sentences, want) {
		t.Fatalf("expected %+v, got %+v", want, article.Sentences)
	}
}

func TestAlign_EmptySideYieldsZeroSentences(t *testing.T) {
	article := Align([]string{"你好。"}, []string{"   "})

	if article.SentenceCount != 0 || len(article.Sentences) != 0 {
		t.Fatalf("expected empty article, got %+v", article)
	}
	if article.Difficulty != models.DifficultyBeginner {
		t.Fatalf("expected beginner for empty article, got %s", article.Difficulty)
	}
	if article.EstimatedMinutes != 0 {
		t.Fatalf("expected 0 minutes, got %d", article.EstimatedMinutes)
	}
}

func TestEstimateMinutes(t *testing.T) {
	tests := []struct {
		count    int
		expected int
	}{
		{0, 0},
		{1, 1},
		{24, 1},
		{25, 2},
		{48, 2},
		{49, 3},
	}

	for _, tc := range tests {
		if got := EstimateMinutes(tc.count); got != tc.expected {
			t.Errorf("EstimateMinutes(%d): expected %d, got %d", tc.count, tc.expected, got)
		}
	}
}

func TestClassifyDifficulty(t *testing.T) {
	repeat := func(zh, en string, n int) []models.SentenceCard {
		cards := make([]models.SentenceCard, n)
		for i := range cards {
			cards[i] = models.SentenceCard{Chinese: zh, English: en, CardIndex: i}
		}
		return cards
	}

	beginner := repeat("我是一个人", "I am", 4)
	if got := ClassifyDifficulty(beginner); got != models.DifficultyBeginner {
		t.Fatalf("expected beginner, got %s", got)
	}

	// 20 characters, 10 words, at most 4 uncommon characters.
	intermediate := repeat("我们今天在学校里学习了很多新的东西鑫龘麤", "we learned a lot of new things at school today", 3)
	if got := ClassifyDifficulty(intermediate); got != models.DifficultyIntermediate {
		t.Fatalf("expected intermediate, got %s (metrics %+v)", got, Measure(intermediate))
	}

	// 30 characters, 13 words, 5 uncommon characters.
	advanced := repeat(
		strings.Repeat("我", 25)+"鑫龘麤爨齉",
		"one two three four five six seven eight nine ten eleven twelve thirteen",
		3,
	)
	if got := ClassifyDifficulty(advanced); got != models.DifficultyAdvanced {
		t.Fatalf("expected advanced, got %s (metrics %+v)", got, Measure(advanced))
	}
}

func TestClassify_Thresholds(t *testing.T) {
	tests := []struct {
		name     string
		metrics  Metrics
		expected models.Difficulty
	}{
		{"beginner upper bound", Metrics{15, 8, 2}, models.DifficultyBeginner},
		{"length past beginner", Metrics{16, 8, 2}, models.DifficultyIntermediate},
		{"words past beginner", Metrics{10, 9, 0}, models.DifficultyIntermediate},
		{"intermediate upper bound", Metrics{25, 12, 4}, models.DifficultyIntermediate},
		{"uncommon past intermediate", Metrics{10, 5, 4.5}, models.DifficultyAdvanced},
		{"everything past intermediate", Metrics{40, 20, 8}, models.DifficultyAdvanced},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := classify(tc.metrics); got != tc.expected {
				t.Errorf("Expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func TestCountUncommon_IgnoresNonHan(t *testing.T) {
	if n := countUncommon("我, A1 鑫!"); n != 1 {
		t.Fatalf("expected 1 uncommon character, got %d", n)
	}
}

func TestCommonCharList_NoDuplicates(t *testing.T) {
	seen := make(map[rune]bool)
	for _, r := range commonCharList {
		if seen[r] {
			t.Errorf("duplicate common character %q", r)
		}
		seen[r] = true
	}
	if len(seen) != len(commonChars) {
		t.Fatalf("set has %d entries, list has %d distinct", len(commonChars), len(seen))
	}
}

func TestValidateCards(t *testing.T) {
	tests := []struct {
		name  string
		cards []models.SentenceCard
		valid bool
	}{
		{"empty", nil, false},
		{"valid", []models.SentenceCard{{Chinese: "你好", English: "Hello", CardIndex: 0}, {Chinese: "再见", English: "Bye", CardIndex: 1}}, true},
		{"gap in indices", []models.SentenceCard{{Chinese: "你好", English: "Hello", CardIndex: 0}, {Chinese: "再见", English: "Bye", CardIndex: 2}}, false},
		{"reordered", []models.SentenceCard{{Chinese: "再见", English: "Bye", CardIndex: 1}, {Chinese: "你好", English: "Hello", CardIndex: 0}}, false},
		{"blank target", []models.SentenceCard{{Chinese: "你好", English: "  ", CardIndex: 0}}, false},
		{"blank source", []models.SentenceCard{{Chinese: "", English: "Hello", CardIndex: 0}}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateCards(tc.cards)
			if tc.valid && err != nil {
				t.Fatalf("expected valid cards, got %v", err)
			}
			if !tc.valid && !errors.Is(err, ErrInvalidCards) {
				t.Fatalf("expected ErrInvalidCards, got %v", err)
			}
		})
	}
}
