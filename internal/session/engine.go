// Package session drives a learner through the cards of one processed
// article, keeping an in-memory working copy of the reading session ahead of
// the durable record held by a Store.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"bireader-backend/internal/aligner"
	"bireader-backend/internal/audio"
	"bireader-backend/internal/models"
)

type State int

const (
	Active State = iota
	Completed
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Option func(*Engine)

func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithPlayer(p audio.Player) Option {
	return func(e *Engine) { e.player = p }
}

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

type syncOp struct {
	name       string
	completion *models.CardCompletion
	patch      *models.SessionPatch
}

// Engine is owned by a single driver. It does no locking.
type Engine struct {
	store  Store
	cards  []models.SentenceCard
	clock  Clock
	player audio.Player
	logger *log.Logger

	session *models.ReadingSession

	// per-viewing state of the current card
	flipped       bool
	replays       int
	cardStartedAt time.Time

	pending []syncOp
}

// Start creates a durable session for a processed article and returns an
// engine positioned on the first card.
func Start(ctx context.Context, store Store, articleID uuid.UUID, article *models.ProcessedArticle, settings models.ReadingSettings, opts ...Option) (*Engine, error) {
	if article == nil || article.SentenceCount == 0 || len(article.Sentences) == 0 {
		return nil, &InputError{Message: "article has no aligned sentences"}
	}
	if article.SentenceCount != len(article.Sentences) {
		return nil, &InputError{Message: fmt.Sprintf("sentence count %d does not match %d cards", article.SentenceCount, len(article.Sentences))}
	}
	if err := aligner.ValidateCards(article.Sentences); err != nil {
		return nil, &InputError{Message: err.Error()}
	}
	if fields := settings.Validate(); fields != nil {
		return nil, &ValidationError{Fields: fields}
	}

	rec, err := store.Create(ctx, models.CreateSessionRequest{
		ArticleID:  articleID,
		TotalCards: len(article.Sentences),
		Settings:   &settings,
	})
	if err != nil {
		return nil, fmt.Errorf("session: create: %w", err)
	}

	return newEngine(store, article.Sentences, rec, opts)
}

// Resume loads an existing session. The cards must be the ones the session
// was created from.
func Resume(ctx context.Context, store Store, sessionID uuid.UUID, cards []models.SentenceCard, opts ...Option) (*Engine, error) {
	if err := aligner.ValidateCards(cards); err != nil {
		return nil, &InputError{Message: err.Error()}
	}

	rec, err := store.Fetch(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session: fetch %s: %w", sessionID, err)
	}
	return newEngine(store, cards, rec, opts)
}

func newEngine(store Store, cards []models.SentenceCard, rec *models.ReadingSession, opts []Option) (*Engine, error) {
	if rec.TotalCards != len(cards) {
		return nil, &InputError{Message: fmt.Sprintf("session has %d cards, article has %d", rec.TotalCards, len(cards))}
	}

	e := &Engine{
		store:   store,
		cards:   cards,
		clock:   SystemClock,
		player:  audio.Nop{},
		logger:  log.Default(),
		session: rec.Clone(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.session.CurrentCardIndex < 0 || e.session.CurrentCardIndex >= len(cards) {
		e.session.CurrentCardIndex = 0
	}
	e.resetCard()
	e.autoPlay()
	return e, nil
}

// --- transitions ---

// Flip reveals the translation of the current card.
func (e *Engine) Flip() error {
	if err := e.requireActive("flip"); err != nil {
		return err
	}
	e.flipped = true
	return nil
}

// TrackAudioReplay counts one replay of the current card. It is persisted by
// the next CompleteCard or Exit.
func (e *Engine) TrackAudioReplay() error {
	if err := e.requireActive("track audio replay"); err != nil {
		return err
	}
	e.replays++
	return nil
}

// ReplayAudio counts a replay and plays the current card's source sentence.
func (e *Engine) ReplayAudio() error {
	if err := e.TrackAudioReplay(); err != nil {
		return err
	}
	e.play(e.cards[e.session.CurrentCardIndex])
	return nil
}

// PlayCurrent plays the current card without counting a replay.
func (e *Engine) PlayCurrent() {
	e.play(e.cards[e.session.CurrentCardIndex])
}

// CompleteCard records the current card as done and moves to the next card,
// or completes the session when every card is done. Local state changes even
// when the returned error is a *SyncError.
func (e *Engine) CompleteCard(ctx context.Context) error {
	if err := e.requireActive("complete card"); err != nil {
		return err
	}

	idx := e.session.CurrentCardIndex
	c := models.CardCompletion{
		CardIndex:        idx,
		TimeSpent:        e.elapsed(),
		WasFlipped:       e.flipped,
		AudioReplayCount: e.replays,
	}
	if err := e.session.ApplyCompletion(c, e.clock.Now()); err != nil {
		return fmt.Errorf("session: complete card %d: %w", idx, err)
	}

	e.resetCard()
	if !e.session.IsCompleted() && e.session.CurrentCardIndex != idx {
		e.autoPlay()
	}

	return e.enqueue(ctx, syncOp{name: "complete card", completion: &c})
}

// PreviousCard moves back one card. Nothing is synced.
func (e *Engine) PreviousCard() error {
	if err := e.requireActive("previous card"); err != nil {
		return err
	}
	if e.session.CurrentCardIndex == 0 {
		return &StateError{Op: "previous card", State: Active, Msg: "already on the first card"}
	}
	e.session.CurrentCardIndex--
	e.resetCard()
	e.autoPlay()
	return nil
}

// UpdateSettings merges p into the session settings. Allowed in any state.
func (e *Engine) UpdateSettings(ctx context.Context, p models.SettingsPatch) error {
	if p.IsEmpty() {
		return &ValidationError{Fields: map[string]string{"settings": "no fields to update"}}
	}
	if fields := p.Validate(); fields != nil {
		return &ValidationError{Fields: fields}
	}

	patch := models.SessionPatch{SettingsPatch: p}
	if err := e.session.ApplyPatch(patch, e.clock.Now()); err != nil {
		var fields models.FieldErrors
		if errors.As(err, &fields) {
			return &ValidationError{Fields: fields}
		}
		return err
	}
	return e.enqueue(ctx, syncOp{name: "update settings", patch: &patch})
}

// Exit flushes the current card's time and replay count without completing
// it. On a completed session it only flushes queued writes.
func (e *Engine) Exit(ctx context.Context) error {
	if e.State() == Completed {
		return e.Retry(ctx)
	}

	idx := e.session.CurrentCardIndex
	patch := models.SessionPatch{
		CurrentCardIndex: &idx,
		TimePerCard:      map[int]int{idx: e.elapsed()},
		AudioReplays:     map[int]int{idx: e.replays},
	}
	if err := e.session.ApplyPatch(patch, e.clock.Now()); err != nil {
		return fmt.Errorf("session: exit: %w", err)
	}
	return e.enqueue(ctx, syncOp{name: "exit", patch: &patch})
}

// Retry resends queued writes in order.
func (e *Engine) Retry(ctx context.Context) error {
	return e.flush(ctx)
}

// Reload replaces the working copy with the durable record and drops queued
// writes. A failed fetch leaves local state and the queue untouched.
func (e *Engine) Reload(ctx context.Context) error {
	rec, err := e.store.Fetch(ctx, e.session.ID)
	if err != nil {
		return &SyncError{Op: "reload", Pending: len(e.pending), Err: err}
	}
	if rec.TotalCards != len(e.cards) {
		return &InputError{Message: fmt.Sprintf("session has %d cards, article has %d", rec.TotalCards, len(e.cards))}
	}

	e.session = rec.Clone()
	if e.session.CurrentCardIndex < 0 || e.session.CurrentCardIndex >= len(e.cards) {
		e.session.CurrentCardIndex = 0
	}
	e.pending = nil
	e.resetCard()
	return nil
}

// --- view ---

func (e *Engine) SessionID() uuid.UUID { return e.session.ID }

func (e *Engine) State() State {
	if e.session.IsCompleted() {
		return Completed
	}
	return Active
}

func (e *Engine) CurrentCardIndex() int { return e.session.CurrentCardIndex }

func (e *Engine) CurrentCard() models.SentenceCard {
	return e.cards[e.session.CurrentCardIndex]
}

func (e *Engine) HasNextCard() bool {
	return e.session.CurrentCardIndex < len(e.cards)-1
}

func (e *Engine) HasPreviousCard() bool {
	return e.session.CurrentCardIndex > 0
}

func (e *Engine) IsCompleted() bool { return e.session.IsCompleted() }

func (e *Engine) IsFlipped() bool { return e.flipped }

func (e *Engine) Progress() models.Progress { return e.session.Progress() }

func (e *Engine) Settings() models.ReadingSettings { return e.session.ReadingSettings }

// Snapshot returns a copy of the working session.
func (e *Engine) Snapshot() *models.ReadingSession { return e.session.Clone() }

func (e *Engine) PendingSyncs() int { return len(e.pending) }

// --- internals ---

func (e *Engine) requireActive(op string) error {
	if e.session.IsCompleted() {
		return &StateError{Op: op, State: Completed, Msg: "session is completed"}
	}
	return nil
}

func (e *Engine) resetCard() {
	e.flipped = false
	e.replays = 0
	e.cardStartedAt = e.clock.Now()
}

// elapsed returns whole seconds on the current card.
func (e *Engine) elapsed() int {
	d := e.clock.Now().Sub(e.cardStartedAt)
	if d < 0 {
		return 0
	}
	return int(math.Round(d.Seconds()))
}

func (e *Engine) enqueue(ctx context.Context, op syncOp) error {
	e.pending = append(e.pending, op)
	return e.flush(ctx)
}

func (e *Engine) flush(ctx context.Context) error {
	for len(e.pending) > 0 {
		op := e.pending[0]
		rec, err := e.send(ctx, op)
		if err != nil {
			return &SyncError{Op: op.name, Pending: len(e.pending), Err: err}
		}
		e.pending = e.pending[1:]
		if len(e.pending) == 0 && rec != nil {
			e.adoptTimestamps(rec)
		}
	}
	e.pending = nil
	return nil
}

func (e *Engine) send(ctx context.Context, op syncOp) (*models.ReadingSession, error) {
	switch {
	case op.completion != nil:
		res, err := e.store.RecordCardCompletion(ctx, e.session.ID, *op.completion)
		if err != nil {
			return nil, err
		}
		return res.Session, nil
	case op.patch != nil:
		return e.store.Patch(ctx, e.session.ID, *op.patch)
	default:
		return nil, fmt.Errorf("empty sync operation %q", op.name)
	}
}

// adoptTimestamps takes the store's clock readings once local and durable
// state agree. Position and sets stay local.
func (e *Engine) adoptTimestamps(rec *models.ReadingSession) {
	e.session.LastActiveAt = rec.LastActiveAt
	if rec.CompletedAt != nil && e.session.CompletedAt != nil {
		t := *rec.CompletedAt
		e.session.CompletedAt = &t
	}
}

func (e *Engine) autoPlay() {
	if e.session.IsCompleted() || !e.session.AutoPlayTTS {
		return
	}
	e.play(e.cards[e.session.CurrentCardIndex])
}

func (e *Engine) play(card models.SentenceCard) {
	player, logger, speed := e.player, e.logger, e.session.TTSSpeed
	go func() {
		if err := player.Play(context.Background(), card.Chinese, speed); err != nil {
			logger.Printf("audio playback failed for card %d: %v", card.CardIndex, err)
		}
	}()
}
