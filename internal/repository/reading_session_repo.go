package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bireader-backend/internal/models"
)

type ReadingSessionRepo struct {
	pool *pgxpool.Pool
}

func NewReadingSessionRepo(pool *pgxpool.Pool) *ReadingSessionRepo {
	return &ReadingSessionRepo{pool: pool}
}

const sessionColumns = `id, user_id, article_id, total_cards, current_card_index,
	completed_cards, cards_flipped, audio_replays, time_per_card,
	auto_play_tts, tts_speed, show_translation, started_at, last_active_at, completed_at`

func (r *ReadingSessionRepo) Create(ctx context.Context, s *models.ReadingSession) error {
	replays, times, err := encodeTelemetry(s)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO reading_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		s.ID, s.UserID, s.ArticleID, s.TotalCards, s.CurrentCardIndex,
		s.CompletedCards.Sorted(), s.CardsFlipped.Sorted(), replays, times,
		s.AutoPlayTTS, s.TTSSpeed, s.ShowTranslation, s.StartedAt, s.LastActiveAt, s.CompletedAt,
	)
	return err
}

func (r *ReadingSessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ReadingSession, error) {
	return scanSession(r.pool.QueryRow(ctx, "SELECT "+sessionColumns+" FROM reading_sessions WHERE id = $1", id))
}

// ListByUser returns sessions newest first, optionally for one article.
func (r *ReadingSessionRepo) ListByUser(ctx context.Context, userID uuid.UUID, articleID *uuid.UUID, limit, offset int) ([]*models.ReadingSession, int, error) {
	where := "WHERE user_id = $1"
	args := []interface{}{userID}
	if articleID != nil {
		where += " AND article_id = $2"
		args = append(args, *articleID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM reading_sessions "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("SELECT %s FROM reading_sessions %s ORDER BY last_active_at DESC LIMIT $%d OFFSET $%d",
		sessionColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	sessions := make([]*models.ReadingSession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, s)
	}
	return sessions, total, rows.Err()
}

// Update locks the session row, applies fn and writes the result in one
// transaction. An error from fn aborts the update and is returned unchanged.
func (r *ReadingSessionRepo) Update(ctx context.Context, id uuid.UUID, fn func(*models.ReadingSession) error) (*models.ReadingSession, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	s, err := scanSession(tx.QueryRow(ctx, "SELECT "+sessionColumns+" FROM reading_sessions WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		return nil, err
	}

	if err := fn(s); err != nil {
		return nil, err
	}

	replays, times, err := encodeTelemetry(s)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE reading_sessions
		SET current_card_index = $1, completed_cards = $2, cards_flipped = $3,
			audio_replays = $4, time_per_card = $5,
			auto_play_tts = $6, tts_speed = $7, show_translation = $8,
			last_active_at = $9, completed_at = $10
		WHERE id = $11`,
		s.CurrentCardIndex, s.CompletedCards.Sorted(), s.CardsFlipped.Sorted(),
		replays, times,
		s.AutoPlayTTS, s.TTSSpeed, s.ShowTranslation,
		s.LastActiveAt, s.CompletedAt, s.ID,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *ReadingSessionRepo) Stats(ctx context.Context, userID uuid.UUID) (*models.ReadingStats, error) {
	stats := &models.ReadingStats{}
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(completed_at),
			COALESCE(SUM(cardinality(completed_cards)), 0),
			COALESCE((
				SELECT SUM(t.value::int)
				FROM reading_sessions rs, jsonb_each_text(rs.time_per_card) t
				WHERE rs.user_id = $1
			), 0)
		FROM reading_sessions
		WHERE user_id = $1
	`, userID).Scan(&stats.TotalSessions, &stats.CompletedSessions, &stats.CompletedCards, &stats.SecondsRead)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func scanSession(row pgx.Row) (*models.ReadingSession, error) {
	s := &models.ReadingSession{}
	var (
		completed, flipped []int
		replays, times     []byte
	)
	err := row.Scan(
		&s.ID, &s.UserID, &s.ArticleID, &s.TotalCards, &s.CurrentCardIndex,
		&completed, &flipped, &replays, &times,
		&s.AutoPlayTTS, &s.TTSSpeed, &s.ShowTranslation, &s.StartedAt, &s.LastActiveAt, &s.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	s.CompletedCards = models.NewIndexSet(completed...)
	s.CardsFlipped = models.NewIndexSet(flipped...)
	s.AudioReplays = map[int]int{}
	s.TimePerCard = map[int]int{}
	if len(replays) > 0 {
		if err := json.Unmarshal(replays, &s.AudioReplays); err != nil {
			return nil, fmt.Errorf("decode audio_replays for session %s: %w", s.ID, err)
		}
	}
	if len(times) > 0 {
		if err := json.Unmarshal(times, &s.TimePerCard); err != nil {
			return nil, fmt.Errorf("decode time_per_card for session %s: %w", s.ID, err)
		}
	}
	return s, nil
}

func encodeTelemetry(s *models.ReadingSession) (replays, times []byte, err error) {
	if replays, err = json.Marshal(nonNil(s.AudioReplays)); err != nil {
		return nil, nil, err
	}
	if times, err = json.Marshal(nonNil(s.TimePerCard)); err != nil {
		return nil, nil, err
	}
	return replays, times, nil
}

func nonNil(m map[int]int) map[int]int {
	if m == nil {
		return map[int]int{}
	}
	return m
}
