package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"bireader-backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, display_name)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	user.ID = uuid.New()
	user.IsActive = true

	return r.pool.QueryRow(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.DisplayName,
	).Scan(&user.CreatedAt)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	query := `SELECT id, email, password_hash, display_name, is_active, created_at, last_login_at
		FROM users WHERE email = $1`

	err := r.pool.QueryRow(ctx, query, email).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.DisplayName,
		&user.IsActive, &user.CreatedAt, &user.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	query := `SELECT id, email, password_hash, display_name, is_active, created_at, last_login_at
		FROM users WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.DisplayName,
		&user.IsActive, &user.CreatedAt, &user.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepo) UpdateLastLogin(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "UPDATE users SET last_login_at = $1 WHERE id = $2", time.Now(), userID)
	return err
}

// CreateSettings inserts the reading defaults row for a new user.
func (r *UserRepo) CreateSettings(ctx context.Context, userID uuid.UUID, defaults models.ReadingSettings) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_settings (user_id, auto_play_tts, tts_speed, show_translation)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING`,
		userID, defaults.AutoPlayTTS, defaults.TTSSpeed, defaults.ShowTranslation,
	)
	return err
}

func (r *UserRepo) GetSettings(ctx context.Context, userID uuid.UUID) (*models.UserSettings, error) {
	s := &models.UserSettings{}
	query := `SELECT user_id, auto_play_tts, tts_speed, show_translation, updated_at
		FROM user_settings WHERE user_id = $1`
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&s.UserID, &s.AutoPlayTTS, &s.TTSSpeed, &s.ShowTranslation, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *UserRepo) UpdateSettings(ctx context.Context, s *models.UserSettings) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO user_settings (user_id, auto_play_tts, tts_speed, show_translation, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET auto_play_tts = EXCLUDED.auto_play_tts,
			tts_speed = EXCLUDED.tts_speed,
			show_translation = EXCLUDED.show_translation,
			updated_at = NOW()
		RETURNING updated_at`,
		s.UserID, s.AutoPlayTTS, s.TTSSpeed, s.ShowTranslation,
	).Scan(&s.UpdatedAt)
}
