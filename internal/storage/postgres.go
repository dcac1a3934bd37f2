package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prompt-clan/prompt-arena/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 5
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// Pool exposes the underlying pool for migrations
func (r *PostgresRepository) Pool() *pgxpool.Pool {
	return r.pool
}

// UpsertUser inserts a user or refreshes profile fields on conflict.
// Flag stats are never overwritten here; they belong to SaveSubmission
// and RecountFlags.
func (r *PostgresRepository) UpsertUser(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (id, name, email, avatar, provider, total_flags, last_flag_at, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, NULL, NOW())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, avatar = EXCLUDED.avatar
	`

	_, err := r.pool.Exec(ctx, query, u.ID, u.Name, nullString(u.Email), nullString(u.Avatar), u.Provider)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID, nil when not found
func (r *PostgresRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, name, email, avatar, provider, total_flags, last_flag_at
		FROM users
		WHERE id = $1
	`

	var u models.User
	var email, avatar sql.NullString
	var lastFlagAt sql.NullTime

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Name, &email, &avatar, &u.Provider, &u.TotalFlags, &lastFlagAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u.Email = email.String
	u.Avatar = avatar.String
	if lastFlagAt.Valid {
		u.LastFlagAt = lastFlagAt.Time.UnixMilli()
	}

	return &u, nil
}

// SaveSubmission stores a finished run. On success the user's distinct
// solved-level count is recomputed in the same transaction so stats
// cannot drift from history under concurrent runs.
func (r *PostgresRepository) SaveSubmission(ctx context.Context, sub *models.Submission) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO submissions (id, user_id, level_id, prompt, output, success, feedback, flag, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = tx.Exec(ctx, query,
		sub.ID,
		sub.UserID,
		sub.LevelID,
		sub.Prompt,
		sub.Output,
		sub.Success,
		sub.Feedback,
		sub.Flag,
		sub.DurationMs,
		time.UnixMilli(sub.TimestampMs),
	)
	if err != nil {
		return fmt.Errorf("failed to save submission: %w", err)
	}

	if sub.Success {
		update := `
			UPDATE users
			SET total_flags = (
				SELECT COUNT(DISTINCT level_id) FROM submissions
				WHERE user_id = $1 AND success = TRUE
			),
			last_flag_at = NOW()
			WHERE id = $1
		`
		if _, err := tx.Exec(ctx, update, sub.UserID); err != nil {
			return fmt.Errorf("failed to update user stats: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit submission: %w", err)
	}
	return nil
}

// ListSubmissions returns a user's submissions, newest first, optionally
// scoped to one level
func (r *PostgresRepository) ListSubmissions(ctx context.Context, userID, levelID string, limit int) ([]*models.Submission, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, user_id, level_id, prompt, output, success, feedback, flag, duration_ms, created_at
		FROM submissions
		WHERE user_id = $1 AND ($2 = '' OR level_id = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, userID, levelID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var subs []*models.Submission
	for rows.Next() {
		var sub models.Submission
		var createdAt time.Time

		err := rows.Scan(
			&sub.ID, &sub.UserID, &sub.LevelID, &sub.Prompt, &sub.Output,
			&sub.Success, &sub.Feedback, &sub.Flag, &sub.DurationMs, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}

		sub.TimestampMs = createdAt.UnixMilli()
		subs = append(subs, &sub)
	}

	return subs, rows.Err()
}

// Leaderboard returns users ranked by flag count, earliest achiever first
// on ties
func (r *PostgresRepository) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	query := `
		SELECT id, name, avatar, total_flags, last_flag_at
		FROM users
		WHERE total_flags > 0
		ORDER BY total_flags DESC, last_flag_at ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []models.LeaderboardEntry
	rank := 0
	for rows.Next() {
		var e models.LeaderboardEntry
		var avatar sql.NullString
		var lastFlagAt sql.NullTime

		if err := rows.Scan(&e.UserID, &e.Name, &avatar, &e.FlagCount, &lastFlagAt); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}

		e.Avatar = avatar.String
		if lastFlagAt.Valid {
			e.LastActive = lastFlagAt.Time.UnixMilli()
		}
		rank++
		e.Rank = rank
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// RecountFlags recomputes a user's distinct solved-level count
func (r *PostgresRepository) RecountFlags(ctx context.Context, userID string) (int, error) {
	query := `
		UPDATE users
		SET total_flags = (
			SELECT COUNT(DISTINCT level_id) FROM submissions
			WHERE user_id = $1 AND success = TRUE
		)
		WHERE id = $1
		RETURNING total_flags
	`

	var count int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to recount flags: %w", err)
	}
	return count, nil
}

// AllUserIDs returns every user id; used by the background recount worker
func (r *PostgresRepository) AllUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM users`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
