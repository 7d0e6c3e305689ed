package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/chatsounds/soundboard-server/internal/model"
)

// DayCount is the number of plays on one UTC calendar day (YYYY-MM-DD).
type DayCount struct {
	Day   string `db:"day"`
	Count int64  `db:"count"`
}

// HourCount is the number of plays in one UTC hour of day.
type HourCount struct {
	Hour  int   `db:"hour"`
	Count int64 `db:"count"`
}

type PlayRepository interface {
	Create(ctx context.Context, soundID, username string, userID *string, at time.Time) (*model.PlayEvent, error)
	Count(ctx context.Context) (int64, error)
	// CountByDay groups plays in [from, to) by UTC date. soundID narrows to one sound when set.
	CountByDay(ctx context.Context, from, to time.Time, soundID *string) ([]DayCount, error)
	CountByHour(ctx context.Context, from, to time.Time) ([]HourCount, error)
	CountForSound(ctx context.Context, soundID string) (int64, error)
	UniqueUsersForSound(ctx context.Context, soundID string) (int64, error)
	Recent(ctx context.Context, limit int) ([]model.RecentPlay, error)
}

type playRepo struct {
	db sqlxDB
}

func NewPlayRepository(db *sqlx.DB) PlayRepository {
	return &playRepo{db: db}
}

func (r *playRepo) Create(ctx context.Context, soundID, username string, userID *string, at time.Time) (*model.PlayEvent, error) {
	var play model.PlayEvent
	err := r.db.GetContext(ctx, &play, `
		INSERT INTO sound_plays (id, sound_id, username, user_id, played_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, uuid.NewString(), soundID, username, userID, at)
	if err != nil {
		return nil, err
	}
	return &play, nil
}

func (r *playRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM sound_plays`)
	return count, err
}

func (r *playRepo) CountByDay(ctx context.Context, from, to time.Time, soundID *string) ([]DayCount, error) {
	days := []DayCount{}
	err := r.db.SelectContext(ctx, &days, `
		SELECT to_char(played_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, COUNT(*) AS count
		FROM sound_plays
		WHERE played_at >= $1 AND played_at < $2
			AND ($3::uuid IS NULL OR sound_id = $3::uuid)
		GROUP BY day
		ORDER BY day
	`, from, to, soundID)
	if err != nil {
		return nil, err
	}
	return days, nil
}

func (r *playRepo) CountByHour(ctx context.Context, from, to time.Time) ([]HourCount, error) {
	hours := []HourCount{}
	err := r.db.SelectContext(ctx, &hours, `
		SELECT EXTRACT(HOUR FROM played_at AT TIME ZONE 'UTC')::int AS hour, COUNT(*) AS count
		FROM sound_plays
		WHERE played_at >= $1 AND played_at < $2
		GROUP BY hour
		ORDER BY hour
	`, from, to)
	if err != nil {
		return nil, err
	}
	return hours, nil
}

func (r *playRepo) CountForSound(ctx context.Context, soundID string) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM sound_plays WHERE sound_id = $1`, soundID)
	return count, err
}

func (r *playRepo) UniqueUsersForSound(ctx context.Context, soundID string) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(DISTINCT username) FROM sound_plays WHERE sound_id = $1
	`, soundID)
	return count, err
}

func (r *playRepo) Recent(ctx context.Context, limit int) ([]model.RecentPlay, error) {
	plays := []model.RecentPlay{}
	err := r.db.SelectContext(ctx, &plays, `
		SELECT
			p.id,
			p.sound_id,
			COALESCE(s.name, $2) AS sound_name,
			COALESCE(s.command, $2) AS sound_command,
			COALESCE(u.username, p.username) AS username,
			p.played_at
		FROM sound_plays p
		LEFT JOIN sounds s ON s.id = p.sound_id
		LEFT JOIN users u ON u.id = p.user_id
		ORDER BY p.played_at DESC, p.id DESC
		LIMIT $1
	`, limit, model.UnknownName)
	if err != nil {
		return nil, err
	}
	return plays, nil
}
