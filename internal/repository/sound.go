package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/chatsounds/soundboard-server/internal/model"
	"github.com/chatsounds/soundboard-server/internal/util"
)

type SoundRepository interface {
	FindByID(ctx context.Context, id string) (*model.Sound, error)
	FindByCommand(ctx context.Context, command string) (*model.Sound, error)
	FindAll(ctx context.Context, limit, offset int) ([]model.Sound, error)
	Create(ctx context.Context, params model.CreateSoundParams) (*model.Sound, error)
	Update(ctx context.Context, id string, params model.UpdateSoundParams) (*model.Sound, error)
	Delete(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int64, error)
	// IncrementPlayCount bumps play_count in a single statement and reports
	// whether the sound still existed.
	IncrementPlayCount(ctx context.Context, id string, at time.Time) (bool, error)
	MostPlayed(ctx context.Context, limit int) ([]model.PopularSound, error)
	// PlayCountDrift lists sounds whose counter differs from their logged plays.
	PlayCountDrift(ctx context.Context) ([]model.PlayCountDrift, error)
}

type soundRepo struct {
	db sqlxDB
}

func NewSoundRepository(db *sqlx.DB) SoundRepository {
	return &soundRepo{db: db}
}

func (r *soundRepo) FindByID(ctx context.Context, id string) (*model.Sound, error) {
	if !util.IsValidUUID(id) {
		return nil, nil
	}
	var sound model.Sound
	err := r.db.GetContext(ctx, &sound, `SELECT * FROM sounds WHERE id = $1`, id)
	return HandleNotFound(&sound, err)
}

func (r *soundRepo) FindByCommand(ctx context.Context, command string) (*model.Sound, error) {
	var sound model.Sound
	err := r.db.GetContext(ctx, &sound, `SELECT * FROM sounds WHERE command = $1`, command)
	return HandleNotFound(&sound, err)
}

func (r *soundRepo) FindAll(ctx context.Context, limit, offset int) ([]model.Sound, error) {
	sounds := []model.Sound{}
	err := r.db.SelectContext(ctx, &sounds, `
		SELECT * FROM sounds
		ORDER BY created_at ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return sounds, nil
}

func (r *soundRepo) Create(ctx context.Context, params model.CreateSoundParams) (*model.Sound, error) {
	var sound model.Sound
	err := r.db.GetContext(ctx, &sound, `
		INSERT INTO sounds (id, name, command, level, access, format, path)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *
	`, uuid.NewString(), params.Name, params.Command, params.Level, params.Access, params.Format, params.Path)
	if err != nil {
		return nil, err
	}
	return &sound, nil
}

func (r *soundRepo) Update(ctx context.Context, id string, params model.UpdateSoundParams) (*model.Sound, error) {
	if !util.IsValidUUID(id) {
		return nil, nil
	}
	var sound model.Sound
	err := r.db.GetContext(ctx, &sound, `
		UPDATE sounds SET
			name = COALESCE($2, name),
			command = COALESCE($3, command),
			level = COALESCE($4, level),
			access = COALESCE($5, access),
			format = COALESCE($6, format),
			path = COALESCE($7, path),
			updated_at = $8
		WHERE id = $1
		RETURNING *
	`, id, params.Name, params.Command, params.Level, params.Access, params.Format, params.Path, time.Now())
	return HandleNotFound(&sound, err)
}

func (r *soundRepo) Delete(ctx context.Context, id string) (bool, error) {
	if !util.IsValidUUID(id) {
		return false, nil
	}
	return affected(r.db.ExecContext(ctx, `DELETE FROM sounds WHERE id = $1`, id))
}

func (r *soundRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM sounds`)
	return count, err
}

func (r *soundRepo) IncrementPlayCount(ctx context.Context, id string, at time.Time) (bool, error) {
	return affected(r.db.ExecContext(ctx, `
		UPDATE sounds SET
			play_count = play_count + 1,
			last_played = $2
		WHERE id = $1
	`, id, at))
}

func (r *soundRepo) MostPlayed(ctx context.Context, limit int) ([]model.PopularSound, error) {
	sounds := []model.PopularSound{}
	err := r.db.SelectContext(ctx, &sounds, `
		SELECT id, name, command, play_count FROM sounds
		ORDER BY play_count DESC, created_at ASC, id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return sounds, nil
}

func (r *soundRepo) PlayCountDrift(ctx context.Context) ([]model.PlayCountDrift, error) {
	drift := []model.PlayCountDrift{}
	err := r.db.SelectContext(ctx, &drift, `
		SELECT s.id, s.command, s.play_count, COUNT(p.id) AS logged_plays
		FROM sounds s
		LEFT JOIN sound_plays p ON p.sound_id = s.id
		GROUP BY s.id, s.command, s.play_count
		HAVING s.play_count <> COUNT(p.id)
		ORDER BY s.command
	`)
	if err != nil {
		return nil, err
	}
	return drift, nil
}
