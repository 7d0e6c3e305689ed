package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/chatsounds/soundboard-server/internal/model"
	"github.com/chatsounds/soundboard-server/internal/util"
)

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindAll(ctx context.Context, limit, offset int) ([]model.User, error)
	Create(ctx context.Context, params model.CreateUserParams) (*model.User, error)
	Update(ctx context.Context, id string, params model.UpdateUserParams) (*model.User, error)
	Delete(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int64, error)
	// FindOrCreate returns the user for username, inserting a record with no
	// flags when none exists. created reports which branch was taken.
	FindOrCreate(ctx context.Context, username string) (user *model.User, created bool, err error)
	IncrementCommandCount(ctx context.Context, id string, at time.Time) (bool, error)
	MostActive(ctx context.Context, limit int) ([]model.ActiveUser, error)
}

type userRepo struct {
	db sqlxDB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if !util.IsValidUUID(id) {
		return nil, nil
	}
	var user model.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = $1`, id)
	return HandleNotFound(&user, err)
}

func (r *userRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE username = $1`, username)
	return HandleNotFound(&user, err)
}

func (r *userRepo) FindAll(ctx context.Context, limit, offset int) ([]model.User, error) {
	users := []model.User{}
	err := r.db.SelectContext(ctx, &users, `
		SELECT * FROM users
		ORDER BY created_at ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	flags := params.Flags
	if flags == nil {
		flags = []string{}
	}
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		INSERT INTO users (id, username, flags)
		VALUES ($1, $2, $3)
		RETURNING *
	`, uuid.NewString(), params.Username, pq.StringArray(flags))
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) Update(ctx context.Context, id string, params model.UpdateUserParams) (*model.User, error) {
	if !util.IsValidUUID(id) {
		return nil, nil
	}
	var flags any
	if params.Flags != nil {
		flags = pq.StringArray(params.Flags)
	}
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		UPDATE users SET
			username = COALESCE($2, username),
			flags = COALESCE($3, flags),
			updated_at = $4
		WHERE id = $1
		RETURNING *
	`, id, params.Username, flags, time.Now())
	return HandleNotFound(&user, err)
}

func (r *userRepo) Delete(ctx context.Context, id string) (bool, error) {
	if !util.IsValidUUID(id) {
		return false, nil
	}
	return affected(r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id))
}

func (r *userRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`)
	return count, err
}

func (r *userRepo) FindOrCreate(ctx context.Context, username string) (*model.User, bool, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		INSERT INTO users (id, username)
		VALUES ($1, $2)
		ON CONFLICT (username) DO NOTHING
		RETURNING *
	`, uuid.NewString(), username)
	created, err := HandleNotFound(&user, err)
	if err != nil {
		return nil, false, err
	}
	if created != nil {
		return created, true, nil
	}

	existing, err := r.FindByUsername(ctx, username)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *userRepo) IncrementCommandCount(ctx context.Context, id string, at time.Time) (bool, error) {
	return affected(r.db.ExecContext(ctx, `
		UPDATE users SET
			command_count = command_count + 1,
			last_seen = $2
		WHERE id = $1
	`, id, at))
}

func (r *userRepo) MostActive(ctx context.Context, limit int) ([]model.ActiveUser, error) {
	users := []model.ActiveUser{}
	err := r.db.SelectContext(ctx, &users, `
		SELECT username, command_count, last_seen FROM users
		ORDER BY command_count DESC, created_at ASC, id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return users, nil
}
