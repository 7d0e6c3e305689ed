package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/chatsounds/soundboard-server/internal/model"
	"github.com/chatsounds/soundboard-server/internal/util"
)

// ConnectionConfigRepository stores the single chat connection config row.
type ConnectionConfigRepository interface {
	// Get returns the config, creating the empty default row on first access.
	Get(ctx context.Context) (*model.ConnectionConfig, error)
	// Replace stores new credentials and always resets connected to false.
	Replace(ctx context.Context, params model.UpdateConnectionParams) (*model.ConnectionConfig, error)
	SetConnected(ctx context.Context, connected bool) error
	// Clear wipes credentials and channels and marks the config disconnected.
	Clear(ctx context.Context) error
}

type connectionConfigRepo struct {
	db     sqlxDB
	cipher *util.Cipher
}

// NewConnectionConfigRepository seals the OAuth credential at rest with cipher.
// A nil cipher stores it as given.
func NewConnectionConfigRepository(db *sqlx.DB, cipher *util.Cipher) ConnectionConfigRepository {
	return &connectionConfigRepo{db: db, cipher: cipher}
}

func (r *connectionConfigRepo) Get(ctx context.Context) (*model.ConnectionConfig, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO twitch_config (id) VALUES ($1)
		ON CONFLICT (id) DO NOTHING
	`, model.ConnectionConfigID)
	if err != nil {
		return nil, err
	}

	var cfg model.ConnectionConfig
	if err := r.db.GetContext(ctx, &cfg, `SELECT * FROM twitch_config WHERE id = $1`, model.ConnectionConfigID); err != nil {
		return nil, err
	}
	return r.open(&cfg)
}

func (r *connectionConfigRepo) Replace(ctx context.Context, params model.UpdateConnectionParams) (*model.ConnectionConfig, error) {
	sealed, err := r.cipher.Encrypt(params.OAuth)
	if err != nil {
		return nil, fmt.Errorf("seal oauth credential: %w", err)
	}
	channels := params.Channels
	if channels == nil {
		channels = []string{}
	}

	var cfg model.ConnectionConfig
	err = r.db.GetContext(ctx, &cfg, `
		INSERT INTO twitch_config (id, username, oauth, channels, connected, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			oauth = EXCLUDED.oauth,
			channels = EXCLUDED.channels,
			connected = FALSE,
			updated_at = EXCLUDED.updated_at
		RETURNING *
	`, model.ConnectionConfigID, params.Username, sealed, pq.StringArray(channels), time.Now())
	if err != nil {
		return nil, err
	}
	return r.open(&cfg)
}

func (r *connectionConfigRepo) SetConnected(ctx context.Context, connected bool) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO twitch_config (id, connected, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET connected = EXCLUDED.connected, updated_at = EXCLUDED.updated_at
	`, model.ConnectionConfigID, connected, time.Now())
	return err
}

func (r *connectionConfigRepo) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE twitch_config SET
			username = '',
			oauth = '',
			channels = '{}',
			connected = FALSE,
			updated_at = $2
		WHERE id = $1
	`, model.ConnectionConfigID, time.Now())
	return err
}

func (r *connectionConfigRepo) open(cfg *model.ConnectionConfig) (*model.ConnectionConfig, error) {
	plain, err := r.cipher.Decrypt(cfg.OAuth)
	if err != nil {
		return nil, fmt.Errorf("open oauth credential: %w", err)
	}
	cfg.OAuth = plain
	if cfg.Channels == nil {
		cfg.Channels = pq.StringArray{}
	}
	return cfg, nil
}
