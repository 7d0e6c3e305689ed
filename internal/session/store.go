// Package session keeps authenticated dashboard sessions keyed by an
// opaque id. Expired entries stay readable until the periodic sweep
// removes them; IsValid is the authority on liveness.
package session

import (
	"context"

	"github.com/chatsounds/soundboard-server/internal/model"
	"github.com/chatsounds/soundboard-server/internal/util"
)

type Store interface {
	// Create fails with errors.ErrDuplicateSession when id is already live.
	Create(ctx context.Context, id string, profile model.Profile, token model.TokenData) (*model.Session, error)
	// Get returns nil when no entry exists.
	Get(ctx context.Context, id string) (*model.Session, error)
	// UpdateToken swaps in refreshed token data for an existing session.
	UpdateToken(ctx context.Context, id string, token model.TokenData) (*model.Session, error)
	IsValid(ctx context.Context, id string) bool
	Destroy(ctx context.Context, id string) (bool, error)
	SweepExpired(ctx context.Context) (int, error)
	ActiveSessions(ctx context.Context) (int, error)
}

// NewID returns a collision-resistant session id.
func NewID() (string, error) {
	return util.GenerateToken()
}
