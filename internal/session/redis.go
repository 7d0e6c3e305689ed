package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/chatsounds/soundboard-server/internal/errors"
	"github.com/chatsounds/soundboard-server/internal/model"
	redisclient "github.com/chatsounds/soundboard-server/internal/redis"
)

// createScript inserts a session unless a live one already holds the id.
// An expired leftover with the same id is overwritten.
var createScript = redis.NewScript(`
local score = redis.call('ZSCORE', KEYS[2], ARGV[5])
if score and redis.call('EXISTS', KEYS[1]) == 1 and tonumber(score) > tonumber(ARGV[3]) then
    return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[4])
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[5])
return 1
`)

// sweepScript removes every indexed session whose expiry is <= now.
// Running as one script keeps it from interleaving with createScript.
var sweepScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for _, id in ipairs(ids) do
    redis.call('DEL', ARGV[2] .. id)
    redis.call('ZREM', KEYS[1], id)
end
return #ids
`)

// RedisStore shares sessions between server instances. Each session is a
// JSON string plus an entry in a sorted set scored by expiry in unix ms.
// Keys outlive expiry by retention so the sweep, not Redis, decides removal.
type RedisStore struct {
	client    *redis.Client
	clock     clockwork.Clock
	retention time.Duration
}

func NewRedisStore(client *redis.Client, clock clockwork.Clock, retention time.Duration) *RedisStore {
	return &RedisStore{client: client, clock: clock, retention: retention}
}

func (s *RedisStore) Create(ctx context.Context, id string, profile model.Profile, token model.TokenData) (*model.Session, error) {
	now := s.clock.Now()
	sess := &model.Session{
		ID:           id,
		Profile:      profile,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.ExpiresAt,
		CreatedAt:    now,
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}

	created, err := createScript.Run(ctx, s.client,
		[]string{redisclient.SessionKey(id), redisclient.SessionIndex},
		string(data),
		sess.ExpiresAt.UnixMilli(),
		now.UnixMilli(),
		s.keyTTL(now, sess.ExpiresAt).Milliseconds(),
		id,
	).Int()
	if err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	if created == 0 {
		return nil, apperrors.DuplicateSession(id)
	}
	return sess, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*model.Session, error) {
	data, err := s.client.Get(ctx, redisclient.SessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var sess model.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) UpdateToken(ctx context.Context, id string, token model.TokenData) (*model.Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, apperrors.NotFound("Session")
	}

	sess.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		sess.RefreshToken = token.RefreshToken
	}
	sess.ExpiresAt = token.ExpiresAt

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}

	now := s.clock.Now()
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetXX(ctx, redisclient.SessionKey(id), data, s.keyTTL(now, sess.ExpiresAt))
		pipe.ZAdd(ctx, redisclient.SessionIndex, redis.Z{Score: float64(sess.ExpiresAt.UnixMilli()), Member: id})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) IsValid(ctx context.Context, id string) bool {
	sess, err := s.Get(ctx, id)
	if err != nil || sess == nil {
		return false
	}
	return sess.IsValid(s.clock.Now())
}

func (s *RedisStore) Destroy(ctx context.Context, id string) (bool, error) {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, redisclient.SessionKey(id))
		pipe.ZRem(ctx, redisclient.SessionIndex, id)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("destroy session: %w", err)
	}
	return del.Val() > 0, nil
}

func (s *RedisStore) SweepExpired(ctx context.Context) (int, error) {
	removed, err := sweepScript.Run(ctx, s.client,
		[]string{redisclient.SessionIndex},
		s.clock.Now().UnixMilli(),
		redisclient.SessionKeyPrefix,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	return removed, nil
}

func (s *RedisStore) ActiveSessions(ctx context.Context) (int, error) {
	// Scores are compared exclusively so a session expiring exactly now is not active.
	n, err := s.client.ZCount(ctx, redisclient.SessionIndex,
		fmt.Sprintf("(%d", s.clock.Now().UnixMilli()), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return int(n), nil
}

func (s *RedisStore) keyTTL(now, expiresAt time.Time) time.Duration {
	ttl := expiresAt.Sub(now) + s.retention
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}
