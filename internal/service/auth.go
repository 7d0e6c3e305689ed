package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/chatsounds/soundboard-server/internal/audit"
	apperrors "github.com/chatsounds/soundboard-server/internal/errors"
	"github.com/chatsounds/soundboard-server/internal/model"
	"github.com/chatsounds/soundboard-server/internal/session"
	"github.com/chatsounds/soundboard-server/internal/util"
)

// TokenProvider is the OAuth surface the dashboard login needs.
type TokenProvider interface {
	BuildAuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*model.TokenData, error)
	Refresh(ctx context.Context, refreshToken string) (*model.TokenData, error)
	FetchProfile(ctx context.Context, accessToken string) (*model.Profile, error)
	Validate(ctx context.Context, accessToken string) bool
	Revoke(ctx context.Context, accessToken string) bool
}

type AuthService struct {
	tokens   TokenProvider
	sessions session.Store
	newID    func() (string, error)
}

func NewAuthService(tokens TokenProvider, sessions session.Store) *AuthService {
	return &AuthService{tokens: tokens, sessions: sessions, newID: session.NewID}
}

// BeginLogin returns a fresh state value and the consent URL carrying it.
// The caller keeps the state and compares it on callback.
func (s *AuthService) BeginLogin() (state, authURL string, err error) {
	state, err = util.GenerateToken()
	if err != nil {
		return "", "", apperrors.Internal("failed to generate state").WithCause(err)
	}
	return state, s.tokens.BuildAuthorizationURL(state), nil
}

// CompleteLogin exchanges the code, loads the profile and opens a session.
func (s *AuthService) CompleteLogin(ctx context.Context, code string) (*model.Session, error) {
	token, err := s.tokens.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}
	profile, err := s.tokens.FetchProfile(ctx, token.AccessToken)
	if err != nil {
		s.tokens.Revoke(ctx, token.AccessToken)
		return nil, err
	}

	sess, err := s.createSession(ctx, *profile, *token)
	if err != nil {
		return nil, err
	}

	audit.Log(ctx, audit.Event{Type: audit.EventLoginSuccess, Login: profile.Login, SessionID: sess.ID})
	log.Info().Str("login", profile.Login).Msg("dashboard login")
	return sess, nil
}

// A generated id colliding with a live one is retried once with a new id.
func (s *AuthService) createSession(ctx context.Context, profile model.Profile, token model.TokenData) (*model.Session, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		id, err := s.newID()
		if err != nil {
			return nil, apperrors.Internal("failed to generate session id").WithCause(err)
		}
		sess, err := s.sessions.Create(ctx, id, profile, token)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, apperrors.ErrDuplicateSession) {
			return nil, apperrors.Internal("failed to store session").WithCause(err)
		}
		lastErr = err
	}
	return nil, lastErr
}

// Status returns the live session for id, or nil when the caller is not
// authenticated. A session that expired or whose token Twitch rejects is
// destroyed.
func (s *AuthService) Status(ctx context.Context, id string) (*model.Session, error) {
	if id == "" {
		return nil, nil
	}
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, apperrors.Internal("failed to load session").WithCause(err)
	}
	if sess == nil {
		return nil, nil
	}

	if !s.sessions.IsValid(ctx, id) || !s.tokens.Validate(ctx, sess.AccessToken) {
		if _, err := s.sessions.Destroy(ctx, id); err != nil {
			log.Warn().Err(err).Msg("failed to destroy stale session")
		}
		audit.Log(ctx, audit.Event{Type: audit.EventSessionExpired, Login: sess.Profile.Login, SessionID: id})
		return nil, nil
	}
	return sess, nil
}

// Authenticated is the cheap check used by request middleware. It does not
// call Twitch.
func (s *AuthService) Authenticated(ctx context.Context, id string) bool {
	return id != "" && s.sessions.IsValid(ctx, id)
}

func (s *AuthService) Refresh(ctx context.Context, id string) (*model.Session, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, apperrors.Internal("failed to load session").WithCause(err)
	}
	if sess == nil {
		return nil, apperrors.Unauthorized("No active session")
	}

	token, err := s.tokens.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		return nil, err
	}
	updated, err := s.sessions.UpdateToken(ctx, id, *token)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.Unauthorized("No active session")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to update session").WithCause(err)
	}

	audit.Log(ctx, audit.Event{Type: audit.EventSessionRefreshed, Login: sess.Profile.Login, SessionID: id})
	return updated, nil
}

// Logout revokes the token, best effort, and destroys the session.
func (s *AuthService) Logout(ctx context.Context, id string) error {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return apperrors.Internal("failed to load session").WithCause(err)
	}
	if sess == nil {
		return nil
	}

	if !s.tokens.Revoke(ctx, sess.AccessToken) {
		log.Warn().Str("login", sess.Profile.Login).Msg("token revoke failed during logout")
	}
	if _, err := s.sessions.Destroy(ctx, id); err != nil {
		return apperrors.Internal("failed to destroy session").WithCause(err)
	}

	audit.Log(ctx, audit.Event{Type: audit.EventLogout, Login: sess.Profile.Login, SessionID: id})
	return nil
}
