package service

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/chatsounds/soundboard-server/internal/errors"
	"github.com/chatsounds/soundboard-server/internal/model"
	"github.com/chatsounds/soundboard-server/internal/session"
)

type authFixture struct {
	clock  *clockwork.FakeClock
	tokens *mockTokens
	store  *session.MemoryStore
	svc    *AuthService
}

func newAuthFixture() *authFixture {
	clock := clockwork.NewFakeClockAt(testNow)
	tokens := new(mockTokens)
	store := session.NewMemoryStore(clock)
	return &authFixture{clock: clock, tokens: tokens, store: store, svc: NewAuthService(tokens, store)}
}

func (f *authFixture) token(ttl time.Duration) *model.TokenData {
	return &model.TokenData{AccessToken: "access", RefreshToken: "refresh", ExpiresAt: f.clock.Now().Add(ttl)}
}

func TestBeginLogin(t *testing.T) {
	f := newAuthFixture()

	state, authURL, err := f.svc.BeginLogin()

	require.NoError(t, err)
	assert.Len(t, state, 64)
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, state, u.Query().Get("state"))
}

func TestCompleteLogin(t *testing.T) {
	f := newAuthFixture()
	profile := &model.Profile{ID: "123", Login: "streamer", DisplayName: "Streamer"}
	f.tokens.On("ExchangeCode", mock.Anything, "code-1").Return(f.token(4*time.Hour), nil)
	f.tokens.On("FetchProfile", mock.Anything, "access").Return(profile, nil)

	sess, err := f.svc.CompleteLogin(context.Background(), "code-1")

	require.NoError(t, err)
	assert.Equal(t, "streamer", sess.Profile.Login)
	assert.True(t, f.store.IsValid(context.Background(), sess.ID))
}

func TestCompleteLogin_ExchangeFailure(t *testing.T) {
	f := newAuthFixture()
	f.tokens.On("ExchangeCode", mock.Anything, "bad").Return(nil, apperrors.TokenExchangeFailed("invalid code"))

	_, err := f.svc.CompleteLogin(context.Background(), "bad")

	assert.Equal(t, apperrors.ErrCodeTokenExchangeFailed, apperrors.GetCode(err))
	n, _ := f.store.ActiveSessions(context.Background())
	assert.Zero(t, n)
}

func TestCompleteLogin_NoProfileRevokesToken(t *testing.T) {
	f := newAuthFixture()
	f.tokens.On("ExchangeCode", mock.Anything, "code").Return(f.token(time.Hour), nil)
	f.tokens.On("FetchProfile", mock.Anything, "access").Return(nil, apperrors.NoProfileReturned())
	f.tokens.On("Revoke", mock.Anything, "access").Return(true).Once()

	_, err := f.svc.CompleteLogin(context.Background(), "code")

	assert.True(t, errors.Is(err, apperrors.ErrNoProfileReturned))
	f.tokens.AssertExpectations(t)
}

func TestCompleteLogin_RetriesDuplicateID(t *testing.T) {
	f := newAuthFixture()
	_, err := f.store.Create(context.Background(), "taken", model.Profile{Login: "other"}, *f.token(time.Hour))
	require.NoError(t, err)

	ids := []string{"taken", "fresh"}
	f.svc.newID = func() (string, error) {
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}
	f.tokens.On("ExchangeCode", mock.Anything, "code").Return(f.token(time.Hour), nil)
	f.tokens.On("FetchProfile", mock.Anything, "access").Return(&model.Profile{Login: "streamer"}, nil)

	sess, err := f.svc.CompleteLogin(context.Background(), "code")

	require.NoError(t, err)
	assert.Equal(t, "fresh", sess.ID)
}

func TestStatus(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	sess, err := f.store.Create(ctx, "s1", model.Profile{Login: "streamer"}, *f.token(time.Hour))
	require.NoError(t, err)
	f.tokens.On("Validate", mock.Anything, "access").Return(true).Once()

	got, err := f.svc.Status(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "streamer", got.Profile.Login)

	got, err = f.svc.Status(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStatus_RejectedTokenDestroysSession(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	_, err := f.store.Create(ctx, "s1", model.Profile{Login: "streamer"}, *f.token(time.Hour))
	require.NoError(t, err)
	f.tokens.On("Validate", mock.Anything, "access").Return(false)

	got, err := f.svc.Status(ctx, "s1")

	require.NoError(t, err)
	assert.Nil(t, got)
	stored, _ := f.store.Get(ctx, "s1")
	assert.Nil(t, stored)
}

func TestStatus_ExpiredSessionDestroyedWithoutValidate(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	_, err := f.store.Create(ctx, "s1", model.Profile{Login: "streamer"}, *f.token(time.Minute))
	require.NoError(t, err)
	f.clock.Advance(time.Minute)

	got, err := f.svc.Status(ctx, "s1")

	require.NoError(t, err)
	assert.Nil(t, got)
	f.tokens.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything)
	stored, _ := f.store.Get(ctx, "s1")
	assert.Nil(t, stored)
}

func TestRefresh(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	_, err := f.store.Create(ctx, "s1", model.Profile{Login: "streamer"}, *f.token(time.Minute))
	require.NoError(t, err)
	refreshed := &model.TokenData{AccessToken: "access-2", ExpiresAt: f.clock.Now().Add(4 * time.Hour)}
	f.tokens.On("Refresh", mock.Anything, "refresh").Return(refreshed, nil)

	sess, err := f.svc.Refresh(ctx, "s1")

	require.NoError(t, err)
	assert.Equal(t, "access-2", sess.AccessToken)
	assert.Equal(t, "refresh", sess.RefreshToken)
	f.clock.Advance(time.Hour)
	assert.True(t, f.store.IsValid(ctx, "s1"))

	_, err = f.svc.Refresh(ctx, "missing")
	assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.GetCode(err))
}

func TestLogout(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	_, err := f.store.Create(ctx, "s1", model.Profile{Login: "streamer"}, *f.token(time.Hour))
	require.NoError(t, err)
	f.tokens.On("Revoke", mock.Anything, "access").Return(false).Once()

	require.NoError(t, f.svc.Logout(ctx, "s1"))
	assert.False(t, f.store.IsValid(ctx, "s1"))
	require.NoError(t, f.svc.Logout(ctx, "s1"))
	f.tokens.AssertExpectations(t)
}
