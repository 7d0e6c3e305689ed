package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatsounds/soundboard-server/internal/middleware"
	"github.com/chatsounds/soundboard-server/internal/model"
	"github.com/chatsounds/soundboard-server/internal/service"
	"github.com/chatsounds/soundboard-server/internal/session"
)

type stubTokens struct {
	clock       clockwork.Clock
	exchangeErr error
	valid       bool
	revoked     []string
}

func (s *stubTokens) BuildAuthorizationURL(state string) string {
	return "https://id.twitch.tv/oauth2/authorize?state=" + url.QueryEscape(state)
}

func (s *stubTokens) ExchangeCode(_ context.Context, code string) (*model.TokenData, error) {
	if s.exchangeErr != nil {
		return nil, s.exchangeErr
	}
	return &model.TokenData{AccessToken: "access-" + code, RefreshToken: "refresh", ExpiresAt: s.clock.Now().Add(4 * time.Hour)}, nil
}

func (s *stubTokens) Refresh(_ context.Context, _ string) (*model.TokenData, error) {
	return &model.TokenData{AccessToken: "access-2", RefreshToken: "refresh-2", ExpiresAt: s.clock.Now().Add(4 * time.Hour)}, nil
}

func (s *stubTokens) FetchProfile(_ context.Context, _ string) (*model.Profile, error) {
	return &model.Profile{ID: "42", Login: "streamer", DisplayName: "Streamer"}, nil
}

func (s *stubTokens) Validate(_ context.Context, _ string) bool { return s.valid }

func (s *stubTokens) Revoke(_ context.Context, token string) bool {
	s.revoked = append(s.revoked, token)
	return true
}

type authFixture struct {
	tokens *stubTokens
	store  *session.MemoryStore
	router http.Handler
}

func newAuthFixture() *authFixture {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC))
	tokens := &stubTokens{clock: clock, valid: true}
	store := session.NewMemoryStore(clock)
	h := NewAuthHandler(service.NewAuthService(tokens, store), false, "/dashboard")
	return &authFixture{tokens: tokens, store: store, router: h.Routes()}
}

func (f *authFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuthHandler_LoginSetsStateAndRedirects(t *testing.T) {
	f := newAuthFixture()

	rec := f.do(httptest.NewRequest(http.MethodGet, "/twitch", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	state := findCookie(rec, middleware.StateCookie)
	require.NotNil(t, state)
	assert.NotEmpty(t, state.Value)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, state.Value, loc.Query().Get("state"))
}

func TestAuthHandler_CallbackStateMismatch(t *testing.T) {
	f := newAuthFixture()
	req := httptest.NewRequest(http.MethodGet, "/twitch/callback?code=abc&state=forged", nil)
	req.AddCookie(&http.Cookie{Name: middleware.StateCookie, Value: "expected"})

	rec := f.do(req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard?error=invalid_state", rec.Header().Get("Location"))
	assert.Nil(t, findCookie(rec, middleware.SessionCookie))
}

func TestAuthHandler_CallbackProviderDenied(t *testing.T) {
	f := newAuthFixture()

	rec := f.do(httptest.NewRequest(http.MethodGet, "/twitch/callback?error=access_denied", nil))

	assert.Equal(t, "/dashboard?error=access_denied", rec.Header().Get("Location"))
}

func TestAuthHandler_CallbackExchangeFailure(t *testing.T) {
	f := newAuthFixture()
	f.tokens.exchangeErr = errors.New("bad code")
	req := httptest.NewRequest(http.MethodGet, "/twitch/callback?code=abc&state=s1", nil)
	req.AddCookie(&http.Cookie{Name: middleware.StateCookie, Value: "s1"})

	rec := f.do(req)

	assert.Equal(t, "/dashboard?error=login_failed", rec.Header().Get("Location"))
}

func TestAuthHandler_CallbackThenStatusThenLogout(t *testing.T) {
	f := newAuthFixture()
	req := httptest.NewRequest(http.MethodGet, "/twitch/callback?code=abc&state=s1", nil)
	req.AddCookie(&http.Cookie{Name: middleware.StateCookie, Value: "s1"})

	rec := f.do(req)

	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
	sessionCookie := findCookie(rec, middleware.SessionCookie)
	require.NotNil(t, sessionCookie)
	assert.True(t, sessionCookie.HttpOnly)

	statusReq := httptest.NewRequest(http.MethodGet, "/status", nil)
	statusReq.AddCookie(sessionCookie)
	status := f.do(statusReq)
	assert.Equal(t, http.StatusOK, status.Code)
	body := decodeBody(t, status)
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, "streamer", body["user"].(map[string]any)["login"])

	logoutReq := httptest.NewRequest(http.MethodPost, "/logout", nil)
	logoutReq.AddCookie(sessionCookie)
	assert.Equal(t, http.StatusOK, f.do(logoutReq).Code)
	assert.Contains(t, f.tokens.revoked, "access-abc")

	again := httptest.NewRequest(http.MethodGet, "/status", nil)
	again.AddCookie(sessionCookie)
	assert.Equal(t, false, decodeBody(t, f.do(again))["authenticated"])
}

func TestAuthHandler_StatusRevokedUpstream(t *testing.T) {
	f := newAuthFixture()
	sess, err := f.store.Create(context.Background(), "sess-1", model.Profile{Login: "streamer"},
		model.TokenData{AccessToken: "tok", ExpiresAt: time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	f.tokens.valid = false

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: sess.ID})
	rec := f.do(req)

	assert.Equal(t, false, decodeBody(t, rec)["authenticated"])
	cleared := findCookie(rec, middleware.SessionCookie)
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)
	assert.False(t, f.store.IsValid(context.Background(), sess.ID))
}

func TestAuthHandler_RefreshWithoutSession(t *testing.T) {
	f := newAuthFixture()

	rec := f.do(httptest.NewRequest(http.MethodPost, "/refresh", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
