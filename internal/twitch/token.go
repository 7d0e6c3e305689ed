package twitch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	twitchoauth "golang.org/x/oauth2/twitch"

	"github.com/chatsounds/soundboard-server/internal/config"
	apperrors "github.com/chatsounds/soundboard-server/internal/errors"
	"github.com/chatsounds/soundboard-server/internal/model"
)

// Scopes requested for dashboard logins.
var Scopes = []string{"chat:read", "chat:edit", "channel:read:subscriptions"}

const (
	defaultValidateURL = "https://id.twitch.tv/oauth2/validate"
	defaultRevokeURL   = "https://id.twitch.tv/oauth2/revoke"
	defaultHelixURL    = "https://api.twitch.tv/helix"
)

// Endpoints locates the Twitch identity and API services. Tests point
// these at an httptest server.
type Endpoints struct {
	AuthURL     string
	TokenURL    string
	ValidateURL string
	RevokeURL   string
	HelixURL    string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		AuthURL:     twitchoauth.Endpoint.AuthURL,
		TokenURL:    twitchoauth.Endpoint.TokenURL,
		ValidateURL: defaultValidateURL,
		RevokeURL:   defaultRevokeURL,
		HelixURL:    defaultHelixURL,
	}
}

// TokenManager drives the OAuth token lifecycle against Twitch. It holds
// no session state.
type TokenManager struct {
	oauth      *oauth2.Config
	endpoints  Endpoints
	httpClient *http.Client
	clock      clockwork.Clock
}

type Option func(*TokenManager)

func WithEndpoints(e Endpoints) Option {
	return func(tm *TokenManager) {
		tm.endpoints = e
		tm.oauth.Endpoint = oauth2.Endpoint{
			AuthURL:   e.AuthURL,
			TokenURL:  e.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(tm *TokenManager) { tm.httpClient = c }
}

func WithClock(c clockwork.Clock) Option {
	return func(tm *TokenManager) { tm.clock = c }
}

func NewTokenManager(clientID, clientSecret, redirectURI string, opts ...Option) *TokenManager {
	tm := &TokenManager{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       Scopes,
			Endpoint:     twitchoauth.Endpoint,
		},
		endpoints:  DefaultEndpoints(),
		httpClient: &http.Client{Timeout: config.TwitchHTTPTimeout},
		clock:      clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(tm)
	}
	return tm
}

func (tm *TokenManager) configured() bool {
	return tm.oauth.ClientID != "" && tm.oauth.ClientSecret != "" && tm.oauth.RedirectURL != ""
}

// BuildAuthorizationURL builds the consent URL. It makes no network call.
func (tm *TokenManager) BuildAuthorizationURL(state string) string {
	return tm.oauth.AuthCodeURL(state)
}

func (tm *TokenManager) ExchangeCode(ctx context.Context, code string) (*model.TokenData, error) {
	if !tm.configured() {
		return nil, apperrors.TokenExchangeFailed("client credentials not configured")
	}
	if code == "" {
		return nil, apperrors.TokenExchangeFailed("missing authorization code")
	}

	token, err := tm.oauth.Exchange(tm.clientContext(ctx), code)
	if err != nil {
		detail := retrieveDetail(err)
		log.Warn().Str("detail", detail).Msg("twitch code exchange failed")
		return nil, apperrors.TokenExchangeFailed(detail).WithCause(err)
	}
	return tm.toTokenData(token), nil
}

func (tm *TokenManager) Refresh(ctx context.Context, refreshToken string) (*model.TokenData, error) {
	if !tm.configured() {
		return nil, apperrors.TokenRefreshFailed("client credentials not configured")
	}
	if refreshToken == "" {
		return nil, apperrors.TokenRefreshFailed("no refresh token")
	}

	src := tm.oauth.TokenSource(tm.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		detail := retrieveDetail(err)
		log.Warn().Str("detail", detail).Msg("twitch token refresh failed")
		return nil, apperrors.TokenRefreshFailed(detail).WithCause(err)
	}

	data := tm.toTokenData(token)
	if data.RefreshToken == "" {
		data.RefreshToken = refreshToken
	}
	return data, nil
}

type helixUsersResponse struct {
	Data []model.Profile `json:"data"`
}

func (tm *TokenManager) FetchProfile(ctx context.Context, accessToken string) (*model.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(tm.endpoints.HelixURL, "/")+"/users", nil)
	if err != nil {
		return nil, apperrors.ProfileFetchFailed(err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Client-Id", tm.oauth.ClientID)

	resp, err := tm.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.ProfileFetchFailed(err.Error()).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Warn().Int("status", resp.StatusCode).Str("body", string(body)).Msg("twitch profile fetch failed")
		return nil, apperrors.ProfileFetchFailed(resp.Status)
	}

	var users helixUsersResponse
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, apperrors.ProfileFetchFailed("decode response: " + err.Error()).WithCause(err)
	}
	if len(users.Data) == 0 {
		return nil, apperrors.NoProfileReturned()
	}
	return &users.Data[0], nil
}

// Validate reports whether Twitch still accepts the token. Any failure,
// including transport errors, reads as invalid.
func (tm *TokenManager) Validate(ctx context.Context, accessToken string) bool {
	if accessToken == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tm.endpoints.ValidateURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "OAuth "+accessToken)

	resp, err := tm.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("twitch token validation request failed")
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

// Revoke is best effort and never returns an error.
func (tm *TokenManager) Revoke(ctx context.Context, accessToken string) bool {
	if accessToken == "" {
		return false
	}
	form := url.Values{
		"client_id": {tm.oauth.ClientID},
		"token":     {accessToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tm.endpoints.RevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := tm.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("twitch token revoke request failed")
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Msg("twitch token revoke rejected")
		return false
	}
	return true
}

func (tm *TokenManager) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, tm.httpClient)
}

// toTokenData anchors expiry on the injected clock using expires_in when
// the response carries it.
func (tm *TokenManager) toTokenData(token *oauth2.Token) *model.TokenData {
	now := tm.clock.Now()
	data := &model.TokenData{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}

	switch v := token.Extra("expires_in").(type) {
	case float64:
		if v > 0 {
			data.ExpiresAt = now.Add(time.Duration(v) * time.Second)
		}
	case json.Number:
		if n, err := v.Int64(); err == nil && n > 0 {
			data.ExpiresAt = now.Add(time.Duration(n) * time.Second)
		}
	}
	if data.ExpiresAt.IsZero() {
		if !token.Expiry.IsZero() {
			data.ExpiresAt = token.Expiry
		} else {
			data.ExpiresAt = now.Add(config.DefaultSessionTTL)
		}
	}

	if scopes, ok := token.Extra("scope").([]interface{}); ok {
		for _, s := range scopes {
			if str, ok := s.(string); ok {
				data.Scopes = append(data.Scopes, str)
			}
		}
	}
	return data
}

func retrieveDetail(err error) string {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.ErrorDescription != "" {
			return fmt.Sprintf("%d: %s", re.Response.StatusCode, re.ErrorDescription)
		}
		return fmt.Sprintf("%d: %s", re.Response.StatusCode, strings.TrimSpace(string(re.Body)))
	}
	return err.Error()
}
