package model

import "time"

// Profile is the Twitch identity behind a dashboard session.
type Profile struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	ProfileImageURL string `json:"profile_image_url"`
}

type TokenData struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Scopes       []string  `json:"scopes,omitempty"`
}

type Session struct {
	ID           string    `json:"id"`
	Profile      Profile   `json:"profile"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (s *Session) IsValid(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

func (s *Session) IsExpired(now time.Time) bool {
	return !s.IsValid(now)
}
