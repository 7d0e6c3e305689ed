package model

import "time"

const CommandPrefix = "!"

type Sound struct {
	ID         string      `db:"id" json:"id"`
	Name       string      `db:"name" json:"name"`
	Command    string      `db:"command" json:"command"`
	Level      int         `db:"level" json:"level"`
	Access     AccessTier  `db:"access" json:"access"`
	Format     AudioFormat `db:"format" json:"format"`
	Path       string      `db:"path" json:"path"`
	PlayCount  int64       `db:"play_count" json:"playCount"`
	LastPlayed *time.Time  `db:"last_played" json:"lastPlayed,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time   `db:"updated_at" json:"updatedAt"`
}

// PlayPayload is the broadcast body for an accepted trigger.
func (s *Sound) PlayPayload(username string) map[string]any {
	return map[string]any{
		"id":       s.ID,
		"name":     s.Name,
		"command":  s.Command,
		"level":    s.Level,
		"format":   s.Format,
		"path":     s.Path,
		"username": username,
	}
}

type CreateSoundParams struct {
	Name    string      `json:"name"`
	Command string      `json:"command"`
	Level   int         `json:"level"`
	Access  AccessTier  `json:"access"`
	Format  AudioFormat `json:"format"`
	Path    string      `json:"path"`
}

// UpdateSoundParams holds a partial update; nil fields are left unchanged.
type UpdateSoundParams struct {
	Name    *string      `json:"name"`
	Command *string      `json:"command"`
	Level   *int         `json:"level"`
	Access  *AccessTier  `json:"access"`
	Format  *AudioFormat `json:"format"`
	Path    *string      `json:"path"`
}
