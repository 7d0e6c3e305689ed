package model

import (
	"time"

	"github.com/lib/pq"
)

// ConnectionConfigID is the key of the single connection config row.
const ConnectionConfigID = "main"

type ConnectionConfig struct {
	ID        string         `db:"id" json:"-"`
	Username  string         `db:"username" json:"username"`
	OAuth     string         `db:"oauth" json:"-"`
	Channels  pq.StringArray `db:"channels" json:"channels"`
	Connected bool           `db:"connected" json:"connected"`
	UpdatedAt time.Time      `db:"updated_at" json:"updatedAt"`
}

func (c *ConnectionConfig) HasCredentials() bool {
	return c != nil && c.Username != "" && c.OAuth != "" && len(c.Channels) > 0
}

type UpdateConnectionParams struct {
	Username string   `json:"username"`
	OAuth    string   `json:"oauth"`
	Channels []string `json:"channels"`
}
