package model

import (
	"time"

	"github.com/lib/pq"
)

type User struct {
	ID           string         `db:"id" json:"id"`
	Username     string         `db:"username" json:"username"`
	Flags        pq.StringArray `db:"flags" json:"flags"`
	CommandCount int64          `db:"command_count" json:"commandCount"`
	LastSeen     *time.Time     `db:"last_seen" json:"lastSeen,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updatedAt"`
}

func (u *User) HasFlag(tier AccessTier) bool {
	for _, f := range u.Flags {
		if AccessTier(f) == tier {
			return true
		}
	}
	return false
}

// CanUse reports whether the user's stored flags, plus any extra grants,
// satisfy the required tier. A nil user holds tier ALL only.
func (u *User) CanUse(required AccessTier, extra ...AccessTier) bool {
	if required == TierAll {
		return true
	}
	for _, g := range extra {
		if g == required {
			return true
		}
	}
	return u != nil && u.HasFlag(required)
}

type CreateUserParams struct {
	Username string   `json:"username"`
	Flags    []string `json:"flags"`
}

type UpdateUserParams struct {
	Username *string  `json:"username"`
	Flags    []string `json:"flags"`
}
