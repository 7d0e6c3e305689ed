package model

import "time"

type PlayEvent struct {
	ID       string    `db:"id" json:"id"`
	SoundID  string    `db:"sound_id" json:"soundId"`
	Username string    `db:"username" json:"username"`
	UserID   *string   `db:"user_id" json:"userId,omitempty"`
	PlayedAt time.Time `db:"played_at" json:"playedAt"`
}

// UnknownName stands in for a sound or user deleted after the play was recorded.
const UnknownName = "unknown"

type Overview struct {
	TotalSounds int64 `db:"total_sounds" json:"totalSounds"`
	TotalUsers  int64 `db:"total_users" json:"totalUsers"`
	TotalPlays  int64 `db:"total_plays" json:"totalPlays"`
}

type DailyStat struct {
	Date     string `json:"date"`
	Commands int64  `json:"commands"`
}

type HourlyStat struct {
	Hour     int   `json:"hour"`
	Commands int64 `json:"commands"`
}

type PopularSound struct {
	SoundID string `db:"id" json:"soundId"`
	Name    string `db:"name" json:"name"`
	Command string `db:"command" json:"command"`
	Count   int64  `db:"play_count" json:"count"`
}

type ActiveUser struct {
	Username string     `db:"username" json:"username"`
	Count    int64      `db:"command_count" json:"count"`
	LastSeen *time.Time `db:"last_seen" json:"lastSeen,omitempty"`
}

type RecentPlay struct {
	ID           string    `db:"id" json:"id"`
	SoundID      string    `db:"sound_id" json:"soundId"`
	SoundName    string    `db:"sound_name" json:"soundName"`
	SoundCommand string    `db:"sound_command" json:"soundCommand"`
	Username     string    `db:"username" json:"username"`
	PlayedAt     time.Time `db:"played_at" json:"playedAt"`
}

type FullAnalytics struct {
	Overview
	DailyStats     []DailyStat    `json:"dailyStats"`
	HourlyStats    []HourlyStat   `json:"hourlyStats"`
	PopularSounds  []PopularSound `json:"popularSounds"`
	ActiveUsers    []ActiveUser   `json:"activeUsers"`
	RecentActivity []RecentPlay   `json:"recentActivity"`
}

type SoundAnalytics struct {
	SoundID     string      `json:"soundId"`
	TotalPlays  int64       `json:"totalPlays"`
	DailyPlays  []DailyStat `json:"dailyPlays"`
	UniqueUsers int64       `json:"uniqueUsers"`
}

// PlayCountDrift reports a sound whose stored counter disagrees with its play log.
type PlayCountDrift struct {
	SoundID     string `db:"id" json:"soundId"`
	Command     string `db:"command" json:"command"`
	PlayCount   int64  `db:"play_count" json:"playCount"`
	LoggedPlays int64  `db:"logged_plays" json:"loggedPlays"`
}
