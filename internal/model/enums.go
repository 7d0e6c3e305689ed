package model

import (
	"path"
	"strings"
)

// AccessTier is the minimum privilege a chatter needs to trigger a sound.
// On users the same values are stored as grant flags.
type AccessTier string

const (
	TierAll AccessTier = "ALL"
	TierMod AccessTier = "MOD"
	TierSub AccessTier = "SUB"
	TierVIP AccessTier = "VIP"
)

func (t AccessTier) Valid() bool {
	switch t {
	case TierAll, TierMod, TierSub, TierVIP:
		return true
	}
	return false
}

type AudioFormat string

const (
	FormatMP3  AudioFormat = "MP3"
	FormatWAV  AudioFormat = "WAV"
	FormatOGG  AudioFormat = "OGG"
	FormatFLAC AudioFormat = "FLAC"
)

func (f AudioFormat) Valid() bool {
	switch f {
	case FormatMP3, FormatWAV, FormatOGG, FormatFLAC:
		return true
	}
	return false
}

// FormatFromPath derives the format from a sound path's extension.
func FormatFromPath(p string) (AudioFormat, bool) {
	f := AudioFormat(strings.ToUpper(strings.TrimPrefix(path.Ext(p), ".")))
	return f, f.Valid()
}

type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
)

// EventKind names a real-time event pushed to playback surfaces.
type EventKind string

const (
	EventPlaySound       EventKind = "playSound"
	EventConnectionState EventKind = "connectionState"
	EventSoundsChanged   EventKind = "soundsChanged"
)

// TriggerOutcome is what became of one chat line.
type TriggerOutcome string

const (
	OutcomeIgnored        TriggerOutcome = "ignored"
	OutcomeUnknownCommand TriggerOutcome = "unknown_command"
	OutcomeDenied         TriggerOutcome = "denied"
	OutcomePlayed         TriggerOutcome = "played"
	OutcomeFailed         TriggerOutcome = "failed"
)
