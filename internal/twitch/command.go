package twitch

import (
	"strings"
	"unicode"

	"github.com/chatsounds/soundboard-server/internal/model"
)

const maxCommandLength = 50

// ParseCommand extracts the leading command token of a chat line, e.g.
// "!airhorn" from "!airhorn lol". Case is preserved; matching is exact.
func ParseCommand(text string) (string, bool) {
	text = strings.TrimLeftFunc(text, unicode.IsSpace)
	if !strings.HasPrefix(text, model.CommandPrefix) {
		return "", false
	}

	token := text
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		token = text[:i]
	}
	if len(token) <= len(model.CommandPrefix) || len(token) > maxCommandLength {
		return "", false
	}
	return token, true
}
