package router

import (
	"strings"
	"unicode"
)

// sanitizeTelegramCommand maps s onto Telegram's command alphabet
// [a-z0-9_]{1,32}.
func sanitizeTelegramCommand(s string) string {
	s = strings.TrimSpace(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "/")))
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		case r == '_' || r == '-' || unicode.IsSpace(r):
			if b.Len() > 0 && !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if len(out) > 32 {
		out = strings.TrimRight(out[:32], "_")
	}
	return out
}

func menuDescription(desc, fallback string) string {
	desc = strings.Join(strings.Fields(desc), " ")
	if desc == "" {
		desc = fallback
	}
	if len(desc) > 256 {
		desc = desc[:256]
	}
	return desc
}
