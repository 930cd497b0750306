package textutil

import (
	"strings"
	"unicode"
)

// SanitizeFileName makes a single path element safe to create inside an
// artifact or sink directory. Separators and shell-hostile characters become
// dashes, control characters are dropped, and leading dots are stripped so
// the result is never hidden and never "." or "..". Runs of dashes collapse.
func SanitizeFileName(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '|':
			return '-'
		case r == '?' || r == '"' || r == '<' || r == '>':
			return -1
		case unicode.IsControl(r):
			return -1
		default:
			return r
		}
	}, strings.TrimSpace(name))
	mapped = collapse(mapped, '-')
	return strings.TrimSpace(strings.TrimLeft(mapped, ".-"))
}

// SanitizeToken converts a device path or name into a lowercase token for
// lock and state file names, e.g. "/dev/video0" -> "dev_video0".
// Returns "unknown" when nothing usable remains.
func SanitizeToken(value string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			return unicode.ToLower(r)
		case r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(value))
	out := strings.Trim(collapse(mapped, '_'), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}

func collapse(s string, sep rune) string {
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		if r == sep && prev == sep {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}
