package extract

import (
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

var bulletMarkers = []string{"- ", "-", "・", "•", "●", "◯", "○", "■", "□", "*", "※"}

// NormalizeBullets rewrites s so that every non-empty line starts with "- ".
// A single line listing items with commas is split into one item per line.
func NormalizeBullets(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")

	nonEmpty := 0
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			nonEmpty++
		}
	}
	if nonEmpty == 1 {
		lines = splitTopLevel(strings.TrimSpace(s))
	}

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		item := strings.TrimSpace(line)
		for trimmed := true; trimmed; {
			trimmed = false
			for _, marker := range bulletMarkers {
				if strings.HasPrefix(item, marker) {
					item = strings.TrimSpace(strings.TrimPrefix(item, marker))
					trimmed = true
				}
			}
		}
		if item == "" {
			continue
		}
		out = append(out, "- "+item)
	}

	return strings.Join(out, "\n")
}

// splitTopLevel splits a one-line list on commas that are not inside
// brackets, so "Spring Boot(3年, 設計含む)" stays one item.
func splitTopLevel(s string) []string {
	var (
		items []string
		cur   strings.Builder
		depth int
	)
	for _, r := range s {
		switch {
		case strings.ContainsRune("(（[［【「", r):
			depth++
		case strings.ContainsRune(")）]］】」", r):
			if depth > 0 {
				depth--
			}
		case depth == 0 && (r == '、' || r == ',' || r == '，'):
			items = append(items, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteRune(r)
	}
	return append(items, cur.String())
}

// NormalizeInitials reduces a display name to dotted initials, e.g. "T.K".
// Names without Latin letters are returned trimmed.
func NormalizeInitials(s string) string {
	s = strings.TrimSpace(width.Narrow.String(s))

	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return !isLatinLetter(r)
	})
	if len(tokens) == 0 {
		return s
	}

	var letters []string
	if len(tokens) == 1 && len(tokens[0]) <= 3 && strings.ToUpper(tokens[0]) == tokens[0] {
		for _, r := range tokens[0] {
			letters = append(letters, string(r))
		}
	} else {
		for _, tok := range tokens {
			letters = append(letters, strings.ToUpper(tok[:1]))
		}
	}

	return strings.Join(letters, ".")
}

// NormalizeAge keeps the first run of digits, dropping units such as 歳 or 才.
func NormalizeAge(s string) string {
	s = width.Narrow.String(s)

	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			break
		}
	}
	return b.String()
}

func isLatinLetter(r rune) bool {
	return r < unicode.MaxASCII && unicode.IsLetter(r)
}
