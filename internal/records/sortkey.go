package records

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/width"
)

const sortKeyDigits = 8

var receivedAtLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02 15:04:05",
	"2006/1/2 15:04",
	"2006/1/2 15:04:05",
	"2006-1-2 15:04",
	"2006-01-02",
	"2006/01/02",
	"2006/1/2",
	time.RFC3339,
}

// SortKey derives the YYYYMMDD integer used to order and prune index entries.
// Known date layouts are parsed first so that unpadded months and days still
// produce the right key; anything else falls back to the first eight digits
// left after stripping separators.
func SortKey(receivedAt string) (int, error) {
	s := strings.TrimSpace(width.Narrow.String(receivedAt))
	if s == "" {
		return 0, fmt.Errorf("received-at is empty")
	}

	for _, layout := range receivedAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Year()*10000 + int(t.Month())*100 + t.Day(), nil
		}
	}

	var digits strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			digits.WriteRune(r)
			if digits.Len() == sortKeyDigits {
				break
			}
		}
	}

	if digits.Len() < sortKeyDigits {
		return 0, fmt.Errorf("received-at %q has fewer than %d digits", receivedAt, sortKeyDigits)
	}

	return strconv.Atoi(digits.String())
}

// ParseDateBound converts a filter bound (YYYY-MM-DD, YYYY/MM/DD or YYYYMMDD)
// into a sort key. Empty input yields zero.
func ParseDateBound(s string) (int, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return SortKey(s)
}
