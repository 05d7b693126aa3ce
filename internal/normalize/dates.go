package normalize

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"EconomicPulse/internal/domain"
)

// strictLayout is the upstream's documented date format, e.g. "31 Jan 1990".
const strictLayout = "2 Jan 2006"

var lenientLayouts = []string{
	"2/Jan/2006",
	"2-Jan-2006",
	"2 January 2006",
	"2/1/2006",
	"2-1-2006",
	"2006-01-02",
}

func parseStrictDate(raw string) (time.Time, bool) {
	t, err := time.Parse(strictLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, false
	}
	return domain.DateOf(t), true
}

// parseLenientDate accepts any common day-first rendering of a date.
func parseLenientDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	for _, layout := range lenientLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return domain.DateOf(t), true
		}
	}

	t, err := dateparse.ParseAny(raw, dateparse.PreferMonthFirst(false))
	if err != nil {
		return time.Time{}, false
	}
	return domain.DateOf(t), true
}

func looksLikeDate(raw string) bool {
	if _, ok := parseStrictDate(raw); ok {
		return true
	}
	_, ok := parseLenientDate(raw)
	return ok
}
