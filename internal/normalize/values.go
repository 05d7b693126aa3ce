package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// missingTokens are upstream placeholders for "no observation".
var missingTokens = map[string]struct{}{
	"":              {},
	"..":            {},
	"n/a":           {},
	"na":            {},
	"not available": {},
}

// decimalPattern matches plain decimal or exponent notation; hex floats and
// digit separators do not match.
var decimalPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

func parseValue(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if _, missing := missingTokens[strings.ToLower(raw)]; missing {
		return 0, false
	}
	if !decimalPattern.MatchString(raw) {
		return 0, false
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
