package normalize

import "strings"

// headerScanLimit bounds how far into the payload a header is searched for.
const headerScanLimit = 200

const byteOrderMark = "\ufeff"

var headerTokens = []string{"date", "series", "value"}

// ExtractTable locates the delimited data table inside an upstream payload.
// Leading notices are discarded. When no header-like line is found the
// cleaned text is returned whole so the parser can fail explicitly.
func ExtractTable(raw string) string {
	lines := nonBlankLines(strings.TrimPrefix(raw, byteOrderMark))
	if len(lines) == 0 {
		return ""
	}

	limit := len(lines)
	if limit > headerScanLimit {
		limit = headerScanLimit
	}

	start := -1
	for i := 0; i < limit; i++ {
		if isHeaderLine(lines[i]) {
			start = i
			break
		}
	}

	if start < 0 {
		for i := 0; i < limit; i++ {
			if strings.Count(lines[i], ",") >= 2 {
				start = i
				break
			}
		}
	}

	if start < 0 {
		start = 0
	}

	return strings.Join(lines[start:], "\n")
}

func nonBlankLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func isHeaderLine(line string) bool {
	if !strings.Contains(line, ",") {
		return false
	}

	compact := strings.ToLower(strings.Join(strings.Fields(line), ""))
	for _, token := range headerTokens {
		if !strings.Contains(compact, token) {
			return false
		}
	}
	return true
}
