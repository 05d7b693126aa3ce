package iadb

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	htmlSniffBytes   = 2000
	htmlPreviewRunes = 160
)

// ErrHTMLPayload marks a success response whose body is an HTML page.
var ErrHTMLPayload = errors.New("upstream returned HTML instead of CSV (blocked, redirected or invalid series code)")

var htmlMarkers = []string{"<!doctype", "<html", "<head"}

// IsHTML reports whether the leading part of body looks like an HTML document.
func IsHTML(body string) bool {
	head := strings.TrimSpace(body)
	if len(head) > htmlSniffBytes {
		head = head[:htmlSniffBytes]
	}
	head = strings.ToLower(head)

	for _, marker := range htmlMarkers {
		if strings.Contains(head, marker) {
			return true
		}
	}
	return false
}

// HTMLPreview extracts something an operator can read from an HTML error page:
// the document title, or the leading visible text.
func HTMLPreview(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return truncate(collapseSpace(body))
	}

	if title := collapseSpace(doc.Find("title").First().Text()); title != "" {
		return truncate(title)
	}
	return truncate(collapseSpace(doc.Find("body").Text()))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= htmlPreviewRunes {
		return s
	}
	return string(r[:htmlPreviewRunes]) + "…"
}
