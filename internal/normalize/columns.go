package normalize

import "strings"

// columnRole is the meaning a table column carries for an observation.
type columnRole int

const (
	dateColumn columnRole = iota
	seriesColumn
	valueColumn
)

var headerAliases = map[string]columnRole{
	"DATE":             dateColumn,
	"OBS_DATE":         dateColumn,
	"OBSERVATION_DATE": dateColumn,
	"SERIES":           seriesColumn,
	"SERIES_ID":        seriesColumn,
	"SERIESCODE":       seriesColumn,
	"SERIES_CODE":      seriesColumn,
	"CODE":             seriesColumn,
	"VALUE":            valueColumn,
	"OBS_VALUE":        valueColumn,
}

// columnLayout holds the record index of each role.
type columnLayout struct {
	date   int
	series int
	value  int
}

var positionalLayout = columnLayout{date: 0, series: 1, value: 2}

func (l columnLayout) width() int {
	w := l.date
	if l.series > w {
		w = l.series
	}
	if l.value > w {
		w = l.value
	}
	return w + 1
}

func normalizeHeader(cell string) string {
	return strings.ToUpper(strings.Join(strings.Fields(cell), ""))
}

// detectLayout inspects the first record. It reports whether the record is a
// header row and the layout to use for the rows that follow.
func detectLayout(first []string) (columnLayout, bool) {
	found := map[columnRole]int{}
	for i, cell := range first {
		role, ok := headerAliases[normalizeHeader(cell)]
		if !ok {
			continue
		}
		if _, dup := found[role]; !dup {
			found[role] = i
		}
	}

	if len(found) == 0 {
		return positionalLayout, false
	}
	if len(found) < 3 {
		// A partial match whose date cell holds a date is data that happens
		// to contain a code like CODE or SERIES.
		if len(first) > positionalLayout.date && looksLikeDate(first[positionalLayout.date]) {
			return positionalLayout, false
		}
		return positionalLayout, true
	}

	return columnLayout{
		date:   found[dateColumn],
		series: found[seriesColumn],
		value:  found[valueColumn],
	}, true
}
