package parsing

import (
	"strings"
	"time"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/cleanup"
)

// French month names and abbreviations, accents already folded.
var frenchMonths = map[string]string{
	"janvier":   "january",
	"janv":      "jan",
	"fevrier":   "february",
	"fevr":      "feb",
	"fev":       "feb",
	"mars":      "march",
	"avril":     "april",
	"avr":       "apr",
	"mai":       "may",
	"juin":      "june",
	"juillet":   "july",
	"juil":      "jul",
	"aout":      "august",
	"septembre": "september",
	"sept":      "sep",
	"octobre":   "october",
	"novembre":  "november",
	"decembre":  "december",
	"dec":       "dec",
}

var numericLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"02/01/2006 15:04:05",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
}

var namedLayouts = []string{
	"2 January 2006 15:04:05",
	"2 January 2006 15:04",
	"2 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"Monday 2 January 2006",
	"Monday, January 2, 2006",
}

// ParseDate reads ISO, day-first numeric and English or French month-name
// dates. The result is in UTC.
func ParseDate(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}

	for _, layout := range numericLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.UTC(), true
		}
	}

	normalized := normalizeMonthWords(text)
	for _, layout := range namedLayouts {
		if t, err := time.Parse(layout, normalized); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// normalizeMonthWords folds accents, maps French words to English and drops
// the "le" article and "1er" ordinal.
func normalizeMonthWords(text string) string {
	dateCleaner := cleanup.MustCreate(cleanup.ProfileDate)
	words := strings.Fields(dateCleaner.Process(text))

	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSuffix(w, ".")
		switch {
		case w == "le":
			continue
		case w == "1er":
			w = "1"
		case frenchDays[w]:
			continue
		}
		if en, ok := frenchMonths[w]; ok {
			w = en
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

var frenchDays = map[string]bool{
	"lundi": true, "mardi": true, "mercredi": true, "jeudi": true,
	"vendredi": true, "samedi": true, "dimanche": true,
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
