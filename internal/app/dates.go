package app

import (
	"strings"
	"time"
)

const isoDate = "2006-01-02"

// Accepted stay-date layouts, tried in order.
var dateLayouts = []string{"2006-1-2", "1/2/2006", "1-2-2006", "2006/1/2"}

// DateNormalization reports what NormalizeDates changed.
type DateNormalization struct {
	UsedDefault bool
	Normalized  bool
}

// NormalizeDates parses check-in/out in any accepted layout and returns ISO
// dates. Missing or unparsable input yields tomorrow and the day after
// relative to today; a check-out not after check-in becomes check-in + 1.
func NormalizeDates(today time.Time, checkIn, checkOut *string) (string, string, DateNormalization) {
	var meta DateNormalization
	useDefault := func() (string, string, DateNormalization) {
		meta.UsedDefault = true
		d := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
		return d.AddDate(0, 0, 1).Format(isoDate), d.AddDate(0, 0, 2).Format(isoDate), meta
	}

	if checkIn == nil || checkOut == nil || strings.TrimSpace(*checkIn) == "" || strings.TrimSpace(*checkOut) == "" {
		return useDefault()
	}
	in, okIn := parseDate(*checkIn)
	out, okOut := parseDate(*checkOut)
	if !okIn || !okOut {
		return useDefault()
	}

	meta.Normalized = *checkIn != in.Format(isoDate) || *checkOut != out.Format(isoDate)
	if !out.After(in) {
		out = in.AddDate(0, 0, 1)
		meta.Normalized = true
	}
	return in.Format(isoDate), out.Format(isoDate), meta
}

func parseDate(raw string) (time.Time, bool) {
	v := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
