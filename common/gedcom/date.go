package gedcom

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var months = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

var monthTags = [13]string{"", "JAN", "FEB", "MAR", "APR", "MAY", "JUN",
	"JUL", "AUG", "SEP", "OCT", "NOV", "DEC"}

// ParseDate parses a GEDCOM date value best-effort. It accepts ISO-like
// (2006-01-02) and "DD MON YYYY" forms, plus the partial "MON YYYY" and
// "YYYY" forms which come back flagged estimated, as do values carrying an
// ABT/EST/CAL qualifier. Anything else returns ok=false; callers leave the
// date unset rather than failing the record.
func ParseDate(value string) (date time.Time, estimated bool, ok bool) {
	s := strings.ToUpper(strings.TrimSpace(value))
	if s == "" {
		return time.Time{}, false, false
	}

	for _, qualifier := range []string{"ABT ", "EST ", "CAL "} {
		if strings.HasPrefix(s, qualifier) {
			estimated = true
			s = strings.TrimSpace(strings.TrimPrefix(s, qualifier))
			break
		}
	}

	// ISO-like
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), estimated, true
	}

	fields := strings.Fields(s)
	switch len(fields) {
	case 3: // DD MON YYYY
		day, err := strconv.Atoi(fields[0])
		if err != nil {
			return time.Time{}, false, false
		}
		month, found := months[fields[1]]
		if !found {
			return time.Time{}, false, false
		}
		year, err := strconv.Atoi(fields[2])
		if err != nil {
			return time.Time{}, false, false
		}
		if day < 1 || day > 31 {
			return time.Time{}, false, false
		}
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), estimated, true
	case 2: // MON YYYY
		month, found := months[fields[0]]
		if !found {
			return time.Time{}, false, false
		}
		year, err := strconv.Atoi(fields[1])
		if err != nil {
			return time.Time{}, false, false
		}
		return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), true, true
	case 1: // YYYY
		year, err := strconv.Atoi(fields[0])
		if err != nil || year < 1 {
			return time.Time{}, false, false
		}
		return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), true, true
	}

	return time.Time{}, false, false
}

// FormatDate renders a date in the canonical "DD MON YYYY" form
func FormatDate(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%02d %s %d", t.Day(), monthTags[int(t.Month())], t.Year())
}
