// Package dates turns the date strings found in bank exports into comparable calendar dates.
package dates

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Layouts accepted by Normalize, tried in order. Day and month accept one or two digits
// and month abbreviations are matched case-insensitively.
var layouts = []string{
	"2006-1-2",   // YYYY-MM-DD
	"1/2/2006",   // MM/DD/YYYY
	"1-2-2006",   // MM-DD-YYYY
	"2-Jan-2006", // DD-Mon-YYYY
	"2006/1/2",   // YYYY/MM/DD
}

// Normalize parses s against the accepted layouts and returns the first successful
// parse. ok is false for empty or unparseable input; no error is reported.
func Normalize(s string) (d civil.Date, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return civil.Date{}, false
	}
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return civil.DateOf(t), true
	}
	return civil.Date{}, false
}

// DaysApart returns the absolute number of days between a and b.
func DaysApart(a, b civil.Date) int {
	n := a.DaysSince(b)
	if n < 0 {
		return -n
	}
	return n
}
