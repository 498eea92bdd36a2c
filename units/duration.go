// Normalization of the textual encodings sacct uses for durations, byte quantities, and memory
// requests.
//
// Everything here is lenient: a token that cannot be understood produces a neutral value (zero)
// and a false `ok`, and callers are expected to count those with a Leniency.  Nothing here fails a
// row.

package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	timestampLayout = "2006-01-02T15:04:05"
	secondsPerDay   = 24 * 3600
)

// Timestamps in duration columns are measured from the beginning of the proleptic calendar, the
// same reference point the accounting data was originally normalized against.
var durationEpoch = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)

// ParseDuration converts a duration token to seconds.  Three syntaxes are recognized by structural
// cues:
//
//	yyyy-mm-ddThh:mm:ss    (contains T)  seconds since durationEpoch
//	D-[[HH:]MM:]SS         (contains -)  days*86400 + the rest
//	[[HH:]MM:]SS[.frac]                  right-to-left with multipliers 1, 60, 3600
//
// Unparsable fragments contribute zero and make ok false; the other fragments are still used.
func ParseDuration(s string) (seconds float64, ok bool) {
	if strings.Contains(s, "T") {
		t, err := time.Parse(timestampLayout, s)
		if err != nil {
			return 0, false
		}
		// time.Duration overflows at ~292 years so go via Unix seconds.
		return float64(t.Unix() - durationEpoch.Unix()), true
	}

	ok = true
	hms := s
	var days float64
	if d, rest, found := strings.Cut(s, "-"); found {
		n, err := strconv.ParseInt(strings.TrimSpace(d), 10, 64)
		if err != nil {
			ok = false
		} else {
			days = float64(n)
		}
		hms = rest
	}
	secs, hok := hmsToSeconds(hms)
	return days*secondsPerDay + secs, ok && hok
}

var hmsMultipliers = [...]float64{1, 60, 3600}

// Only the last three colon-separated fields are significant.
func hmsToSeconds(hms string) (float64, bool) {
	fields := strings.Split(hms, ":")
	ok := true
	var seconds float64
	for i := 0; i < len(hmsMultipliers) && i < len(fields); i++ {
		x, good := ParseNumber(fields[len(fields)-1-i])
		if !good {
			ok = false
			continue
		}
		seconds += x * hmsMultipliers[i]
	}
	return seconds, ok
}

// FormatDuration is the inverse of ParseDuration for the D-HH:MM:SS and HH:MM:SS forms.  Seconds
// are rounded to the nearest integer; negative values are clamped to zero.
func FormatDuration(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(math.Round(seconds))
	days := total / secondsPerDay
	total %= secondsPerDay
	h, m, s := total/3600, (total%3600)/60, total%60
	if days > 0 {
		return fmt.Sprintf("%d-%02d:%02d:%02d", days, h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// ParseNumber is strconv.ParseFloat with surrounding space trimmed and NaN/Inf rejected.
func ParseNumber(s string) (float64, bool) {
	x, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, false
	}
	return x, true
}
