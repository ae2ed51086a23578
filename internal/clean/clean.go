// Package clean provides total cleaning functions for raw workbook cells and
// column labels. None of these functions ever return an error: malformed input
// degrades to nil (SQL NULL) or passes through unchanged, so a single bad cell
// can never abort a whole import.
//
// The source data uses an asterisk as a suppression marker for redacted
// values; every cleaner maps suppressed input to nil.
package clean

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Marker is the suppression marker used by the source workbooks.
const Marker = "*"

// Percentage converts a raw cell into a float64 percentage value.
//
// Numbers pass through as float64. Strings are trimmed, a trailing percent
// sign is stripped, and the remainder is parsed as a float. Nil, empty,
// suppressed, or unparsable input yields nil.
//
//	"75.5%" -> 75.5
//	"100%"  -> 100.0
//	"*"     -> nil
//	nil     -> nil
func Percentage(value any) any {
	if value == nil {
		return nil
	}
	switch n := value.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}

	s := strings.TrimSpace(fmt.Sprint(value))
	if s == "" || s == Marker {
		return nil
	}
	s = strings.TrimSuffix(s, "%")

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return f
}

// Count converts a raw cell into an int64 count, stripping thousands
// separators first. Fractional numeric input truncates toward zero. Nil,
// empty, suppressed, or unparsable input yields nil.
//
//	"1,250"  -> 1250
//	"10,500" -> 10500
//	"*"      -> nil
func Count(value any) any {
	if value == nil {
		return nil
	}
	switch n := value.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case float32:
		return int64(n)
	}

	s := strings.TrimSpace(fmt.Sprint(value))
	if s == "" {
		return nil
	}
	if strings.Contains(s, Marker) {
		return nil
	}
	s = strings.ReplaceAll(s, ",", "")

	// Parse through float so "1250.0" still lands as 1250.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return int64(f)
}

// Suppressed maps any value containing the suppression marker to nil and
// passes everything else through unchanged. The containment check covers
// compound markers such as "<10*".
func Suppressed(value any) any {
	if value == nil {
		return nil
	}
	if strings.Contains(strings.TrimSpace(fmt.Sprint(value)), Marker) {
		return nil
	}
	return value
}

var (
	sepRun     = regexp.MustCompile(`[/\-\s]+`)
	nonIdent   = regexp.MustCompile(`[^a-z0-9_]`)
	underRun   = regexp.MustCompile(`_+`)
	diacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// NormalizeLabel converts a source column label into a stable snake_case
// identifier. It is total and idempotent.
//
//	"School Name"  -> "school_name"
//	"Low-Income %" -> "low_income_pct"
func NormalizeLabel(name string) string {
	if folded, _, err := transform.String(diacritics, name); err == nil {
		name = folded
	}
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "%", "pct")
	name = sepRun.ReplaceAllString(name, "_")
	name = nonIdent.ReplaceAllString(name, "")
	name = underRun.ReplaceAllString(name, "_")
	return strings.Trim(name, "_")
}
