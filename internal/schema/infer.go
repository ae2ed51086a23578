package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kpfister44/illinois-report-card-api/internal/clean"
)

// percentTokens mark a column as percentage-typed by name alone. Naming wins
// over sample analysis here: percentage columns are frequently fully
// suppressed and therefore show no numeric samples at all.
var percentTokens = []string{"pct", "percent", "rate"}

// InferType guesses the storage type of a column from its normalized label
// and a sample of raw values. The heuristic is deliberately conservative:
// every non-null sample must satisfy a narrower type for it to be chosen,
// because widening a type later is cheaper than narrowing one.
func InferType(label string, samples []any) Type {
	name := strings.ToLower(label)
	for _, tok := range percentTokens {
		if strings.Contains(name, tok) {
			return TypePercentage
		}
	}

	vals := nonNull(samples)
	if len(vals) == 0 {
		return TypeText
	}
	if allMatch(vals, isInteger) {
		return TypeInteger
	}
	if allMatch(vals, isReal) {
		return TypeReal
	}
	return TypeText
}

// nonNull drops nils, blanks, and suppressed values. Suppressed markers
// clean to NULL before insertion, so they must not influence the type either;
// otherwise a single redacted cell would demote a numeric column to text.
func nonNull(samples []any) []any {
	out := make([]any, 0, len(samples))
	for _, v := range samples {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			s = strings.TrimSpace(s)
			if s == "" || strings.Contains(s, clean.Marker) {
				continue
			}
		}
		out = append(out, v)
	}
	return out
}

func allMatch(vals []any, fn func(any) bool) bool {
	for _, v := range vals {
		if !fn(v) {
			return false
		}
	}
	return true
}

// isInteger accepts native integers and strings that parse as signed base-10
// integers after thousands separators are stripped. Floats are never
// integers, even when they carry no fractional part, so a single "75.0"
// sample demotes the column to real.
func isInteger(v any) bool {
	switch v.(type) {
	case int, int64:
		return true
	case float64, float32:
		return false
	}
	s := strings.ReplaceAll(strings.TrimSpace(fmt.Sprint(v)), ",", "")
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// isReal accepts any native number and strings parseable as floats.
func isReal(v any) bool {
	switch v.(type) {
	case int, int64, float64, float32:
		return true
	}
	s := strings.ReplaceAll(strings.TrimSpace(fmt.Sprint(v)), ",", "")
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// categoryKeywords maps each category to the label keywords that select it.
// categoryOrder fixes the priority: some keyword sets overlap, so categories
// must be checked in a stable order for reproducible inference.
var categoryKeywords = map[Category][]string{
	CategoryDemographics: {
		"white", "black", "hispanic", "asian", "race", "ethnicity",
		"economically_disadvantaged", "low_income", "poverty",
		"iep", "special_education", "disability",
		"ell", "english_learner", "lep", "limited_english",
		"gender", "male", "female",
	},
	CategoryAssessment: {
		"act", "sat", "iar", "parcc", "psat",
		"proficient", "proficiency", "test", "exam", "assessment",
		"score", "ela", "math", "reading", "writing", "science",
	},
	CategoryEnrollment: {"enrollment", "student_count", "students"},
	CategoryAttendance: {"attendance", "truancy", "absent", "present"},
	CategoryGraduation: {"graduation", "graduate", "dropout", "cohort"},
}

var categoryOrder = []Category{
	CategoryDemographics,
	CategoryAssessment,
	CategoryEnrollment,
	CategoryAttendance,
	CategoryGraduation,
}

// InferCategory classifies a column by its normalized label. Identifier
// columns are recognized first; after that the keyword sets are checked in
// priority order and the first match wins.
func InferCategory(label string) Category {
	name := strings.ToLower(label)

	if isIdentifierLabel(name) {
		return CategoryIdentifier
	}
	for _, cat := range categoryOrder {
		for _, kw := range categoryKeywords[cat] {
			if strings.Contains(name, kw) {
				return cat
			}
		}
	}
	return CategoryOther
}

// isIdentifierLabel matches the durable external identifier columns (RCDTS
// codes and plain id fields) without tripping on labels that merely contain
// the letters "id".
func isIdentifierLabel(name string) bool {
	return strings.Contains(name, "rcdts") || name == "id" || strings.HasSuffix(name, "_id")
}
