package clean

import (
	"regexp"
	"testing"

	"github.com/dustin/go-humanize"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var identShape = regexp.MustCompile(`^[a-z0-9_]*$`)

func TestNormalizeLabelProperties(t *testing.T) {
	t.Parallel()

	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	properties.Property("idempotent", prop.ForAll(
		func(s string) bool {
			once := NormalizeLabel(s)
			return NormalizeLabel(once) == once
		},
		gen.AnyString(),
	))

	properties.Property("output is a snake_case identifier", prop.ForAll(
		func(s string) bool {
			out := NormalizeLabel(s)
			if !identShape.MatchString(out) {
				return false
			}
			return out == "" || (out[0] != '_' && out[len(out)-1] != '_')
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestCountProperties(t *testing.T) {
	t.Parallel()

	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	// Bounded so the intermediate float64 parse stays exact.
	properties.Property("round-trips comma-grouped integers", prop.ForAll(
		func(n int64) bool {
			return Count(humanize.Comma(n)) == n
		},
		gen.Int64Range(-1_000_000_000_000, 1_000_000_000_000),
	))

	properties.TestingRun(t)
}
