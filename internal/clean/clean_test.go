package clean

import "testing"

func TestPercentage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"empty string", "", nil},
		{"suppressed", "*", nil},
		{"plain percent", "75.5%", 75.5},
		{"hundred percent", "100%", 100.0},
		{"no sign", "42.5", 42.5},
		{"whitespace", "  88% ", 88.0},
		{"float passthrough", 12.5, 12.5},
		{"int passthrough", 80, 80.0},
		{"unparsable", "n/a", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Percentage(tt.in); got != tt.want {
				t.Errorf("Percentage(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"empty string", "", nil},
		{"suppressed", "*", nil},
		{"compound suppressed", "<10*", nil},
		{"plain", "500", int64(500)},
		{"thousands comma", "1,250", int64(1250)},
		{"two separators", "10,500", int64(10500)},
		{"decimal truncates", "1250.7", int64(1250)},
		{"float passthrough", 1250.0, int64(1250)},
		{"int passthrough", 42, int64(42)},
		{"unparsable", "many", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Count(tt.in); got != tt.want {
				t.Errorf("Count(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCountSeparatorEquivalence(t *testing.T) {
	t.Parallel()

	// Stripping separators by hand must match Count's own handling.
	pairs := [][2]string{
		{"1,250", "1250"},
		{"10,500", "10500"},
		{"1,000,000", "1000000"},
	}
	for _, p := range pairs {
		if Count(p[0]) != Count(p[1]) {
			t.Errorf("Count(%q) = %v, Count(%q) = %v; want equal",
				p[0], Count(p[0]), p[1], Count(p[1]))
		}
	}
}

func TestSuppressed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"bare marker", "*", nil},
		{"padded marker", " * ", nil},
		{"compound marker", "<10*", nil},
		{"clean string", "75.5", "75.5"},
		{"clean number", 12, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Suppressed(tt.in); got != tt.want {
				t.Errorf("Suppressed(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"School Name", "school_name"},
		{"Total Enrollment", "total_enrollment"},
		{"Low-Income %", "low_income_pct"},
		{"ELA/Math Proficiency", "ela_math_proficiency"},
		{"  # Chronic   Truancy  ", "chronic_truancy"},
		{"Crèvecœur École", "crevecur_ecole"},
		{"", ""},
		{"###", ""},
		{"___", ""},
		{"already_normalized", "already_normalized"},
	}
	for _, tt := range tests {
		if got := NormalizeLabel(tt.in); got != tt.want {
			t.Errorf("NormalizeLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
