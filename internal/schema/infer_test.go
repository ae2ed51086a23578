package schema

import "testing"

func TestInferType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		label   string
		samples []any
		want    Type
	}{
		{"pct token wins over samples", "low_income_pct", []any{"abc", "def"}, TypePercentage},
		{"percent token", "percent_proficient", nil, TypePercentage},
		{"rate token", "graduation_rate", []any{"91.2"}, TypePercentage},
		{"pct wins when fully suppressed", "ell_pct", []any{"*", "*"}, TypePercentage},
		{"all integers", "total_enrollment", []any{"500", "1,250", "42"}, TypeInteger},
		{"native integers", "student_count", []any{int64(10), 20}, TypeInteger},
		{"one float demotes to real", "avg_class_size", []any{"21", "22.5"}, TypeReal},
		{"native float is real", "composite", []any{75.0}, TypeReal},
		{"mixed text", "school_name", []any{"Lincoln Elem", "42"}, TypeText},
		{"no samples", "notes", nil, TypeText},
		{"only blanks and suppressed", "district_name", []any{"", "*", "  "}, TypeText},
		{"suppressed does not demote integers", "chronic_absences", []any{"500", "*", "1,250"}, TypeInteger},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := InferType(tt.label, tt.samples); got != tt.want {
				t.Errorf("InferType(%q, %v) = %q, want %q", tt.label, tt.samples, got, tt.want)
			}
		})
	}
}

func TestInferCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label string
		want  Category
	}{
		{"rcdts", CategoryIdentifier},
		{"school_rcdts_code", CategoryIdentifier},
		{"id", CategoryIdentifier},
		{"district_id", CategoryIdentifier},
		{"low_income_pct", CategoryDemographics},
		{"pct_white", CategoryDemographics},
		{"iep_students", CategoryDemographics}, // demographics outranks enrollment
		{"math_proficiency", CategoryAssessment},
		{"sat_reading_score", CategoryAssessment},
		{"total_enrollment", CategoryEnrollment},
		{"student_count", CategoryEnrollment},
		{"attendance_rate", CategoryAttendance},
		{"chronic_truancy", CategoryAttendance},
		{"graduation_rate_4yr", CategoryGraduation},
		{"dropout_count", CategoryGraduation},
		{"school_name", CategoryOther},
		{"city", CategoryOther},
	}
	for _, tt := range tests {
		if got := InferCategory(tt.label); got != tt.want {
			t.Errorf("InferCategory(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
}

func TestSQLType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		typ  Type
		want string
	}{
		{TypeInteger, "BIGINT"},
		{TypeReal, "DOUBLE PRECISION"},
		{TypePercentage, "DOUBLE PRECISION"},
		{TypeText, "TEXT"},
	}
	for _, tt := range tests {
		if got := tt.typ.SQLType(); got != tt.want {
			t.Errorf("%q.SQLType() = %q, want %q", tt.typ, got, tt.want)
		}
	}
}
