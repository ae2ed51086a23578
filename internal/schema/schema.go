// Package schema infers column storage types and semantic categories for
// report card workbooks whose column sets change from year to year.
package schema

// Type is the logical storage type inferred for a column. Percentage is a
// REAL-flavored type of its own so that the importer can pick the percentage
// cleaner even when every sample for the column is suppressed.
type Type string

const (
	TypeText       Type = "text"
	TypeInteger    Type = "integer"
	TypeReal       Type = "real"
	TypePercentage Type = "percentage"
)

// SQLType maps a logical type onto a SQL column type understood by both
// supported dialects.
func (t Type) SQLType() string {
	switch t {
	case TypeInteger:
		return "BIGINT"
	case TypeReal, TypePercentage:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

// Category is the semantic grouping of a column, derived from its label.
type Category string

const (
	CategoryIdentifier   Category = "identifier"
	CategoryDemographics Category = "demographics"
	CategoryAssessment   Category = "assessment"
	CategoryEnrollment   Category = "enrollment"
	CategoryAttendance   Category = "attendance"
	CategoryGraduation   Category = "graduation"
	CategoryOther        Category = "other"
)

// Column describes one inferred partition column. Name is the normalized
// identifier; SourceLabel is the original workbook header.
type Column struct {
	Name        string
	Type        Type
	Category    Category
	SourceLabel string

	// Suppressed records whether any raw sample for the column contained
	// the suppression marker.
	Suppressed bool
}
