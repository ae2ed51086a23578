package config

import "fmt"

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding with a JSON-path-ish location.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// Validate checks a configuration and returns all findings. Callers should
// refuse to run when any issue has SeverityError.
func Validate(cfg Config) []Issue {
	var issues []Issue

	switch cfg.Store.Kind {
	case "sqlite", "postgres":
	case "":
		issues = append(issues, Issue{SeverityError, "store.kind", "store kind is required"})
	default:
		issues = append(issues, Issue{SeverityError, "store.kind",
			fmt.Sprintf("unknown store kind %q (want sqlite or postgres)", cfg.Store.Kind)})
	}

	if cfg.Store.DSN == "" {
		issues = append(issues, Issue{SeverityError, "store.dsn", "DSN is required"})
	}
	if cfg.Import.PrimarySheet == "" {
		issues = append(issues, Issue{SeverityError, "import.primary_sheet", "primary sheet name is required"})
	}
	if cfg.Import.SampleCap < 0 {
		issues = append(issues, Issue{SeverityError, "import.sample_cap", "sample cap must not be negative"})
	}

	switch cfg.Metrics.Backend {
	case "", "none", "pushgateway":
	default:
		issues = append(issues, Issue{SeverityWarning, "metrics.backend",
			fmt.Sprintf("unknown metrics backend %q, metrics will be disabled", cfg.Metrics.Backend)})
	}
	if cfg.Metrics.Backend == "pushgateway" && cfg.Metrics.PushgatewayURL == "" {
		issues = append(issues, Issue{SeverityError, "metrics.pushgateway_url",
			"pushgateway URL is required when the pushgateway backend is selected"})
	}

	return issues
}
