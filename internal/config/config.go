// Package config defines the JSON-serializable configuration for the report
// card binaries. It is intentionally small and decoded with the standard
// library; a file is optional and every field has a usable default, with a
// couple of environment overrides for deployment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the top-level configuration object.
type Config struct {
	// Store selects and configures the database backend.
	Store Store `json:"store"`

	// Import configures the workbook import pipeline.
	Import Import `json:"import"`

	// Metrics configures the optional metrics backend.
	Metrics Metrics `json:"metrics"`
}

// Store selects the database backend.
type Store struct {
	// Kind is the registered backend name: "sqlite" or "postgres".
	Kind string `json:"kind"`

	// DSN is the backend connection string. Overridable via the
	// REPORTCARD_DSN environment variable.
	DSN string `json:"dsn"`
}

// Import holds import pipeline knobs.
type Import struct {
	// PrimarySheet is the worksheet the pipeline reads. The import fails
	// if this sheet is absent or empty.
	PrimarySheet string `json:"primary_sheet"`

	// SampleCap bounds how many rows feed type inference per column.
	// Zero means all rows.
	SampleCap int `json:"sample_cap"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	// Backend is "pushgateway" or "none".
	Backend string `json:"backend"`

	// PushgatewayURL is the Pushgateway base URL. Overridable via the
	// PUSHGATEWAY_URL environment variable.
	PushgatewayURL string `json:"pushgateway_url"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Store:   Store{Kind: "sqlite", DSN: "reportcard.db"},
		Import:  Import{PrimarySheet: "General"},
		Metrics: Metrics{Backend: "none", PushgatewayURL: "http://localhost:9091"},
	}
}

// Load reads a JSON config file over the defaults and applies environment
// overrides. path may be empty.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("config: open: %w", err)
		}
		defer f.Close()
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	if dsn := os.Getenv("REPORTCARD_DSN"); dsn != "" {
		cfg.Store.DSN = dsn
	}
	if url := os.Getenv("PUSHGATEWAY_URL"); url != "" {
		cfg.Metrics.PushgatewayURL = url
	}
	return cfg, nil
}
