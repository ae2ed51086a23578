package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if issues := Validate(Default()); len(issues) != 0 {
		t.Fatalf("default config has issues: %v", issues)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
  "store": {"kind": "postgres", "dsn": "postgres://localhost/reportcard"},
  "import": {"primary_sheet": "Data", "sample_cap": 500}
}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Kind != "postgres" || cfg.Store.DSN != "postgres://localhost/reportcard" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Import.PrimarySheet != "Data" || cfg.Import.SampleCap != 500 {
		t.Errorf("import = %+v", cfg.Import)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Metrics.Backend != "none" {
		t.Errorf("metrics backend = %q, want default", cfg.Metrics.Backend)
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Errorf("Load(\"\") = %+v, want defaults", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("REPORTCARD_DSN", "file:env?mode=memory")
	t.Setenv("PUSHGATEWAY_URL", "http://push.example:9091")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.DSN != "file:env?mode=memory" {
		t.Errorf("DSN = %q", cfg.Store.DSN)
	}
	if cfg.Metrics.PushgatewayURL != "http://push.example:9091" {
		t.Errorf("pushgateway URL = %q", cfg.Metrics.PushgatewayURL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("Load succeeded on a missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		wantPath string
		severity Severity
	}{
		{"unknown store kind", func(c *Config) { c.Store.Kind = "oracle" }, "store.kind", SeverityError},
		{"empty store kind", func(c *Config) { c.Store.Kind = "" }, "store.kind", SeverityError},
		{"empty dsn", func(c *Config) { c.Store.DSN = "" }, "store.dsn", SeverityError},
		{"empty sheet", func(c *Config) { c.Import.PrimarySheet = "" }, "import.primary_sheet", SeverityError},
		{"negative sample cap", func(c *Config) { c.Import.SampleCap = -1 }, "import.sample_cap", SeverityError},
		{"unknown metrics backend", func(c *Config) { c.Metrics.Backend = "statsd" }, "metrics.backend", SeverityWarning},
		{"pushgateway without url", func(c *Config) {
			c.Metrics.Backend = "pushgateway"
			c.Metrics.PushgatewayURL = ""
		}, "metrics.pushgateway_url", SeverityError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			issues := Validate(cfg)
			found := false
			for _, iss := range issues {
				if iss.Path == tt.wantPath && iss.Severity == tt.severity {
					found = true
				}
			}
			if !found {
				t.Errorf("no %s issue at %s in %v", tt.severity, tt.wantPath, issues)
			}
		})
	}
}
