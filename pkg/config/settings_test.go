package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := LoadSettings("")
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if s.Explore.Strategy != "exhaustive" {
		t.Errorf("expected exhaustive default, got %q", s.Explore.Strategy)
	}
	if s.Paths.Database != "paramforge.db" {
		t.Errorf("unexpected database default %q", s.Paths.Database)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadSettings_File(t *testing.T) {
	s, err := LoadSettings(filepath.Join("testdata", "settings.yaml"))
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}

	if s.Telemetry.ServiceVersion != "1.2.0" || s.Telemetry.Environment != "ci" {
		t.Errorf("unexpected service identity %+v", s.Telemetry)
	}
	if s.Telemetry.Logging.Level != "debug" || s.Telemetry.Logging.Format != "json" {
		t.Errorf("unexpected logging %+v", s.Telemetry.Logging)
	}
	if s.Telemetry.Tracing.ExportTimeout != 10*time.Second {
		t.Errorf("expected 10s export timeout, got %v", s.Telemetry.Tracing.ExportTimeout)
	}
	if s.Telemetry.Metrics.ListenAddress != ":9464" {
		t.Errorf("unexpected metrics address %q", s.Telemetry.Metrics.ListenAddress)
	}
	if s.Explore.Strategy != "random" || s.Explore.Walks != 200 || s.Explore.Target != 50 || s.Explore.Workers != 4 {
		t.Errorf("unexpected explore settings %+v", s.Explore)
	}
	// Keys absent from the file keep their defaults.
	if s.Explore.WalkRetries != 20 || s.Explore.ProgressEvery != 100_000 {
		t.Errorf("expected untouched defaults, got %+v", s.Explore)
	}
	if s.Paths.Output != "./out" || s.Paths.Database != "./runs.db" {
		t.Errorf("unexpected paths %+v", s.Paths)
	}
}

func TestLoadSettings_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "unknown key",
			content: "explore:\n  stratgy: random\n",
			want:    "stratgy",
		},
		{
			name:    "bad strategy",
			content: "explore:\n  strategy: greedy\n",
			want:    "Strategy",
		},
		{
			name:    "negative walks",
			content: "explore:\n  walks: -1\n",
			want:    "Walks",
		},
		{
			name:    "bad log level",
			content: "telemetry:\n  logging:\n    level: loud\n",
			want:    "log level",
		},
		{
			name:    "otlp without endpoint",
			content: "telemetry:\n  tracing:\n    enabled: true\n    exporter: otlp\n",
			want:    "endpoint",
		},
		{
			name:    "empty database",
			content: "paths:\n  database: \"\"\n",
			want:    "Database",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "settings.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadSettings(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error to mention %q, got: %v", tt.want, err)
			}
		})
	}
}
