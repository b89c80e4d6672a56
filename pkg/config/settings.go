package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/paramforge/paramforge/pkg/telemetry"
)

// Settings is the tool configuration file passed with --config.
type Settings struct {
	// Telemetry configures logging, tracing and metrics.
	Telemetry telemetry.Config `yaml:"telemetry"`

	// Explore holds defaults for the explore command.
	Explore ExploreSettings `yaml:"explore"`

	// Paths locates metadata, artifacts and the exploration database.
	Paths PathSettings `yaml:"paths"`
}

// ExploreSettings are defaults for exploration runs; flags override them.
type ExploreSettings struct {
	Strategy      string `yaml:"strategy" validate:"omitempty,oneof=exhaustive random"`
	Walks         int    `yaml:"walks" validate:"gte=0"`
	WalkRetries   int    `yaml:"walk_retries" validate:"gte=0"`
	Target        int    `yaml:"target" validate:"gte=0"`
	MaxAttempts   int    `yaml:"max_attempts"`
	Workers       int    `yaml:"workers" validate:"gte=0,lte=1024"`
	ProgressEvery int64  `yaml:"progress_every" validate:"gte=0"`
	PingPong      bool   `yaml:"pingpong"`

	// PolicyDir holds Rego filters applied to every exploration.
	PolicyDir string `yaml:"policy_dir,omitempty"`
}

// PathSettings locates files used by the commands.
type PathSettings struct {
	// Metadata is a directory of scripted component declarations.
	Metadata string `yaml:"metadata,omitempty"`

	// Output is where resolved artifacts are written.
	Output string `yaml:"output" validate:"required"`

	// Database is the SQLite file of saved explorations.
	Database string `yaml:"database" validate:"required"`
}

// DefaultSettings returns the settings used without a configuration file.
func DefaultSettings() *Settings {
	return &Settings{
		Telemetry: *telemetry.DefaultConfig(),
		Explore: ExploreSettings{
			Strategy:      "exhaustive",
			Walks:         100,
			WalkRetries:   20,
			Target:        100,
			Workers:       1,
			ProgressEvery: 100_000,
		},
		Paths: PathSettings{
			Output:   ".",
			Database: "paramforge.db",
		},
	}
}

// LoadSettings reads path over the defaults and validates the result.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil {
		return nil, yamlError(path, err)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Validate checks struct constraints and the telemetry section.
func (s *Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return err
	}
	return s.Telemetry.Validate()
}
