package policy

import (
	"time"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is reported but never excludes a configuration.
	SeverityWarning Severity = "warning"

	// SeverityError excludes the configuration from exploration results.
	SeverityError Severity = "error"

	// SeverityCritical excludes the configuration from exploration results.
	SeverityCritical Severity = "critical"
)

// Blocking reports whether violations of s exclude a configuration.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// ParseSeverity converts a severity name, case-sensitively.
func ParseSeverity(s string) (Severity, bool) {
	switch sev := Severity(s); sev {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return sev, true
	default:
		return "", false
	}
}

// Policy is a Rego module whose deny rule rejects configurations.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Components restricts the policy to the named components; empty means all.
	Components []string `json:"components,omitempty"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// Builtin marks policies compiled into the binary.
	Builtin bool `json:"-"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the policy was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// AppliesTo reports whether the policy is evaluated for component.
func (p *Policy) AppliesTo(component string) bool {
	if len(p.Components) == 0 {
		return true
	}
	for _, c := range p.Components {
		if c == component {
			return true
		}
	}
	return false
}

// PolicyViolation is one deny message produced for a configuration.
type PolicyViolation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Component is the component the configuration belongs to.
	Component string `json:"component"`

	// Configuration is the rendered configuration, NAME=value pairs.
	Configuration string `json:"configuration"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`

	// Details contains the remaining fields of an object-valued deny entry.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Reason renders v as a filter reason.
func (v PolicyViolation) Reason() string {
	return v.Policy + ": " + v.Message
}

// PolicyResult is the outcome of evaluating every applicable policy against
// one configuration.
type PolicyResult struct {
	// Allowed is false when any blocking violation was found.
	Allowed bool `json:"allowed"`

	// Violations lists blocking violations.
	Violations []PolicyViolation `json:"violations,omitempty"`

	// Warnings lists non-blocking violations.
	Warnings []PolicyViolation `json:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// PolicyInput is the Rego input document.
type PolicyInput struct {
	// Component is the component name.
	Component string `json:"component"`

	// Config maps parameter names to their values.
	Config map[string]interface{} `json:"config"`

	// Params lists parameter names in declaration order.
	Params []string `json:"params"`
}

// PolicyBundle is a JSON file carrying several policies.
type PolicyBundle struct {
	// Name is the unique name of the bundle.
	Name string `json:"name"`

	// Version is the bundle version.
	Version string `json:"version"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Policies are the policies in this bundle.
	Policies []Policy `json:"policies"`
}
