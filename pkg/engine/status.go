package engine

import (
	"encoding/json"
	"fmt"
)

// Strategy selects how the explorer traverses the configuration space.
type Strategy string

const (
	// StrategyExhaustive enumerates every legal assignment depth-first.
	StrategyExhaustive Strategy = "exhaustive"

	// StrategyRandom runs random walks, then samples whole assignments from the
	// per-parameter values the walks observed.
	StrategyRandom Strategy = "random"
)

// Validate checks if the strategy is known.
func (s Strategy) Validate() error {
	switch s {
	case StrategyExhaustive, StrategyRandom:
		return nil
	default:
		return fmt.Errorf("invalid strategy: %s (must be 'exhaustive' or 'random')", s)
	}
}

// RunStatus represents the outcome of an exploration run.
type RunStatus string

const (
	// RunStatusRunning indicates the run is in progress.
	RunStatusRunning RunStatus = "running"

	// RunStatusCompleted indicates the traversal finished or the target was reached.
	RunStatusCompleted RunStatus = "completed"

	// RunStatusPartial indicates sampling stopped at its attempt budget.
	RunStatusPartial RunStatus = "partial"

	// RunStatusCancelled indicates the context was cancelled mid-run.
	RunStatusCancelled RunStatus = "cancelled"

	// RunStatusFailed indicates the run could not start.
	RunStatusFailed RunStatus = "failed"
)

// IsTerminal returns true if the run status represents a final state.
func (s RunStatus) IsTerminal() bool {
	return s != RunStatusRunning
}

// Validate checks if the run status is valid.
func (s RunStatus) Validate() error {
	switch s {
	case RunStatusRunning, RunStatusCompleted, RunStatusPartial,
		RunStatusCancelled, RunStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid run status: %s", s)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s RunStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *RunStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = RunStatus(str)
	return s.Validate()
}

// PortDirection is the direction of a port on an emitted artifact.
type PortDirection string

const (
	// PortIn is an input port.
	PortIn PortDirection = "in"

	// PortOut is an output port.
	PortOut PortDirection = "out"
)

// PortKind is the transport kind of a port.
type PortKind string

const (
	// PortBlock is a block-buffered (window) port.
	PortBlock PortKind = "block"

	// PortStream is a continuous stream port.
	PortStream PortKind = "stream"

	// PortParameter is a run-time parameter port.
	PortParameter PortKind = "parameter"
)

// Validate checks if the port kind is valid.
func (k PortKind) Validate() error {
	switch k {
	case PortBlock, PortStream, PortParameter:
		return nil
	default:
		return fmt.Errorf("invalid port kind: %s", k)
	}
}

// Outcome labels what happened to one visited path or sample.
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomePruned    Outcome = "pruned"
	OutcomeAbandoned Outcome = "abandoned"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFiltered  Outcome = "filtered"
	OutcomeViolation Outcome = "violation"
)
