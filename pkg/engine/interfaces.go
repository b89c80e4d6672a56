package engine

import (
	"context"
	"time"

	"github.com/paramforge/paramforge/pkg/domain"
)

// CapacityModel supplies the domain-updater and validator capabilities of a
// component. It is consulted once, at registration, for every declared
// parameter; the bound functions are stored on the ParameterSpec.
type CapacityModel interface {
	// Updater returns the domain updater of the named parameter.
	Updater(param string) (UpdateFunc, bool)

	// Validator returns the validator of the named parameter. A model without a
	// validator for a parameter relies on domain membership alone.
	Validator(param string) (ValidateFunc, bool)
}

// Capability pairs the two functions a model provides for one parameter.
type Capability struct {
	Update   UpdateFunc
	Validate ValidateFunc
}

// Capabilities is a map-backed CapacityModel keyed by parameter name.
type Capabilities map[string]Capability

// Updater implements CapacityModel.
func (c Capabilities) Updater(param string) (UpdateFunc, bool) {
	cp, ok := c[param]
	if !ok || cp.Update == nil {
		return nil, false
	}
	return cp.Update, true
}

// Validator implements CapacityModel.
func (c Capabilities) Validator(param string) (ValidateFunc, bool) {
	cp, ok := c[param]
	if !ok || cp.Validate == nil {
		return nil, false
	}
	return cp.Validate, true
}

// ArtifactEmitter turns a complete, valid configuration into generated text
// plus port descriptors. Size and margin arithmetic belongs to the emitter.
type ArtifactEmitter interface {
	Emit(ctx context.Context, cfg *Configuration, graphName string) (*Artifact, error)
}

// EmitterFunc adapts a function to ArtifactEmitter.
type EmitterFunc func(ctx context.Context, cfg *Configuration, graphName string) (*Artifact, error)

// Emit implements ArtifactEmitter.
func (f EmitterFunc) Emit(ctx context.Context, cfg *Configuration, graphName string) (*Artifact, error) {
	return f(ctx, cfg, graphName)
}

// Prompter obtains candidates from an operator during interactive resolution.
type Prompter interface {
	// Ask presents the offer for the focused parameter and returns the
	// operator's answer. A rejected previous candidate is passed in verdict.
	Ask(ctx context.Context, offer *Offer, verdict *Verdict) (Answer, error)
}

// AnswerAction is what the operator chose to do.
type AnswerAction int

const (
	// AnswerAcceptDefault submits the offered default.
	AnswerAcceptDefault AnswerAction = iota

	// AnswerValue submits Answer.Value.
	AnswerValue

	// AnswerBack moves focus to the previous parameter.
	AnswerBack

	// AnswerAbort ends the session without a configuration.
	AnswerAbort
)

// Answer is one operator response.
type Answer struct {
	Action AnswerAction
	Value  domain.Value
}

// ConfigurationFilter is an extra predicate over complete configurations,
// applied by the explorer after validation. Rejections are counted, not logged
// as failures.
type ConfigurationFilter interface {
	// Allow returns the reasons a configuration is excluded; none means allowed.
	Allow(ctx context.Context, component string, cfg *Configuration) ([]string, error)
}

// MetricsRecorder receives counters from sessions and explorations.
type MetricsRecorder interface {
	// RecordOutcome counts one visited path, sample or submission.
	RecordOutcome(component, phase string, outcome Outcome)

	// RecordExploration records a finished exploration.
	RecordExploration(component string, strategy Strategy, status RunStatus, found int, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordOutcome(string, string, Outcome) {}
func (nopRecorder) RecordExploration(string, Strategy, RunStatus, int, time.Duration) {}
