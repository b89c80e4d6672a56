package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error for propagation decisions.
type ErrorClass string

const (
	// ErrorClassDomainEmpty indicates an updater computed a domain with no legal values.
	// Fatal to the current path, never to the whole run.
	ErrorClassDomainEmpty ErrorClass = "domain_empty"

	// ErrorClassValidation indicates a candidate value was rejected with a reason.
	// Recoverable by reprompting (interactive) or treated as pruning (batch).
	ErrorClassValidation ErrorClass = "validation_failed"

	// ErrorClassOrderViolation indicates an updater or validator read a parameter
	// that is not strictly earlier in the declared order. This is a programming
	// error in the capacity model.
	ErrorClassOrderViolation ErrorClass = "dependency_order"

	// ErrorClassBudgetExceeded indicates randomized sampling stopped at its attempt
	// budget before reaching the target. Partial results are still returned.
	ErrorClassBudgetExceeded ErrorClass = "budget_exceeded"

	// ErrorClassPermanent indicates a non-recoverable error such as a malformed
	// declaration or a failing capacity model.
	ErrorClassPermanent ErrorClass = "permanent"
)

// ErrAborted is returned when the operator declines to continue a session.
var ErrAborted = errors.New("resolution aborted by operator")

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Component is the component being resolved, if applicable.
	Component string `json:"component,omitempty"`

	// Parameter is the parameter that caused the error, if applicable.
	Parameter string `json:"parameter,omitempty"`

	// Operation is the capability being invoked (update, validate, emit).
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	switch {
	case e.Parameter != "" && e.Operation != "":
		msg += fmt.Sprintf(" (parameter=%s, operation=%s)", e.Parameter, e.Operation)
	case e.Parameter != "":
		msg += fmt.Sprintf(" (parameter=%s)", e.Parameter)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

func newError(class ErrorClass, code, message string, err error) *EngineError {
	return &EngineError{
		Class:   class,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewDomainEmptyError creates an error for an updater that produced no legal values.
func NewDomainEmptyError(param string) *EngineError {
	return newError(ErrorClassDomainEmpty, ErrCodeDomainEmpty, "domain has no legal values", nil).
		WithParameter(param)
}

// NewValidationError creates a recoverable rejection of a candidate value.
func NewValidationError(message string, err error) *EngineError {
	return newError(ErrorClassValidation, ErrCodeValidation, message, err)
}

// NewOrderViolationError creates an error for a read of a parameter outside the
// resolved prefix.
func NewOrderViolationError(reader, read string) *EngineError {
	return newError(ErrorClassOrderViolation, ErrCodeOrderViolation,
		fmt.Sprintf("%s read %s, which is not an earlier declared dependency", reader, read), nil).
		WithParameter(reader).
		WithDetail("read", read)
}

// NewBudgetExceededError creates the warning reported when sampling stops at its budget.
func NewBudgetExceededError(found, target, attempts int) *EngineError {
	return newError(ErrorClassBudgetExceeded, ErrCodeBudgetExceeded,
		fmt.Sprintf("found %d of %d configurations within %d attempts", found, target, attempts), nil).
		WithDetail("found", found).
		WithDetail("target", target).
		WithDetail("attempts", attempts)
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *EngineError {
	return newError(ErrorClassPermanent, "", message, err)
}

// WithComponent adds component context to an error.
func (e *EngineError) WithComponent(name string) *EngineError {
	e.Component = name
	return e
}

// WithParameter adds parameter context to an error.
func (e *EngineError) WithParameter(name string) *EngineError {
	e.Parameter = name
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func classOf(err error) (ErrorClass, bool) {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class, true
	}
	return "", false
}

// IsDomainEmpty returns true if the error is classified as an empty domain.
func IsDomainEmpty(err error) bool {
	c, ok := classOf(err)
	return ok && c == ErrorClassDomainEmpty
}

// IsValidationFailed returns true if the error is a candidate rejection.
func IsValidationFailed(err error) bool {
	c, ok := classOf(err)
	return ok && c == ErrorClassValidation
}

// IsOrderViolation returns true if the error is a dependency order violation.
func IsOrderViolation(err error) bool {
	c, ok := classOf(err)
	return ok && c == ErrorClassOrderViolation
}

// IsBudgetExceeded returns true if sampling ran out of attempts.
func IsBudgetExceeded(err error) bool {
	c, ok := classOf(err)
	return ok && c == ErrorClassBudgetExceeded
}

// IsPermanent returns true if the error is classified as permanent.
func IsPermanent(err error) bool {
	c, ok := classOf(err)
	return ok && c == ErrorClassPermanent
}

// IsRecoverable returns true if an interactive caller may reprompt after err.
// Empty domains and rejections are recoverable by going back or choosing again.
func IsRecoverable(err error) bool {
	return IsValidationFailed(err) || IsDomainEmpty(err)
}

// IsPathFatal reports whether err ends an exploration path as abandoned
// rather than pruned.
func IsPathFatal(err error) bool {
	return err != nil && !IsRecoverable(err)
}

// Common error codes.
const (
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeDomainEmpty    = "DOMAIN_EMPTY"
	ErrCodeOrderViolation = "DEPENDENCY_ORDER"
	ErrCodeBudgetExceeded = "BUDGET_EXCEEDED"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeAlreadyExists  = "ALREADY_EXISTS"
	ErrCodeDeclaration    = "DECLARATION_ERROR"
	ErrCodeCapability     = "CAPABILITY_FAILED"
	ErrCodeIncomplete     = "INCOMPLETE"
	ErrCodeInternal       = "INTERNAL_ERROR"
)
