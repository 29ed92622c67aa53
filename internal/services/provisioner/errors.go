package provisioner

import (
	"errors"
	"fmt"
	"strings"
)

// Apply sub-step names, in execution order.
const (
	StepValidate         = "validate"
	StepRegisteredPolicy = "registered_policy"
	StepGuestPolicy      = "guest_policy"
	StepUpdateSSID       = "update_ssid"
	StepConfirmSSID      = "confirm_ssid"
	StepDefaultIPSK      = "default_ipsk"
	StepCheckStatus      = "check_status"
)

var stepOrder = []string{
	StepRegisteredPolicy,
	StepGuestPolicy,
	StepUpdateSSID,
	StepConfirmSSID,
	StepDefaultIPSK,
}

// Kind classifies an apply failure.
type Kind string

// Failure kinds.
const (
	KindApplyFailed        Kind = "apply_failed"
	KindConfigurationError Kind = "configuration_error"
)

// Sentinel errors matched with errors.Is.
var (
	ErrApplyFailed     = errors.New("apply failed")
	ErrConfiguration   = errors.New("configuration error")
	ErrAmbiguousPolicy = errors.New("ambiguous group policy name")
)

// ApplyError reports the failing sub-step and the sub-steps already committed remotely.
// Committed work is never rolled back; re-running apply converges.
type ApplyError struct {
	Kind      Kind
	Step      string
	Completed []string
	RunID     string
	Err       error
}

func (e *ApplyError) Error() string {
	msg := fmt.Sprintf("%s in step %s: %v", e.Kind, e.Step, e.Err)
	if len(e.Completed) > 0 {
		msg += fmt.Sprintf(" (completed: %s)", strings.Join(e.Completed, ", "))
	}
	return msg
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// Is matches ErrApplyFailed or ErrConfiguration according to Kind.
func (e *ApplyError) Is(target error) bool {
	switch target {
	case ErrApplyFailed:
		return e.Kind == KindApplyFailed
	case ErrConfiguration:
		return e.Kind == KindConfigurationError
	}
	return false
}

// stepError tags an error with the sub-step that produced it.
type stepError struct {
	step string
	err  error
}

func (e *stepError) Error() string { return e.step + ": " + e.err.Error() }
func (e *stepError) Unwrap() error { return e.err }

func kindOf(err error) Kind {
	if errors.Is(err, ErrAmbiguousPolicy) || errors.Is(err, ErrConfiguration) {
		return KindConfigurationError
	}
	return KindApplyFailed
}
