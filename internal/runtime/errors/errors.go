package errors

import sterrors "errors"

var (
	ErrServiceRequired   = sterrors.New("deferral: service is required")
	ErrAddressRequired   = sterrors.New("deferral: subscriber address is required")
	ErrHandlerRequired   = sterrors.New("deferral: handler is required")
	ErrInvalidAddress    = sterrors.New("deferral: address must be two dot-separated segments")
	ErrConfirmerRequired = sterrors.New("deferral: confirmation collaborator is required")
	ErrResolverRequired  = sterrors.New("deferral: lifecycle resolver is required")
	ErrActivatorRequired = sterrors.New("deferral: activation trigger is required")
	ErrRestarterRequired = sterrors.New("deferral: host restarter is required")
	ErrStateRequired     = sterrors.New("deferral: state store is required")
	ErrAlreadyStarted    = sterrors.New("deferral: service is already started")
	ErrNotStarted        = sterrors.New("deferral: service is not started")
)

// ConfigValidationError aggregates the individual problems found while
// validating a Config so callers can report them together.
type ConfigValidationError struct {
	Problems []error
}

func (e *ConfigValidationError) Error() string {
	return sterrors.Join(e.Problems...).Error()
}

func (e *ConfigValidationError) Unwrap() []error { return e.Problems }
