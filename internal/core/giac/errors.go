package giac

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrUnsupportedConfiguration is returned for configuration shapes the
	// compiler cannot render (e.g. a published port with mode but no protocol).
	ErrUnsupportedConfiguration = errors.New("unsupported configuration")

	// ErrUnknownVolume is reported when a volume variant cannot be rendered.
	ErrUnknownVolume = errors.New("unknown volume variant")

	// ErrInvariant marks programming errors such as a build image without a
	// container name.
	ErrInvariant = errors.New("invariant violated")

	// ErrEmptyServiceName is returned when a service name resolves to "".
	ErrEmptyServiceName = errors.New("service name is empty")

	// ErrAlreadyFinalized is returned by a second Finalize call.
	ErrAlreadyFinalized = errors.New("context already finalized")

	// ErrFrozen is logged when registration is attempted after Finalize.
	ErrFrozen = errors.New("context is frozen")
)

// ConfigError wraps errors with the service and field that caused them.
type ConfigError struct {
	Service string // resolved service name
	Field   string // e.g., "ports[0]"
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Service != "" && e.Field != "":
		return fmt.Sprintf("services.%s.%s: %s", e.Service, e.Field, e.Message)
	case e.Service != "":
		return fmt.Sprintf("services.%s: %s", e.Service, e.Message)
	default:
		return e.Message
	}
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(service, field, message string, err error) *ConfigError {
	return &ConfigError{
		Service: service,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// ErrorReporter receives non-fatal problems. origin names the service or
// component the problem belongs to.
type ErrorReporter func(origin string, err error)

// Report calls r when it is set.
func (r ErrorReporter) Report(origin string, err error) {
	if r != nil {
		r(origin, err)
	}
}
