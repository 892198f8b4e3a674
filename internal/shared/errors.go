package shared

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a missing or invalid backend credential or setting.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string { return describe("configuration", e.Op, e.Err) }
func (e *ConfigurationError) Unwrap() error { return e.Err }

// ServiceError reports a failed call to the AI, feedback or hint backend.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string { return describe("service", e.Op, e.Err) }
func (e *ServiceError) Unwrap() error { return e.Err }

// CapabilityUnsupportedError reports that speech capture or playback is not
// available on this platform.
type CapabilityUnsupportedError struct {
	Capability string
}

func (e *CapabilityUnsupportedError) Error() string {
	return fmt.Sprintf("%s is not supported on this platform", e.Capability)
}

// UsageError reports a violated local precondition.
type UsageError struct {
	Op  string
	Err error
}

func (e *UsageError) Error() string { return describe("usage", e.Op, e.Err) }
func (e *UsageError) Unwrap() error { return e.Err }

func describe(kind, op string, err error) string {
	switch {
	case op == "" && err == nil:
		return kind + " error"
	case op == "":
		return err.Error()
	case err == nil:
		return op
	default:
		return op + ": " + err.Error()
	}
}

// NewServiceError wraps err as a ServiceError unless it already carries a
// ConfigurationError, which is returned unchanged.
func NewServiceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return err
	}
	return &ServiceError{Op: op, Err: err}
}

// Usagef builds a UsageError with a formatted message.
func Usagef(op, format string, args ...any) error {
	return &UsageError{Op: op, Err: fmt.Errorf(format, args...)}
}

// IsConfigurationError reports whether err wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsServiceError reports whether err wraps a ServiceError.
func IsServiceError(err error) bool {
	var target *ServiceError
	return errors.As(err, &target)
}

// IsCapabilityUnsupported reports whether err wraps a CapabilityUnsupportedError.
func IsCapabilityUnsupported(err error) bool {
	var target *CapabilityUnsupportedError
	return errors.As(err, &target)
}

// IsUsageError reports whether err wraps a UsageError.
func IsUsageError(err error) bool {
	var target *UsageError
	return errors.As(err, &target)
}
