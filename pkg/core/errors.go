package core

import "fmt"

// ConfigurationError reports a malformed query tree or compiler input.
// It is a defect in caller-supplied input and is never retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "invalid query configuration: " + e.Reason
}

// Configurationf returns a ConfigurationError with a formatted reason.
func Configurationf(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}
