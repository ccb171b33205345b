package registry

import "fmt"

// AuthoringError is the single structured error type for load-time
// contribution problems: shape violations, conflicts, naming mismatches, and
// dangling references. Authoring errors are fatal; loading stops at the
// first one.
type AuthoringError struct {
	// Module is the behavior module whose contribution failed.
	Module string
	// Subject names the offending word, event, or hook.
	Subject string
	// Reason describes the violation.
	Reason string
}

// Error implements the error interface. Module is omitted for violations
// that cannot be pinned on a single module (e.g. cross-module kind clashes).
func (e *AuthoringError) Error() string {
	if e.Module == "" {
		return fmt.Sprintf("%s: %s", e.Subject, e.Reason)
	}
	return fmt.Sprintf("module %q: %s: %s", e.Module, e.Subject, e.Reason)
}

func authoringErrorf(moduleID, subject, format string, args ...any) *AuthoringError {
	return &AuthoringError{
		Module:  moduleID,
		Subject: subject,
		Reason:  fmt.Sprintf(format, args...),
	}
}
