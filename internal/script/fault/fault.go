// Package fault defines the error kinds surfaced by the script sandbox.
//
// Failures that originate inside scripts are wrapped before they reach the
// host so that callers can branch on the kind of failure without parsing
// engine-specific messages.
package fault

import (
	"errors"
	"fmt"
)

// ErrImmutableWrite is returned (or thrown into scripts) when anything
// attempts to write to a frozen registry, scope, or wrapped table.
var ErrImmutableWrite = errors.New("write to immutable table")

// ErrAlreadySetup is returned when Setup is called more than once.
var ErrAlreadySetup = errors.New("capability registry already frozen")

// ErrNotSetup is returned when script execution is requested before the
// capability registry has been frozen.
var ErrNotSetup = errors.New("capability registry not frozen")

// ScriptNotFoundError indicates the asset store has no script for the
// requested module-relative path.
type ScriptNotFoundError struct {
	Module string
	Path   string
}

func (e *ScriptNotFoundError) Error() string {
	return fmt.Sprintf("script not found: %s:%s", e.Module, e.Path)
}

// CompileError wraps a compiler failure for a script or inline snippet.
type CompileError struct {
	Name    string // diagnostic tag, "module:path"
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s: %s", e.Name, e.Message)
}

// ExecutionError wraps a runtime failure inside script code. Trace carries
// the script-level call stack when the engine could capture one.
type ExecutionError struct {
	Name    string
	Message string
	Trace   string
	Cause   error
}

func (e *ExecutionError) Error() string {
	if e.Trace != "" {
		return fmt.Sprintf("execute %s: %s\n%s", e.Name, e.Message, e.Trace)
	}
	return fmt.Sprintf("execute %s: %s", e.Name, e.Message)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// MissingRequiredFieldError indicates a script omitted a field the host
// requires, e.g. a mission registered without a handler.
type MissingRequiredFieldError struct {
	What  string
	Field string
}

func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("%s: missing required field %q", e.What, e.Field)
}

// InvalidArgumentError indicates a script passed a value the host cannot
// interpret, e.g. an unknown direction token.
type InvalidArgumentError struct {
	What string
}

func (e *InvalidArgumentError) Error() string {
	return "invalid argument: " + e.What
}

// IsScriptNotFound reports whether err is a ScriptNotFoundError.
func IsScriptNotFound(err error) bool {
	var nf *ScriptNotFoundError
	return errors.As(err, &nf)
}
