package errors

import (
	"fmt"

	"github.com/scan-io-git/taint-io/pkg/shared"
)

// MissingInputError is returned when a stage cannot find an artifact produced by an earlier stage.
type MissingInputError struct {
	Stage string
	Path  string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("%s: required input %q is missing", e.Stage, e.Path)
}

func NewMissingInputError(stage, path string) error {
	return &MissingInputError{Stage: stage, Path: path}
}

// CacheCorruptionError is returned when an existing label cache cannot be decoded.
type CacheCorruptionError struct {
	Path string
	Err  error
}

func (e *CacheCorruptionError) Error() string {
	return fmt.Sprintf("label cache %q is corrupted: %v", e.Path, e.Err)
}

func (e *CacheCorruptionError) Unwrap() error { return e.Err }

// EngineInvocationError wraps a failed invocation of the query engine together with its captured output.
type EngineInvocationError struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *EngineInvocationError) Error() string {
	return fmt.Sprintf("%q execution error (exit code %d): %v. Output: %s", e.Command, e.ExitCode, e.Err, e.Output)
}

func (e *EngineInvocationError) Unwrap() error { return e.Err }

// MalformedResponseError is returned when no label record can be salvaged from a model response.
type MalformedResponseError struct {
	Batch int
	Err   error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("batch %d: malformed model response: %v", e.Batch, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// InvalidRecordError describes why a raw label record was rejected.
type InvalidRecordError struct {
	Reason string
}

func (e *InvalidRecordError) Error() string {
	return "invalid label record: " + e.Reason
}

func NewInvalidRecordError(format string, args ...interface{}) error {
	return &InvalidRecordError{Reason: fmt.Sprintf(format, args...)}
}

// StageError reports which pipeline stage aborted a project.
type StageError struct {
	Project string
	Stage   string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("project %q: stage %q failed: %v", e.Project, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// CommandError represents an error that occurred during command execution, storing relevant results.
type CommandError struct {
	ExitCode    int
	CommonError string
	Result      shared.GenericLaunchesResult
}

func (e *CommandError) Error() string {
	return e.CommonError
}

// NewCommandError creates a new CommandError instance, encapsulating args, result, and the error message.
func NewCommandError(args interface{}, result interface{}, err error, code int) *CommandError {
	return &CommandError{
		ExitCode:    code,
		CommonError: err.Error(),
		Result: shared.GenericLaunchesResult{
			Launches: []shared.GenericResult{
				{
					Args:    args,
					Result:  result,
					Status:  shared.StatusFailed,
					Message: err.Error(),
				},
			},
		},
	}
}

// NewCommandErrorWithResult creates a new CommandError with a pre-formed GenericLaunchesResult.
func NewCommandErrorWithResult(launches shared.GenericLaunchesResult, err error, code int) *CommandError {
	return &CommandError{
		ExitCode:    code,
		CommonError: err.Error(),
		Result:      launches,
	}
}
