package core

import "fmt"

// ValidationError reports bad input shape, caught before any remote call is
// made. It is user-facing and not retryable without changing the input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// StageError reports a required remote call that failed or returned an invalid
// result; it aborts the rest of the run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }
