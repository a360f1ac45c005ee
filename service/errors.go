package service

import (
	"errors"
	"fmt"
)

// TransientError marks a failure worth retrying: network trouble, timeouts,
// collaborator unavailability.
type TransientError struct {
	Stage string
	Err   error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure where retrying is pointless: validation,
// missing entities, malformed input.
type PermanentError struct {
	Stage string
	Err   error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// ExhaustedError is raised when a stage has spent its retry budget. The
// caller escalates: terminal entity status plus a failure notification.
type ExhaustedError struct {
	Stage    string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: retries exhausted after %d attempts: %v", e.Stage, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

func Transient(stage string, err error) error {
	return &TransientError{Stage: stage, Err: err}
}

func Permanent(stage string, err error) error {
	return &PermanentError{Stage: stage, Err: err}
}

func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
