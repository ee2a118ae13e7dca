package models

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks missing or malformed input
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a referenced subscriber that does not exist
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized marks a trigger token mismatch
	ErrUnauthorized = errors.New("unauthorized")
)

// StoreError wraps a failure of the subscriber or content store
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// DispatchError is the failure of a single destination's send. It is
// collected by the digest runner and never aborts a run.
type DispatchError struct {
	Destination string
	Reason      string
	Err         error
}

func (e *DispatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dispatch to %s failed: %s: %v", e.Destination, e.Reason, e.Err)
	}
	return fmt.Sprintf("dispatch to %s failed: %s", e.Destination, e.Reason)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
