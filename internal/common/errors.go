package common

import "errors"

var (

	// repository specific errors
	ErrNotFound = errors.New("not found")

	// rule validation
	ErrInvalidRule = errors.New("invalid recurrence rule")
	ErrInvalidTask = errors.New("invalid task")

	// progress engine invariants
	ErrPrecondition = errors.New("precondition violation")

	// backup
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)
