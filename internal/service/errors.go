package service

import (
	"errors"
	"fmt"
	"strings"

	"edupro/internal/repository"
)

var (
	ErrDuplicateCourse = repository.ErrDuplicateCourse
	ErrNotFound        = repository.ErrNotFound
	// ErrLookupUnavailable means the external video search failed or found
	// nothing. Callers degrade to an empty result set.
	ErrLookupUnavailable  = errors.New("video lookup unavailable")
	ErrInvalidCredentials = errors.New("invalid admin credentials")
)

// ValidationError lists the form fields that are missing or malformed.
type ValidationError struct {
	Missing []string
	Invalid []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid fields: "+strings.Join(e.Invalid, ", "))
	}
	if len(parts) == 0 {
		return "validation failed"
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) empty() bool {
	return len(e.Missing) == 0 && len(e.Invalid) == 0
}

// StorageError wraps a store or filesystem failure during an operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
