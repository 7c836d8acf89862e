package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every NotFoundError via errors.Is.
var ErrNotFound = errors.New("not found")

// NotFoundError reports an unknown pattern id or specialist key.
type NotFoundError struct {
	Kind string // "pattern" or "specialist"
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

// Is lets errors.Is(err, ErrNotFound) succeed.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// PatternNotFound builds the error returned for an unknown pattern id.
func PatternNotFound(id string) error {
	return &NotFoundError{Kind: "pattern", Key: id}
}

// SpecialistNotFound builds the error returned for an unknown specialist.
func SpecialistNotFound(key string) error {
	return &NotFoundError{Kind: "specialist", Key: key}
}
