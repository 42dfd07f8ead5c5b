package storage

import "errors"

// Storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists. The event archive is append-only.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)

// ValidateWrites checks that every write has a key and a value.
func ValidateWrites(writes []Write) error {
	for _, w := range writes {
		if w.Key == "" || w.Value == nil {
			return ErrInvalidInput
		}
	}
	return nil
}
