package domain

import "errors"

var (
	// ErrInvalidDataset marks a malformed or inconsistent dataset. Generation
	// aborts on it and nothing is written.
	ErrInvalidDataset = errors.New("invalid dataset")

	// ErrCandidatesExhausted means a fraud pattern could not find a valid
	// candidate subset within its retry budget.
	ErrCandidatesExhausted = errors.New("pattern candidates exhausted")

	// ErrNotFound is returned for lookups of an entity id that does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrNoScore is returned when the entity exists but carries no risk verdict.
	ErrNoScore = errors.New("no risk score for entity")

	// ErrNoSnapshot is returned by queries issued before any dataset is installed.
	ErrNoSnapshot = errors.New("no dataset loaded")

	// ErrInvalidInput marks a caller error.
	ErrInvalidInput = errors.New("invalid input")
)
