package restore

import (
	"errors"

	"github.com/tunnelmesh/paperback/internal/erasure"
)

// Error types.
var (
	// ErrMissingMetadata is returned when no Meta chunk was collected.
	ErrMissingMetadata = errors.New("no metadata chunk found")
	// ErrInconsistentMetadata is returned when chunks disagree with each other
	// or with the metadata.
	ErrInconsistentMetadata = errors.New("inconsistent chunk metadata")
	// ErrDuplicateConflict is returned when two chunks claim the same index
	// with different bytes.
	ErrDuplicateConflict = errors.New("conflicting chunks for the same index")
	// ErrInsufficientData is returned when too few distinct chunks were collected.
	ErrInsufficientData = erasure.ErrInsufficientData
	// ErrChecksumMismatch is returned when the restored data fails verification.
	ErrChecksumMismatch = errors.New("restored data does not match document hash")
	// ErrOverwriteRefused is returned when the output file exists and force is off.
	ErrOverwriteRefused = errors.New("refusing to overwrite existing file")
)
