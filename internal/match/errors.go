package match

import "errors"

var (
	// ErrInvalidInput is returned when a query vector has the wrong width,
	// a non-finite field, or k is not positive.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyReference is returned when the reference table has no rows.
	ErrEmptyReference = errors.New("empty reference table")

	// ErrInvalidTable is returned by NewReferenceTable for malformed rows.
	ErrInvalidTable = errors.New("invalid reference table")
)

// Kind classifies an error returned by this package for transport layers.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrEmptyReference):
		return "empty_reference"
	case errors.Is(err, ErrInvalidTable):
		return "invalid_table"
	default:
		return "internal"
	}
}
