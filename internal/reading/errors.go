package reading

import "errors"

var (
	// ErrEmptyBatch is returned when InsertBatch is called with no rows.
	ErrEmptyBatch = errors.New("reading: empty batch")

	// ErrInvalidReading is returned when a row lacks a tag or timestamp.
	ErrInvalidReading = errors.New("reading: invalid reading")
)
