package catalog

import "errors"

var (
	// ErrEmptyCatalog is returned when a catalog has no points.
	ErrEmptyCatalog = errors.New("catalog: no monitored points")

	// ErrDuplicateTag is returned when two points share a tag.
	ErrDuplicateTag = errors.New("catalog: duplicate tag")

	// ErrInvalidPoint is returned when a point is missing a tag or label,
	// or has a non-positive capacity.
	ErrInvalidPoint = errors.New("catalog: invalid point")

	// ErrPointNotFound is returned by Lookup for an unknown tag.
	ErrPointNotFound = errors.New("catalog: point not found")
)
