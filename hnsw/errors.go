package hnsw

import (
	"errors"
	"fmt"
)

// ErrInvalidDimension is returned when a vector's length does not match the
// index's configured dimension.
var ErrInvalidDimension = errors.New("hnsw: invalid vector dimension")

// ErrEmptyVector is returned when an insert is attempted with a zero-length
// vector.
var ErrEmptyVector = errors.New("hnsw: empty vector")

// ErrInvalidK is returned when a search is requested with a non-positive k.
var ErrInvalidK = errors.New("hnsw: k must be positive")

// ErrLabelNotFound is returned when a label has no corresponding InnerID.
var ErrLabelNotFound = errors.New("hnsw: label not found")

// ErrDuplicateLabel is returned when Insert is called with a label that is
// already present in the index.
var ErrDuplicateLabel = errors.New("hnsw: duplicate label")

// ErrCapacityExceeded is returned when an insert would take the index past
// Options.MaxCapacity, or when the visited pool would have to grow past its
// configured hard bound.
var ErrCapacityExceeded = errors.New("hnsw: capacity exceeded")

// ErrEmptyIndex is returned when a search is attempted against an index
// with no entry point.
var ErrEmptyIndex = errors.New("hnsw: index is empty")

// InvariantError reports a violated internal invariant (a self-loop, or an
// oversized adjacency list slipping past the edge selector). It is never
// recovered internally: seeing one from the graph construction path means
// the graph has been corrupted by a bug, not by bad input.
// NNDescentBuilder.Build also returns one when configured with a max
// degree below 1.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("hnsw: invariant violation: %s", e.Msg)
}

func newInvariantError(format string, args ...any) error {
	return &InvariantError{Msg: fmt.Sprintf(format, args...)}
}

// DeserializationError wraps an error encountered while reading a
// serialized index, with context about which field was being read.
type DeserializationError struct {
	Field string
	Err   error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("hnsw: deserialization failed reading %s: %v", e.Field, e.Err)
}

func (e *DeserializationError) Unwrap() error {
	return e.Err
}

func newDeserializationError(field string, err error) error {
	if err == nil {
		return nil
	}
	return &DeserializationError{Field: field, Err: err}
}
