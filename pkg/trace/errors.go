package trace

import "errors"

var (
	// ErrEmptyTrace indicates the node returned no trace records.
	ErrEmptyTrace = errors.New("node returned an empty trace")

	// ErrUnsupportedTracer indicates the response came from a tracer this
	// package cannot read, usually geth's default struct logger.
	ErrUnsupportedTracer = errors.New("node returned an unsupported trace format")

	// ErrUnknownShape indicates the caller asked for a shape with no adapter.
	ErrUnknownShape = errors.New("unknown trace shape")

	// ErrMalformedTrace indicates the trace records do not form a single tree.
	ErrMalformedTrace = errors.New("malformed trace")
)
