package btf

import "errors"

var (
	// ErrInvalidHeader is returned when a blob does not start with a valid
	// BTF header: wrong magic, unsupported version, a header shorter than
	// 24 bytes or sections which do not fit the blob.
	ErrInvalidHeader = errors.New("invalid BTF header")

	// ErrTruncated is returned when a read goes past the end of a buffer
	// or a section, e.g. when a type record overruns the type section.
	ErrTruncated = errors.New("truncated data")

	// ErrUnknownKind is returned when a type record uses a kind this
	// library does not know about. Unknown kinds are fatal since the size
	// of their trailer cannot be guessed.
	ErrUnknownKind = errors.New("unknown type kind")

	// ErrInvalidString is returned when a string offset points outside of
	// the string section or at data which is not valid UTF-8.
	ErrInvalidString = errors.New("invalid string reference")

	// ErrNotFound is returned when an id or a name does not resolve to
	// any type.
	ErrNotFound = errors.New("not found")

	// ErrNotChained is returned when resolving the chained type of an
	// entity whose kind has no outgoing type edge.
	ErrNotChained = errors.New("no chained type")

	// ErrNotSupported is returned when an operation cannot be performed,
	// e.g. requesting an unknown backend or extending a split BTF with
	// another split BTF.
	ErrNotSupported = errors.New("not supported")
)
