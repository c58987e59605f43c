package dberrors

import "errors"

var (
	ErrClosed          = errors.New("lsmdb: closed")
	ErrInvalidArgument = errors.New("lsmdb: invalid argument")

	// ErrStorageIO wraps read, write and rename failures of the storage directory.
	ErrStorageIO = errors.New("lsmdb: storage io")
	// ErrMalformedTable is returned when a table file does not parse.
	ErrMalformedTable = errors.New("lsmdb: malformed table")
	// ErrUnsupportedOperation signals a mutation attempted on an immutable table.
	ErrUnsupportedOperation = errors.New("lsmdb: unsupported operation")
	// ErrUnsorted is returned by the table writer on out-of-order input.
	ErrUnsorted = errors.New("lsmdb: cells are not sorted")
)
