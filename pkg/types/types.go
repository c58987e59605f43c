package types

// Key is an immutable byte slice type alias used for clarity.
// Keys are ordered by unsigned byte value.
type Key = []byte

// Value is an immutable byte slice type alias used for clarity.
type Value = []byte

// Timestamp orders versions of the same key; higher is fresher.
type Timestamp int64

// Generation identifies one flush. It is the stem of the table file name
// and the order in which tables shadow each other.
type Generation uint64
