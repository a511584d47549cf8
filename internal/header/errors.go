package header

import "errors"

// ErrFormat is returned when a header is malformed or shorter than its fixed length.
var ErrFormat = errors.New("malformed chunk header")
