package ranking

import (
	"errors"
	"fmt"
)

// ErrInconsistent means the fast index still disagreed with the authoritative
// store after a rebuild. Diagnostics are dumped to the log when this happens.
var ErrInconsistent = errors.New("fast index inconsistent with authoritative store")

// DBError wraps a failure of the authoritative store.
type DBError struct {
	Err error
}

func (e *DBError) Error() string {
	return fmt.Sprintf("authoritative store error: %v", e.Err)
}

func (e *DBError) Unwrap() error {
	return e.Err
}

// IndexError wraps a failure of the fast index. Readers retry on the next call.
type IndexError struct {
	Err error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("fast index error: %v", e.Err)
}

func (e *IndexError) Unwrap() error {
	return e.Err
}
