package workflow

import (
	"errors"
	"fmt"
)

// ErrTotalsRow marks a trailing totals row. It is dropped by the caller, not
// recorded as a failure.
var ErrTotalsRow = errors.New("totals row")

// MalformedLineError is recoverable: the orchestrator records the row as a
// failed line and the batch continues.
type MalformedLineError struct {
	Index  int
	Reason string
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("linha %d malformada: %s", e.Index, e.Reason)
}

// PersistenceError is fatal to the enclosing batch: the batch's writes are
// rolled back and the upload is marked CANCELADO.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
