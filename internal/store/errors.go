package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by point lookups when no row matches.
var ErrNotFound = errors.New("store: not found")

// ErrClaimLeased is returned by LeaseClaim when another linking attempt
// already holds the per-claim lease.
var ErrClaimLeased = errors.New("store: claim lease already held")

// DuplicateError reports a natural-key collision, e.g. a claim control
// number already present for the same provider/payer. Upload paths surface
// it; reprocessing paths skip it.
type DuplicateError struct {
	Entity string
	Key    string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("store: duplicate %s %q", e.Entity, e.Key)
}

// IsDuplicate reports whether err is a DuplicateError.
func IsDuplicate(err error) bool {
	var d *DuplicateError
	return errors.As(err, &d)
}

// IntegrityError reports a store-level constraint violation. It aborts the
// current file's transaction; the caller may retry the whole file.
type IntegrityError struct {
	Op  string
	Err error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("store: integrity violation during %s: %v", e.Op, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// IsIntegrity reports whether err is an IntegrityError.
func IsIntegrity(err error) bool {
	var i *IntegrityError
	return errors.As(err, &i)
}
