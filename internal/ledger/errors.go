package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageNotFound means the store holds no prior chain.
	ErrStorageNotFound = errors.New("ledger: no stored chain")
	// ErrStorageFormat is matched by every *StorageFormatError.
	ErrStorageFormat = errors.New("ledger: malformed stored chain")
)

// StorageFormatError reports a stored chain that exists but cannot be decoded.
// Index is the offending record position, or -1 when the whole document is bad.
type StorageFormatError struct {
	Source string
	Index  int
	Err    error
}

func (e *StorageFormatError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("ledger: %s: record %d: %v", e.Source, e.Index, e.Err)
	}
	return fmt.Sprintf("ledger: %s: %v", e.Source, e.Err)
}

func (e *StorageFormatError) Unwrap() error { return e.Err }

func (e *StorageFormatError) Is(target error) bool { return target == ErrStorageFormat }

// IntegrityViolation describes the first record that failed verification.
type IntegrityViolation struct {
	Index  int
	Reason string
}

func (v *IntegrityViolation) Error() string {
	return fmt.Sprintf("ledger: chain broken at record %d: %s", v.Index, v.Reason)
}
