package tree

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRange is returned by Range when both bounds
	// are set and the start sorts after the end
	ErrInvalidRange = errors.New("range start is after range end")
	// ErrUnorderedKeys is returned by Range when a bound is set
	// but the key codec does not preserve order
	ErrUnorderedKeys = errors.New("key codec does not preserve order")
	// ErrReservedName is returned when a tree name is empty
	// or uses the reserved prefix
	ErrReservedName = errors.New("tree name is empty or reserved")
	// ErrTypeMismatch is matched by *TypeMismatchError
	ErrTypeMismatch = errors.New("tree was opened with different types")
)

// StoreError wraps any error returned by the underlying store
type StoreError struct {
	// Op is the tree operation that failed
	Op string
	// Tree is the name of the tree
	Tree string
	// Err is the error returned by the store
	Err error
}

func (err *StoreError) Error() string {
	return fmt.Sprintf("%s on tree %q: %s", err.Op, err.Tree, err.Err.Error())
}

func (err *StoreError) Unwrap() error {
	return err.Err
}

// TypeMismatchError is returned by OpenStrictTree when type
// tags are enabled and the tree was first opened with
// different key or value types
type TypeMismatchError struct {
	Tree      string
	Recorded  string
	Requested string
}

func (err *TypeMismatchError) Error() string {
	return fmt.Sprintf("tree %q holds %s but was opened as %s", err.Tree, err.Recorded, err.Requested)
}

// Is lets errors.Is(err, ErrTypeMismatch) match
func (err *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}
