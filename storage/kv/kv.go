package kv

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
)

// MaxBucketNameLen is the longest bucket name any engine accepts
const MaxBucketNameLen = math.MaxUint16

var (
	// ErrClosed indicates that the store was closed
	ErrClosed = errors.New("store was closed")
	// ErrNoSuchBucket indicates that the bucket doesn't exist. Either it hasn't been created or was deleted
	ErrNoSuchBucket = errors.New("bucket does not exist")
	// ErrEmptyKey indicates that a key was nil or empty
	ErrEmptyKey = errors.New("key cannot be empty")
	// ErrEmptyBucketName indicates that a bucket name was nil or empty
	ErrEmptyBucketName = errors.New("bucket name cannot be empty")
	// ErrBucketNameTooLong indicates that a bucket name is longer than MaxBucketNameLen
	ErrBucketNameTooLong = fmt.Errorf("bucket name cannot be longer than %d bytes", MaxBucketNameLen)
)

// SortOrder describes sort order for iteration
// Either SortOrderAsc or SortOrderDesc
type SortOrder int

// SortOrderAsc sorts in increasing order
const SortOrderAsc SortOrder = 0

// SortOrderDesc sorts in decreasing order
const SortOrderDesc SortOrder = 1

func (order SortOrder) String() string {
	if order == SortOrderDesc {
		return "desc"
	}

	return "asc"
}

// KV is a key-value pair
type KV struct {
	Key   []byte
	Value []byte
}

// CheckKey returns ErrEmptyKey if key is empty
func CheckKey(key []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}

	return nil
}

// CheckBucketName returns an error if name cannot
// be used as a bucket name
func CheckBucketName(name []byte) error {
	if len(name) == 0 {
		return ErrEmptyBucketName
	}

	if len(name) > MaxBucketNameLen {
		return ErrBucketNameTooLong
	}

	return nil
}

// StringOption reads a string option. It returns an
// error if the option is present but is not a string or
// if it is missing and required is true.
func (options PluginOptions) StringOption(name string, required bool) (string, error) {
	option, ok := options[name]

	if !ok {
		if required {
			return "", fmt.Errorf("%q is required", name)
		}

		return "", nil
	}

	str, ok := option.(string)

	if !ok {
		return "", fmt.Errorf("%q must be a string", name)
	}

	return str, nil
}

// IntOption reads an integer option, returning def
// if it is not set.
func (options PluginOptions) IntOption(name string, def int64) (int64, error) {
	option, ok := options[name]

	if !ok {
		return def, nil
	}

	switch n := option.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("%q is out of range", name)
		}

		return int64(n), nil
	}

	return 0, fmt.Errorf("%q must be an integer", name)
}

// Logger returns the *zap.Logger passed in the "logger"
// option or a no-op logger if none was given.
func (options PluginOptions) Logger() *zap.Logger {
	if logger, ok := options["logger"].(*zap.Logger); ok && logger != nil {
		return logger
	}

	return zap.NewNop()
}
