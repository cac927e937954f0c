package kv

import (
	"fmt"
	"io"

	"github.com/jrife/sertree/storage/kv/keys"
	"github.com/jrife/sertree/utils/lvstream"
)

// Snapshot encodes the contents of bucket as a length-value
// stream of alternating keys and values in ascending key
// order. It reads the bucket page by page like any other
// iterator so it is not a point in time copy if the bucket
// is written to concurrently.
func Snapshot(bucket Bucket) (io.ReadCloser, error) {
	iter, err := bucket.Keys(keys.All(), SortOrderAsc)

	if err != nil {
		return nil, err
	}

	var value []byte
	var hasValue bool

	return lvstream.NewEncoder(func() ([]byte, error) {
		if hasValue {
			hasValue = false

			return value, nil
		}

		if !iter.Next() {
			if err := iter.Error(); err != nil {
				return nil, err
			}

			return nil, io.EOF
		}

		value = iter.Value()
		hasValue = true

		return iter.Key(), nil
	}, func() {
		iter.Close()
	}), nil
}

// ApplySnapshot replaces the contents of bucket with the
// entries encoded in snapshot. It returns the number of
// entries written.
func ApplySnapshot(bucket Bucket, snapshot io.Reader) (int, error) {
	if err := bucket.Clear(); err != nil {
		return 0, fmt.Errorf("could not clear bucket: %w", err)
	}

	var key []byte
	var hasKey bool
	var n int

	decoder := lvstream.NewDecoder(func(b []byte) error {
		if !hasKey {
			if err := CheckKey(b); err != nil {
				return err
			}

			key = append(key[:0], b...)
			hasKey = true

			return nil
		}

		hasKey = false

		if _, _, err := bucket.Put(key, b); err != nil {
			return err
		}

		n++

		return nil
	})

	if _, err := io.Copy(decoder, snapshot); err != nil {
		return n, fmt.Errorf("could not apply snapshot: %w", err)
	}

	if err := decoder.Close(); err != nil {
		return n, fmt.Errorf("could not apply snapshot: %w", err)
	}

	if hasKey {
		return n, fmt.Errorf("could not apply snapshot: key %x has no value: %w", key, lvstream.ErrTruncated)
	}

	return n, nil
}
