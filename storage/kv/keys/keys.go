package keys

import (
	"bytes"
)

// Key is a single key
type Key []byte

// Compare compares two keys
// -1 means a < b
// 1 means a > b
// 0 means a = b
func Compare(a, b Key) int {
	return bytes.Compare(a, b)
}

// Inc treats key as a big-endian unsigned integer and
// returns key + 1 without modifying key. It returns nil
// if every byte of key is 0xff: there is no key of the same
// length after it, so the caller should treat the result as
// the end of the key space.
func Inc(key Key) Key {
	carry := true
	after := make(Key, len(key))

	copy(after, key)

	for i := len(after) - 1; i >= 0 && carry; i-- {
		if key[i] < 0xff {
			carry = false
		}

		after[i] = key[i] + 1
	}

	if carry {
		return nil
	}

	return after
}

// After returns the key directly after k such that
// there can exist no other key that comes between
// k and After(k)
func After(k Key) Key {
	afterK := make(Key, len(k)+1)

	copy(afterK, k)
	afterK[len(k)] = 0

	return afterK
}

// Copy returns a copy of k that does not share memory with k.
// Copy(nil) is nil.
func Copy(k []byte) []byte {
	if k == nil {
		return nil
	}

	cp := make([]byte, len(k))
	copy(cp, k)

	return cp
}
