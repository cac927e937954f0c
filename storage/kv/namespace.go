package kv

import (
	"encoding/binary"

	"github.com/jrife/sertree/storage/kv/keys"
)

const (
	registryPrefix byte = 0x00
	dataPrefix     byte = 0x01
)

// Namespace is the key prefix that holds the contents
// of one bucket in engines that keep every bucket in a
// single flat key space:
//
//	0x00 | name                              -> bucket registry entry
//	0x01 | uint16 BE len(name) | name | key  -> bucket entry
//
// The length prefix keeps buckets whose names are prefixes
// of each other ("a" and "ab") from overlapping.
type Namespace []byte

// NewNamespace returns the namespace for the bucket with this name.
// name must already have passed CheckBucketName.
func NewNamespace(name []byte) Namespace {
	ns := make([]byte, 0, 3+len(name))
	ns = append(ns, dataPrefix)
	ns = binary.BigEndian.AppendUint16(ns, uint16(len(name)))
	ns = append(ns, name...)

	return ns
}

// Key maps a bucket key into the flat key space
func (ns Namespace) Key(key []byte) []byte {
	namespaced := make([]byte, 0, len(ns)+len(key))
	namespaced = append(namespaced, ns...)

	return append(namespaced, key...)
}

// StripKey maps a flat key back into the bucket
func (ns Namespace) StripKey(key []byte) []byte {
	return keys.Copy(key[len(ns):])
}

// Range maps a range of bucket keys into the flat key space
func (ns Namespace) Range(r keys.Range) keys.Range {
	return r.Namespace(ns)
}

// RegistryKey returns the key that records the
// existence of the bucket with this name
func RegistryKey(name []byte) []byte {
	return append([]byte{registryPrefix}, name...)
}

// RegistryRange is the range covering every registry key
func RegistryRange() keys.Range {
	return keys.All().Prefix([]byte{registryPrefix})
}

// BucketName returns the bucket name recorded by a registry key
func BucketName(registryKey []byte) []byte {
	return keys.Copy(registryKey[1:])
}
