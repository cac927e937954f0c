// Package tree gives typed access to the buckets of a kv store.
//
// A DB wraps one kv.Store. Every tree opened from it is a bucket
// of that store. A RelaxedTree carries no type information: keys
// and values are encoded with codec.For on every call, so the
// package level functions take the key and value types explicitly:
//
//	t, err := db.OpenRelaxedTree("users")
//	prev, ok, err := tree.Insert[string, User](t, "alice", user)
//
// A StrictTree fixes K and V once and forwards every method
// to the relaxed functions. Both kinds of handle may alias the
// same bucket. Reading bytes written as another type returns
// a *codec.DecodeError unless the bytes happen to be a valid
// encoding of both types.
package tree
