// Package kv defines the ordered byte store contract that
// typed trees are built on, along with the helpers shared by
// the engine plugins.
//
// A kv plugin is a factory for store instances. A store contains
// zero or more named buckets and each bucket is an independent
// ordered map from non-empty byte keys to byte values. Values may
// be empty: presence is always reported explicitly and never
// inferred from a nil slice.
//
//  - Store
//    - Bucket "users"
//      - key1: abc
//      - key2: (empty)
//    - Bucket "index"
//      - keyN: aaa
//
// Every single key operation on a bucket is atomic, including the
// read-modify-write operations Put, PutIfAbsent, Delete, PopFirst
// and PopLast. Iterators read a bucket in pages. Each page is a
// consistent view of the bucket but no transaction is held open
// between pages, so a long running iteration may or may not observe
// writes that happen while it is in progress.
//
// Engines that have no native notion of named buckets share one flat
// key space between all buckets. Namespace describes the layout they
// use.
package kv
