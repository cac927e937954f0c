package tree

type boundKind int

const (
	unbounded boundKind = iota
	included
	excluded
)

// Bound is one end of a key range
type Bound[K any] struct {
	kind boundKind
	key  K
}

// Included returns a bound that includes key
func Included[K any](key K) Bound[K] {
	return Bound[K]{kind: included, key: key}
}

// Excluded returns a bound that excludes key
func Excluded[K any](key K) Bound[K] {
	return Bound[K]{kind: excluded, key: key}
}

// Unbounded returns a bound that places no limit on the range
func Unbounded[K any]() Bound[K] {
	return Bound[K]{}
}

// IsUnbounded returns true for Unbounded bounds
func (bound Bound[K]) IsUnbounded() bool {
	return bound.kind == unbounded
}

// Key returns the key of a bounded bound
func (bound Bound[K]) Key() (K, bool) {
	return bound.key, bound.kind != unbounded
}
