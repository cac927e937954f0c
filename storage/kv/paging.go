package kv

import (
	"github.com/jrife/sertree/storage/kv/keys"
)

// DefaultPageSize is the number of entries an
// iterator returned by Paginate reads at once
const DefaultPageSize = 128

// ScanFunc reads up to limit entries whose keys are
// inside r, in the given order. Entries must come from a
// single consistent view of the bucket and the returned
// slices must be owned by the caller.
type ScanFunc func(r keys.Range, order SortOrder, limit int) ([]KV, error)

// Paginate returns an iterator that reads r in pages of
// pageSize entries with scan. Each page resumes right
// after the last key of the previous page so engines never
// hold a transaction open while the caller consumes results.
func Paginate(scan ScanFunc, r keys.Range, order SortOrder, pageSize int) Iterator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	if order != SortOrderAsc && order != SortOrderDesc {
		order = SortOrderAsc
	}

	return &pagingIterator{scan: scan, keys: r, order: order, pageSize: pageSize}
}

// Edge returns the first entry scan produces for the
// whole bucket in the given order.
func Edge(scan ScanFunc, order SortOrder) (KV, bool, error) {
	page, err := scan(keys.All(), order, 1)

	if err != nil {
		return KV{}, false, err
	}

	if len(page) == 0 {
		return KV{}, false, nil
	}

	return page[0], true, nil
}

var _ Iterator = (*pagingIterator)(nil)

type pagingIterator struct {
	scan     ScanFunc
	keys     keys.Range
	order    SortOrder
	pageSize int
	page     []KV
	next     int
	current  KV
	done     bool
	closed   bool
	err      error
}

func (iter *pagingIterator) Next() bool {
	iter.current = KV{}

	if iter.closed || iter.err != nil {
		return false
	}

	if iter.next >= len(iter.page) && !iter.fetch() {
		return false
	}

	iter.current = iter.page[iter.next]
	iter.next++

	return true
}

func (iter *pagingIterator) fetch() bool {
	iter.page = nil
	iter.next = 0

	if iter.done || iter.keys.Empty() {
		iter.done = true

		return false
	}

	page, err := iter.scan(iter.keys, iter.order, iter.pageSize)

	if err != nil {
		iter.err = err

		return false
	}

	if len(page) < iter.pageSize {
		iter.done = true
	}

	if len(page) == 0 {
		return false
	}

	last := page[len(page)-1].Key

	if iter.order == SortOrderDesc {
		iter.keys.Max = keys.Copy(last)
	} else {
		iter.keys.Min = keys.After(last)
	}

	iter.page = page

	return true
}

func (iter *pagingIterator) Key() []byte {
	return iter.current.Key
}

func (iter *pagingIterator) Value() []byte {
	return iter.current.Value
}

func (iter *pagingIterator) Error() error {
	return iter.err
}

func (iter *pagingIterator) Close() error {
	iter.closed = true
	iter.page = nil
	iter.current = KV{}

	return nil
}
