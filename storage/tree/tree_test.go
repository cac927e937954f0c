package tree_test

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/sertree/storage/codec"
	"github.com/jrife/sertree/storage/kv"
	"github.com/jrife/sertree/storage/kv/plugins"
	"github.com/jrife/sertree/storage/tree"
	"github.com/stretchr/testify/require"
)

type user struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

var engines = []string{"memory", "bbolt"}

func newDB(t *testing.T, engine string, opts ...tree.Option) *tree.DB {
	store, err := plugins.Plugin(engine).NewTempStore()

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	t.Cleanup(func() { store.Delete() })

	db, err := tree.New(store, opts...)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	return db
}

func openTree(t *testing.T, db *tree.DB, name string) *tree.RelaxedTree {
	tr, err := db.OpenRelaxedTree(name)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	return tr
}

func collect[K, V any](t *testing.T, iter *tree.Iterator[K, V], err error) []tree.Entry[K, V] {
	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	entries, err := iter.Collect()

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	return entries
}

func fill(t *testing.T, tr *tree.RelaxedTree, entries map[int64]string) {
	for key, value := range entries {
		if _, _, err := tree.Insert(tr, key, value); err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}
	}
}

func forEachEngine(t *testing.T, test func(t *testing.T, engine string)) {
	for _, engine := range engines {
		t.Run(engine, func(t *testing.T) {
			test(t, engine)
		})
	}
}

func TestGetAfterInsert(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		tr := openTree(t, newDB(t, engine), "users")
		alice := user{Name: "Alice", Email: "alice@example.com"}

		_, ok, err := tree.Insert(tr, "alice", alice)
		require.NoError(t, err)
		require.False(t, ok)

		got, ok, err := tree.Get[string, user](tr, "alice")
		require.NoError(t, err)
		require.True(t, ok)

		if diff := cmp.Diff(alice, got); diff != "" {
			t.Fatalf("%s", diff)
		}

		_, ok, err = tree.Get[string, user](tr, "bob")
		require.NoError(t, err)
		require.False(t, ok)

		bob := user{Name: "Bob"}
		prev, ok, err := tree.Insert(tr, "alice", bob)
		require.NoError(t, err)
		require.True(t, ok)

		if diff := cmp.Diff(alice, prev); diff != "" {
			t.Fatalf("%s", diff)
		}

		ok, err = tree.ContainsKey(tr, "alice")
		require.NoError(t, err)
		require.True(t, ok)
	})
}

func TestInsertRemoveGet(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		tr := openTree(t, newDB(t, engine), "strings")

		_, _, err := tree.Insert(tr, "empty", "")
		require.NoError(t, err)

		value, ok, err := tree.Get[string, string](tr, "empty")
		require.NoError(t, err)
		require.True(t, ok, "an empty value is present")
		require.Equal(t, "", value)

		prev, ok, err := tree.Remove[string, string](tr, "empty")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "", prev)

		_, ok, err = tree.Get[string, string](tr, "empty")
		require.NoError(t, err)
		require.False(t, ok)

		_, ok, err = tree.Remove[string, string](tr, "empty")
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestEmptyKey(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		tr := openTree(t, newDB(t, engine), "strings")

		_, _, err := tree.Insert(tr, "", "value")

		var encodeErr *codec.EncodeError

		if !errors.As(err, &encodeErr) {
			t.Fatalf("expected an *EncodeError, got %#v", err)
		}

		require.ErrorIs(t, err, kv.ErrEmptyKey)

		n, err := tr.Len()
		require.NoError(t, err)
		require.Equal(t, 0, n)
	})
}

func TestUnencodable(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		tr := openTree(t, newDB(t, engine), "unencodable")
		invalid := string([]byte{0xff, 0xfe})

		testCases := map[string]func() error{
			"invalid-utf8-key": func() error {
				_, _, err := tree.Insert(tr, invalid, "value")
				return err
			},
			"invalid-utf8-value": func() error {
				_, _, err := tree.Insert(tr, "key", invalid)
				return err
			},
			"zero-time-key": func() error {
				_, _, err := tree.Insert(tr, time.Time{}, "value")
				return err
			},
			"far-future-value": func() error {
				_, _, err := tree.Insert(tr, "key", time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC))
				return err
			},
		}

		for name, insert := range testCases {
			t.Run(name, func(t *testing.T) {
				var encodeErr *codec.EncodeError

				if err := insert(); !errors.As(err, &encodeErr) {
					t.Fatalf("expected an *EncodeError, got %#v", err)
				}

				n, err := tr.Len()
				require.NoError(t, err)
				require.Equal(t, 0, n)
			})
		}
	})
}

func TestGetOrInit(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		tr := tree.Strict[string, int64](openTree(t, newDB(t, engine), "counters"))
		calls := 0
		init := func() int64 {
			calls++

			return 42
		}

		value, err := tr.GetOrInit("a", init)
		require.NoError(t, err)
		require.Equal(t, int64(42), value)

		value, err = tr.GetOrInit("a", func() int64 {
			calls++

			return 7
		})
		require.NoError(t, err)
		require.Equal(t, int64(42), value)
		require.Equal(t, 1, calls)
	})
}

func TestGetOrInitRace(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		tr := tree.Strict[string, int64](openTree(t, newDB(t, engine), "counters"))
		results := make([]int64, 16)

		var wg sync.WaitGroup

		for i := range results {
			wg.Add(1)

			go func(i int) {
				defer wg.Done()

				value, err := tr.GetOrInit("winner", func() int64 { return int64(i) })

				if err != nil {
					t.Errorf("expected err to be nil, got %#v", err)
				}

				results[i] = value
			}(i)
		}

		wg.Wait()

		stored, ok, err := tr.Get("winner")
		require.NoError(t, err)
		require.True(t, ok)

		for i, result := range results {
			require.Equal(t, stored, result, "goroutine %d saw a different value", i)
		}
	})
}

func TestPop(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		tr := openTree(t, newDB(t, engine), "numbers")
		fill(t, tr, map[int64]string{1: "a", 5: "b", 3: "c"})

		key, value, ok, err := tree.PopMax[int64, string](tr)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, int64(5), key)
		require.Equal(t, "b", value)

		key, value, ok, err = tree.Last[int64, string](tr)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, int64(3), key)
		require.Equal(t, "c", value)

		key, value, ok, err = tree.PopMin[int64, string](tr)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, int64(1), key)
		require.Equal(t, "a", value)

		key, _, ok, err = tree.First[int64, string](tr)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, int64(3), key)

		_, _, _, err = tree.PopMax[int64, string](tr)
		require.NoError(t, err)

		_, _, ok, err = tree.PopMax[int64, string](tr)
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestRange(t *testing.T) {
	type testCase struct {
		start tree.Bound[int64]
		end   tree.Bound[int64]
		order kv.SortOrder
		keys  []int64
	}

	testCases := map[string]testCase{
		"included-excluded": {
			start: tree.Included[int64](2),
			end:   tree.Excluded[int64](5),
			keys:  []int64{2, 3, 4},
		},
		"included-excluded-desc": {
			start: tree.Included[int64](2),
			end:   tree.Excluded[int64](5),
			order: kv.SortOrderDesc,
			keys:  []int64{4, 3, 2},
		},
		"excluded-included": {
			start: tree.Excluded[int64](2),
			end:   tree.Included[int64](5),
			keys:  []int64{3, 4, 5},
		},
		"negative": {
			start: tree.Included[int64](-2),
			end:   tree.Included[int64](1),
			keys:  []int64{-2, -1, 0, 1},
		},
		"unbounded-start": {
			start: tree.Unbounded[int64](),
			end:   tree.Excluded[int64](-1),
			keys:  []int64{-3, -2},
		},
		"unbounded-end-desc": {
			start: tree.Included[int64](4),
			end:   tree.Unbounded[int64](),
			order: kv.SortOrderDesc,
			keys:  []int64{5, 4},
		},
		"all": {
			start: tree.Unbounded[int64](),
			end:   tree.Unbounded[int64](),
			keys:  []int64{-3, -2, -1, 0, 1, 2, 3, 4, 5},
		},
		"equal-bounds": {
			start: tree.Included[int64](3),
			end:   tree.Included[int64](3),
			keys:  []int64{3},
		},
		"equal-bounds-excluded": {
			start: tree.Included[int64](3),
			end:   tree.Excluded[int64](3),
			keys:  []int64{},
		},
	}

	forEachEngine(t, func(t *testing.T, engine string) {
		tr := openTree(t, newDB(t, engine), "numbers")

		for i := int64(-3); i <= 5; i++ {
			if _, _, err := tree.Insert(tr, i, i*10); err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}
		}

		for name, testCase := range testCases {
			t.Run(name, func(t *testing.T) {
				iter, err := tree.Range[int64, int64](tr, testCase.start, testCase.end, testCase.order)
				entries := collect(t, iter, err)
				keys := []int64{}

				for _, entry := range entries {
					require.Equal(t, entry.Key*10, entry.Value)
					keys = append(keys, entry.Key)
				}

				if diff := cmp.Diff(testCase.keys, keys); diff != "" {
					t.Fatalf("%s", diff)
				}
			})
		}
	})
}

func TestRangeErrors(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		tr := openTree(t, newDB(t, engine), "numbers")

		_, err := tree.Range[int64, string](tr, tree.Included[int64](5), tree.Included[int64](2), kv.SortOrderAsc)
		require.ErrorIs(t, err, tree.ErrInvalidRange)

		_, err = tree.Range[user, string](tr, tree.Included(user{Name: "a"}), tree.Unbounded[user](), kv.SortOrderAsc)
		require.ErrorIs(t, err, tree.ErrUnorderedKeys)

		// unbounded ranges do not depend on key order
		iter, err := tree.Iter[user, string](tr)
		require.NoError(t, err)
		require.NoError(t, iter.Close())
	})
}

func TestRangeKeyBytes(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		tr := openTree(t, newDB(t, engine), "strings")

		for _, key := range []string{"a", "ab", "b", "ba", "c"} {
			if _, _, err := tree.Insert(tr, key, strings.ToUpper(key)); err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}
		}

		iter, err := tree.RangeKeyBytes[string](tr, tree.Excluded([]byte("a")), tree.Excluded([]byte("c")), kv.SortOrderAsc)
		entries := collect(t, iter, err)
		expected := []tree.Entry[[]byte, string]{
			{Key: []byte("ab"), Value: "AB"},
			{Key: []byte("b"), Value: "B"},
			{Key: []byte("ba"), Value: "BA"},
		}

		if diff := cmp.Diff(expected, entries); diff != "" {
			t.Fatalf("%s", diff)
		}
	})
}

func TestWrongType(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		db := newDB(t, engine)
		texts := tree.Strict[string, string](openTree(t, db, "aliased"))
		bools := tree.Strict[string, bool](openTree(t, db, "aliased"))

		_, _, err := texts.Insert("k", "hello")
		require.NoError(t, err)

		_, _, err = bools.Get("k")

		var decodeErr *codec.DecodeError

		if !errors.As(err, &decodeErr) {
			t.Fatalf("expected a *DecodeError, got %#v", err)
		}

		require.Equal(t, "bool", decodeErr.Type)
		require.Equal(t, 5, decodeErr.Len)

		_, _, err = bools.Insert("k", true)

		if !errors.As(err, &decodeErr) {
			t.Fatalf("expected a *DecodeError for the previous value, got %#v", err)
		}

		value, ok, err := bools.Get("k")
		require.NoError(t, err)
		require.True(t, ok, "the write happens even if the previous value does not decode")
		require.True(t, value)
	})
}

func TestIterationStopsAtDecodeError(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		tr := openTree(t, newDB(t, engine), "mixed")

		_, _, err := tree.Insert(tr, "a", int64(1))
		require.NoError(t, err)
		_, _, err = tree.Insert(tr, "b", int64(2))
		require.NoError(t, err)
		_, _, err = tree.Insert(tr, "c", "not a number")
		require.NoError(t, err)
		_, _, err = tree.Insert(tr, "d", int64(4))
		require.NoError(t, err)

		iter, err := tree.Iter[string, int64](tr)
		require.NoError(t, err)

		entries, err := iter.Collect()

		var decodeErr *codec.DecodeError

		if !errors.As(err, &decodeErr) {
			t.Fatalf("expected a *DecodeError, got %#v", err)
		}

		expected := []tree.Entry[string, int64]{{Key: "a", Value: 1}, {Key: "b", Value: 2}}

		if diff := cmp.Diff(expected, entries); diff != "" {
			t.Fatalf("%s", diff)
		}

		require.False(t, iter.Next())
	})
}

func TestLenAndClear(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		db := newDB(t, engine)
		tr := openTree(t, db, "numbers")
		other := openTree(t, db, "other")
		fill(t, tr, map[int64]string{1: "a", 2: "b", 3: "c"})
		fill(t, other, map[int64]string{1: "a"})

		n, err := tr.Len()
		require.NoError(t, err)
		require.Equal(t, 3, n)

		require.NoError(t, tr.Clear())

		n, err = tr.Len()
		require.NoError(t, err)
		require.Equal(t, 0, n)

		n, err = other.Len()
		require.NoError(t, err)
		require.Equal(t, 1, n)
	})
}

func TestOpen(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		db := newDB(t, engine)

		a, err := db.OpenRelaxedTree("a")
		require.NoError(t, err)
		b, err := db.OpenRelaxedTree("a")
		require.NoError(t, err)
		require.Same(t, a, b)
		require.Equal(t, "a", a.Name())

		for _, name := range []string{"", "__sertree", "__sertree_types"} {
			_, err := db.OpenRelaxedTree(name)
			require.ErrorIs(t, err, tree.ErrReservedName, "name %q", name)
		}

		_, err = db.OpenRelaxedTree("c")
		require.NoError(t, err)
		_, err = tree.OpenStrictTree[string, string](db, "b")
		require.NoError(t, err)

		names, err := db.TreeNames()
		require.NoError(t, err)

		if diff := cmp.Diff([]string{"a", "b", "c"}, names); diff != "" {
			t.Fatalf("%s", diff)
		}
	})
}

func TestDropTree(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		db := newDB(t, engine)
		tr := openTree(t, db, "numbers")
		fill(t, tr, map[int64]string{1: "a"})

		require.NoError(t, db.DropTree("numbers"))

		_, _, err := tree.Get[int64, string](tr, 1)

		var storeErr *tree.StoreError

		if !errors.As(err, &storeErr) {
			t.Fatalf("expected a *StoreError, got %#v", err)
		}

		require.ErrorIs(t, err, kv.ErrNoSuchBucket)

		reopened := openTree(t, db, "numbers")
		n, err := reopened.Len()
		require.NoError(t, err)
		require.Equal(t, 0, n)
	})
}

func TestTypeTags(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		db := newDB(t, engine, tree.WithTypeTags(true))

		_, err := tree.OpenStrictTree[string, int64](db, "counters")
		require.NoError(t, err)
		_, err = tree.OpenStrictTree[string, int64](db, "counters")
		require.NoError(t, err)

		tag, ok, err := db.TypeTag("counters")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "string|int64", tag)

		_, err = tree.OpenStrictTree[string, user](db, "users")
		require.NoError(t, err)

		tag, _, err = db.TypeTag("users")
		require.NoError(t, err)
		require.Equal(t, "string|github.com/jrife/sertree/storage/tree_test.user", tag)

		_, err = tree.OpenStrictTree[string, string](db, "counters")
		require.ErrorIs(t, err, tree.ErrTypeMismatch)

		var mismatch *tree.TypeMismatchError

		require.ErrorAs(t, err, &mismatch)
		require.Equal(t, "string|int64", mismatch.Recorded)
		require.Equal(t, "string|string", mismatch.Requested)

		// relaxed opens never check
		_, err = db.OpenRelaxedTree("counters")
		require.NoError(t, err)

		require.NoError(t, db.DropTree("counters"))
		_, err = tree.OpenStrictTree[string, string](db, "counters")
		require.NoError(t, err)

		names, err := db.TreeNames()
		require.NoError(t, err)

		if diff := cmp.Diff([]string{"counters", "users"}, names); diff != "" {
			t.Fatalf("%s", diff)
		}
	})
}

func TestTypeTagsDisabled(t *testing.T) {
	db := newDB(t, "memory")

	_, err := tree.OpenStrictTree[string, int64](db, "counters")
	require.NoError(t, err)
	_, err = tree.OpenStrictTree[string, string](db, "counters")
	require.NoError(t, err)
}

func TestClosed(t *testing.T) {
	db, err := tree.Open("memory", nil)
	require.NoError(t, err)

	tr := openTree(t, db, "numbers")
	require.NoError(t, db.Close())

	_, _, err = tree.Get[int64, string](tr, 1)

	var storeErr *tree.StoreError

	if !errors.As(err, &storeErr) {
		t.Fatalf("expected a *StoreError, got %#v", err)
	}

	require.Equal(t, "get", storeErr.Op)
	require.Equal(t, "numbers", storeErr.Tree)
	require.ErrorIs(t, err, kv.ErrClosed)
}

func TestOpenUnknownEngine(t *testing.T) {
	_, err := tree.Open("nope", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "bbolt")
}

func TestExportImport(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		db := newDB(t, engine)
		fill(t, openTree(t, db, "source"), map[int64]string{1: "a", 2: "", 3: "c"})
		fill(t, openTree(t, db, "target"), map[int64]string{9: "stale"})

		var buf bytes.Buffer

		_, err := db.ExportTree("source", &buf)
		require.NoError(t, err)

		n, err := db.ImportTree("target", &buf)
		require.NoError(t, err)
		require.Equal(t, 3, n)

		iter, err := tree.Iter[int64, string](openTree(t, db, "target"))
		entries := collect(t, iter, err)
		expected := []tree.Entry[int64, string]{{Key: 1, Value: "a"}, {Key: 2, Value: ""}, {Key: 3, Value: "c"}}

		if diff := cmp.Diff(expected, entries); diff != "" {
			t.Fatalf("%s", diff)
		}
	})
}

func TestMetrics(t *testing.T) {
	db := newDB(t, "memory")
	tr := openTree(t, db, "mixed")

	_, _, err := tree.Insert(tr, "a", "text")
	require.NoError(t, err)
	_, _, err = tree.Get[string, int64](tr, "a")
	require.Error(t, err)

	var buf bytes.Buffer

	db.Metrics().WritePrometheus(&buf)

	require.Contains(t, buf.String(), `sertree_decode_errors_total{tree="mixed"} 1`)
	require.Contains(t, buf.String(), `sertree_trees_opened_total 1`)
}
