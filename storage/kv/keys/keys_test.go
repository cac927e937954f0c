package keys_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/sertree/storage/kv/keys"
)

func TestInc(t *testing.T) {
	testCases := map[string]struct {
		key    keys.Key
		result keys.Key
	}{
		"no-carry": {
			key:    keys.Key{0x04, 0x05},
			result: keys.Key{0x04, 0x06},
		},
		"carry": {
			key:    keys.Key{0x04, 0xff},
			result: keys.Key{0x05, 0x00},
		},
		"overflow": {
			key:    keys.Key{0xff, 0xff},
			result: nil,
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			original := append(keys.Key{}, testCase.key...)
			result := keys.Inc(testCase.key)

			if diff := cmp.Diff(testCase.result, result); diff != "" {
				t.Fatalf("%s", diff)
			}

			if diff := cmp.Diff(original, testCase.key); diff != "" {
				t.Fatalf("Inc modified its input: %s", diff)
			}
		})
	}
}

func TestRange(t *testing.T) {
	testCases := map[string]struct {
		r      keys.Range
		result keys.Range
	}{
		"all": {
			r:      keys.All(),
			result: keys.Range{},
		},
		"gt": {
			r:      keys.All().Gt([]byte("a")),
			result: keys.Range{Min: []byte{'a', 0}},
		},
		"gte-lt": {
			r:      keys.All().Gte([]byte("b")).Lt([]byte("d")),
			result: keys.Range{Min: []byte("b"), Max: []byte("d")},
		},
		"lte": {
			r:      keys.All().Lte([]byte("d")),
			result: keys.Range{Max: []byte{'d', 0}},
		},
		"narrowing-keeps-tightest": {
			r:      keys.All().Gte([]byte("b")).Gte([]byte("a")).Lt([]byte("d")).Lt([]byte("e")),
			result: keys.Range{Min: []byte("b"), Max: []byte("d")},
		},
		"eq": {
			r:      keys.All().Eq([]byte("c")),
			result: keys.Range{Min: []byte("c"), Max: []byte{'c', 0}},
		},
		"prefix": {
			r:      keys.All().Prefix([]byte("bb")),
			result: keys.Range{Min: []byte("bb"), Max: []byte("bc")},
		},
		"namespace-unbounded": {
			r:      keys.All().Namespace([]byte("ns")),
			result: keys.Range{Min: []byte("ns"), Max: []byte("nt")},
		},
		"namespace-bounded": {
			r:      keys.All().Gte([]byte("a")).Lt([]byte("c")).Namespace([]byte("ns")),
			result: keys.Range{Min: []byte("nsa"), Max: []byte("nsc")},
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			if diff := cmp.Diff(testCase.result, testCase.r); diff != "" {
				t.Fatalf("%s", diff)
			}
		})
	}
}

func TestRangeContains(t *testing.T) {
	r := keys.All().Gte([]byte("b")).Lte([]byte("d"))

	for _, k := range []string{"b", "c", "cz", "d"} {
		if !r.Contains([]byte(k)) {
			t.Errorf("expected range to contain %q", k)
		}
	}

	for _, k := range []string{"a", "d\x00", "e"} {
		if r.Contains([]byte(k)) {
			t.Errorf("expected range not to contain %q", k)
		}
	}

	if r.Empty() {
		t.Fatalf("expected range not to be empty")
	}

	if !keys.All().Gte([]byte("d")).Lt([]byte("b")).Empty() {
		t.Fatalf("expected inverted range to be empty")
	}
}
