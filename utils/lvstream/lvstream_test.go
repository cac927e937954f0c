package lvstream_test

import (
	"bytes"
	"io"
	"testing"
	"testing/iotest"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/sertree/utils/lvstream"
)

func encode(values [][]byte) *lvstream.Encoder {
	return lvstream.NewEncoder(func() ([]byte, error) {
		if len(values) == 0 {
			return nil, io.EOF
		}

		next := values[0]
		values = values[1:]

		return next, nil
	}, nil)
}

func TestLVStream(t *testing.T) {
	testCases := map[string]struct {
		input [][]byte
	}{
		"empty": {
			input: [][]byte{},
		},
		"simple": {
			input: [][]byte{[]byte("a"), []byte("bb"), []byte("ccc")},
		},
		"empty-values": {
			input: [][]byte{{}, []byte("a"), {}, {}, []byte("b"), {}},
		},
		"large": {
			input: [][]byte{bytes.Repeat([]byte("x"), 100000), []byte("y")},
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			output := [][]byte{}
			decoder := lvstream.NewDecoder(func(value []byte) error {
				output = append(output, append([]byte{}, value...))

				return nil
			})

			// one byte reads exercise frames split across writes
			if _, err := io.Copy(decoder, iotest.OneByteReader(encode(testCase.input))); err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			if err := decoder.Close(); err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			if diff := cmp.Diff(testCase.input, output); diff != "" {
				t.Fatalf("%s", diff)
			}
		})
	}
}

func TestDecoderTruncated(t *testing.T) {
	decoder := lvstream.NewDecoder(func(value []byte) error { return nil })

	if _, err := decoder.Write([]byte{0, 0, 0, 3, 'a'}); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := decoder.Close(); err != lvstream.ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %#v", err)
	}
}

func TestDecoderTooLarge(t *testing.T) {
	decoder := lvstream.NewDecoder(func(value []byte) error { return nil })

	if _, err := decoder.Write([]byte{0xff, 0xff, 0xff, 0xff}); err == nil {
		t.Fatalf("expected an error for an oversized length prefix")
	}
}

func TestEncoderClose(t *testing.T) {
	cleanups := 0
	encoder := lvstream.NewEncoder(func() ([]byte, error) { return []byte("a"), nil }, func() { cleanups++ })

	if err := encoder.Close(); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if _, err := encoder.Read(make([]byte, 8)); err != lvstream.ErrClosed {
		t.Fatalf("expected ErrClosed, got %#v", err)
	}

	encoder.Close()

	if cleanups != 1 {
		t.Fatalf("expected cleanup to run once, ran %d times", cleanups)
	}
}
