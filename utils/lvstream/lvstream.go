// Package lvstream frames a sequence of byte values as a
// byte stream of [length|value|length|value...] where length
// is a 4 byte big-endian unsigned integer.
package lvstream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

// MaxValueSize is the largest value a Decoder accepts (64 MB)
var MaxValueSize uint32 = 64 * 1024 * 1024

var (
	// ErrClosed is returned by an encoder or decoder after Close
	ErrClosed = errors.New("lvstream closed")
	// ErrTruncated is returned by Decoder.Close when the stream ended
	// in the middle of a frame
	ErrTruncated = errors.New("lvstream truncated inside a frame")
)

const lengthSize = 4

var _ io.ReadCloser = (*Encoder)(nil)

// Encoder turns values returned by nextValue into
// a length-value byte stream. nextValue returns io.EOF
// once there are no more values. cleanup is called
// exactly once when the stream ends or is closed.
type Encoder struct {
	nextValue func() ([]byte, error)
	cleanup   func()
	isLength  bool
	length    []byte
	value     []byte
	chunk     []byte
	err       error
}

// NewEncoder creates an Encoder
func NewEncoder(nextValue func() ([]byte, error), cleanup func()) *Encoder {
	return &Encoder{
		length:    make([]byte, lengthSize),
		nextValue: nextValue,
		cleanup:   cleanup,
	}
}

// Read implements io.Reader
func (encoder *Encoder) Read(p []byte) (int, error) {
	if encoder.err != nil {
		return 0, encoder.err
	}

	n := 0

	for n < len(p) {
		if len(encoder.chunk) == 0 {
			if encoder.isLength {
				encoder.isLength = false
				encoder.chunk = encoder.value

				// empty values have no body
				if len(encoder.chunk) == 0 {
					continue
				}
			} else {
				value, err := encoder.nextValue()

				if err != nil {
					encoder.close(err)

					return n, encoder.err
				}

				encoder.isLength = true
				encoder.value = value
				binary.BigEndian.PutUint32(encoder.length, uint32(len(value)))
				encoder.chunk = encoder.length
			}
		}

		c := copy(p[n:], encoder.chunk)
		encoder.chunk = encoder.chunk[c:]
		n += c
	}

	return n, nil
}

func (encoder *Encoder) close(err error) {
	if encoder.err != nil {
		return
	}

	encoder.err = err

	if encoder.cleanup != nil {
		encoder.cleanup()
	}
}

// Close implements io.Closer
func (encoder *Encoder) Close() error {
	encoder.close(ErrClosed)

	return nil
}

var _ io.WriteCloser = (*Decoder)(nil)

// Decoder splits a length-value byte stream written to it
// back into values, handing each one to nextValue. The slice
// passed to nextValue is only valid for the duration of the call.
type Decoder struct {
	nextValue func([]byte) error
	isLength  bool
	chunkSize int
	chunk     []byte
	mu        sync.Mutex
	err       error
}

// NewDecoder creates a Decoder
func NewDecoder(nextValue func([]byte) error) *Decoder {
	decoder := &Decoder{
		chunkSize: lengthSize,
		isLength:  true,
		nextValue: nextValue,
	}

	decoder.chunk = reallocate(decoder.chunk, decoder.chunkSize)

	return decoder
}

// Write implements io.Writer
func (decoder *Decoder) Write(p []byte) (int, error) {
	decoder.mu.Lock()
	defer decoder.mu.Unlock()

	if decoder.err != nil {
		return 0, decoder.err
	}

	written := len(p)

	for len(p) > 0 {
		copyAmount := min(decoder.chunkSize-len(decoder.chunk), len(p))
		decoder.chunk = append(decoder.chunk, p[:copyAmount]...)
		p = p[copyAmount:]

		if len(decoder.chunk) < decoder.chunkSize {
			continue
		}

		if err := decoder.completeChunk(); err != nil {
			decoder.err = err

			return 0, err
		}
	}

	return written, nil
}

// completeChunk handles a full chunk. A zero length prefix
// completes its (empty) value immediately.
func (decoder *Decoder) completeChunk() error {
	if decoder.isLength {
		length := binary.BigEndian.Uint32(decoder.chunk)

		if length > MaxValueSize {
			return fmt.Errorf("encoded value length is too large: %d > max(%d)", length, MaxValueSize)
		}

		decoder.chunkSize = int(length)
		decoder.chunk = reallocate(decoder.chunk, decoder.chunkSize)
		decoder.isLength = false

		if decoder.chunkSize != 0 {
			return nil
		}
	}

	if err := decoder.nextValue(decoder.chunk); err != nil {
		return err
	}

	decoder.chunkSize = lengthSize
	decoder.chunk = reallocate(decoder.chunk, decoder.chunkSize)
	decoder.isLength = true

	return nil
}

// Close implements io.Closer. It returns ErrTruncated
// if the bytes written so far end inside a frame.
func (decoder *Decoder) Close() error {
	decoder.mu.Lock()
	defer decoder.mu.Unlock()

	if decoder.err != nil {
		if decoder.err == ErrClosed {
			return nil
		}

		return decoder.err
	}

	decoder.err = ErrClosed

	if !decoder.isLength || len(decoder.chunk) != 0 {
		return ErrTruncated
	}

	return nil
}

func reallocate(b []byte, capacity int) []byte {
	if cap(b) < capacity {
		return make([]byte, 0, capacity)
	}

	return b[:0]
}
