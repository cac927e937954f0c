// Package codec converts typed values to and from the bytes
// stored in an ordered kv store.
//
// For[T] picks an encoding from the shape of T. Ordered encodings
// guarantee that comparing two encoded values byte by byte gives
// the same result as comparing the values themselves, which is what
// makes range queries over typed keys meaningful:
//
//	[]byte and byte slice kinds   raw bytes                          ordered
//	proto.Message (gogo)          protobuf wire format               unordered
//	time.Time                     UnixNano, sign flipped, 8 bytes BE ordered
//	encoding.BinaryMarshaler      MarshalBinary                      ordered if OrderPreserving
//	bool                          0x00 or 0x01                       ordered
//	unsigned integers             big-endian, fixed width            ordered
//	signed integers               big-endian, sign bit flipped       ordered
//	floats                        IEEE 754, order transformed        ordered
//	strings                       raw UTF-8                          ordered
//	byte arrays                   raw bytes, fixed length            ordered
//	anything else                 JSON                               unordered
//
// The byte layout of every encoding is part of the on-disk
// format and must not change.
package codec

import (
	"fmt"
	"reflect"

	"github.com/puzpuzpuz/xsync/v3"
)

// Codec encodes and decodes values of type T
type Codec[T any] interface {
	// Encode returns the bytes for v. Failures are *EncodeError.
	Encode(v T) ([]byte, error)
	// Decode parses data as a T. Failures are *DecodeError.
	Decode(data []byte) (T, error)
	// Ordered returns true if byte order of encoded
	// values matches the natural order of T
	Ordered() bool
	// Name describes T. It is stable across processes for
	// the same type. Named types are qualified with their
	// full package path, e.g. example.com/model.User.
	Name() string
}

// OrderPreserving is implemented by encoding.BinaryMarshaler
// types whose MarshalBinary output sorts like the values do.
// It marks their codec as ordered.
type OrderPreserving interface {
	OrderPreserving()
}

// scheme is the untyped encoding selected for a type.
// decode fills rv, which is always addressable.
type scheme struct {
	ordered bool
	encode  func(rv reflect.Value) ([]byte, error)
	decode  func(data []byte, rv reflect.Value) error
}

var schemes = xsync.NewMapOf[reflect.Type, *scheme]()

// For returns the codec for T
func For[T any]() Codec[T] {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	s, _ := schemes.LoadOrCompute(typ, func() *scheme {
		return resolve(typ)
	})

	return &codec[T]{name: typeName(typ), scheme: s}
}

// typeName is like typ.String() but qualifies named
// types with their full package path so that types with
// the same name in different packages get different names
func typeName(typ reflect.Type) string {
	if typ.Name() != "" {
		if typ.PkgPath() == "" {
			return typ.Name()
		}

		return typ.PkgPath() + "." + typ.Name()
	}

	switch typ.Kind() {
	case reflect.Pointer:
		return "*" + typeName(typ.Elem())
	case reflect.Slice:
		return "[]" + typeName(typ.Elem())
	case reflect.Array:
		return fmt.Sprintf("[%d]%s", typ.Len(), typeName(typ.Elem()))
	case reflect.Map:
		return "map[" + typeName(typ.Key()) + "]" + typeName(typ.Elem())
	}

	return typ.String()
}

type codec[T any] struct {
	name   string
	scheme *scheme
}

func (c *codec[T]) Encode(v T) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = &EncodeError{Type: c.name, Reason: fmt.Sprintf("panic: %v", r)}
		}
	}()

	data, err = c.scheme.encode(reflect.ValueOf(&v).Elem())

	if err != nil {
		return nil, c.encodeError(err)
	}

	return data, nil
}

func (c *codec[T]) Decode(data []byte) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			v = zero
			err = newDecodeError(c.name, data, nil, "panic: %v", r)
		}
	}()

	if err := c.scheme.decode(data, reflect.ValueOf(&v).Elem()); err != nil {
		var zero T

		return zero, c.decodeError(data, err)
	}

	return v, nil
}

func (c *codec[T]) Ordered() bool {
	return c.scheme.ordered
}

func (c *codec[T]) Name() string {
	return c.name
}

// encodeError makes sure every failure is an *EncodeError naming T
func (c *codec[T]) encodeError(err error) error {
	if encodeErr, ok := err.(*EncodeError); ok {
		encodeErr.Type = c.name

		return encodeErr
	}

	return &EncodeError{Type: c.name, Reason: "encoding failed", Err: err}
}

// decodeError makes sure every failure is a *DecodeError naming T
func (c *codec[T]) decodeError(data []byte, err error) error {
	if decodeErr, ok := err.(*DecodeError); ok {
		decodeErr.Type = c.name

		return decodeErr
	}

	return newDecodeError(c.name, data, err, "decoding failed")
}
