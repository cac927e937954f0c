package codec

import (
	"encoding"
	"encoding/binary"
	"errors"
	"math"
	"reflect"
	"time"
	"unicode/utf8"

	"github.com/gogo/protobuf/proto"
	jsoniter "github.com/json-iterator/go"
)

var (
	protoMessageType      = reflect.TypeOf((*proto.Message)(nil)).Elem()
	binaryMarshalerType   = reflect.TypeOf((*encoding.BinaryMarshaler)(nil)).Elem()
	binaryUnmarshalerType = reflect.TypeOf((*encoding.BinaryUnmarshaler)(nil)).Elem()
	orderPreservingType   = reflect.TypeOf((*OrderPreserving)(nil)).Elem()
	timeType              = reflect.TypeOf(time.Time{})
)

// UnixNano is only defined between these instants
var (
	minTime = time.Unix(0, math.MinInt64)
	maxTime = time.Unix(0, math.MaxInt64)
)

var errNilPointer = errors.New("nil pointer")

// JSON is the configuration used for types without a more
// specific encoding. Map keys are sorted so equal values
// encode to equal bytes.
var JSON = jsoniter.Config{
	SortMapKeys:            true,
	DisallowUnknownFields:  true,
	ValidateJsonRawMessage: true,
}.Froze()

func resolve(typ reflect.Type) *scheme {
	switch {
	case typ.Kind() == reflect.Slice && typ.Elem().Kind() == reflect.Uint8:
		return bytesScheme()
	case implements(typ, protoMessageType) && decodable(typ, protoMessageType):
		return protoScheme()
	case typ == timeType:
		return timeScheme()
	case implements(typ, binaryMarshalerType) && decodable(typ, binaryUnmarshalerType):
		return binaryScheme(implements(typ, orderPreservingType))
	}

	switch typ.Kind() {
	case reflect.Bool:
		return boolScheme()
	case reflect.Uint, reflect.Uintptr:
		return uintScheme(8)
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return uintScheme(int(typ.Size()))
	case reflect.Int:
		return intScheme(8)
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return intScheme(int(typ.Size()))
	case reflect.Float32:
		return float32Scheme()
	case reflect.Float64:
		return float64Scheme()
	case reflect.String:
		return stringScheme()
	case reflect.Array:
		if typ.Elem().Kind() == reflect.Uint8 {
			return byteArrayScheme(typ.Len())
		}
	}

	return jsonScheme()
}

// implements reports whether values of typ, or pointers
// to them, have the methods of iface
func implements(typ reflect.Type, iface reflect.Type) bool {
	if typ.Kind() == reflect.Interface {
		return false
	}

	return typ.Implements(iface) || (typ.Kind() != reflect.Pointer && reflect.PointerTo(typ).Implements(iface))
}

// decodable reports whether a value of typ can be
// decoded in place through iface
func decodable(typ reflect.Type, iface reflect.Type) bool {
	if typ.Kind() == reflect.Pointer {
		return typ.Implements(iface)
	}

	return reflect.PointerTo(typ).Implements(iface)
}

// encodeTarget returns the value whose method set should
// be used to encode rv
func encodeTarget(rv reflect.Value, iface reflect.Type) (interface{}, error) {
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, &EncodeError{Reason: "cannot encode a nil pointer", Err: errNilPointer}
		}

		return rv.Interface(), nil
	}

	if rv.Type().Implements(iface) {
		return rv.Interface(), nil
	}

	return rv.Addr().Interface(), nil
}

// decodeTarget returns a pointer through which data can
// be decoded into rv, allocating the pointee if needed
func decodeTarget(rv reflect.Value) interface{} {
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}

		return rv.Interface()
	}

	return rv.Addr().Interface()
}

func bytesScheme() *scheme {
	return &scheme{
		ordered: true,
		encode: func(rv reflect.Value) ([]byte, error) {
			return append([]byte{}, rv.Bytes()...), nil
		},
		decode: func(data []byte, rv reflect.Value) error {
			rv.SetBytes(append([]byte{}, data...))

			return nil
		},
	}
}

func protoScheme() *scheme {
	return &scheme{
		encode: func(rv reflect.Value) ([]byte, error) {
			msg, err := encodeTarget(rv, protoMessageType)

			if err != nil {
				return nil, err
			}

			data, err := proto.Marshal(msg.(proto.Message))

			if err != nil {
				return nil, &EncodeError{Reason: "protobuf marshal failed", Err: err}
			}

			return data, nil
		},
		decode: func(data []byte, rv reflect.Value) error {
			if err := proto.Unmarshal(data, decodeTarget(rv).(proto.Message)); err != nil {
				return newDecodeError("", data, err, "invalid protobuf message")
			}

			return nil
		},
	}
}

func timeScheme() *scheme {
	return &scheme{
		ordered: true,
		encode: func(rv reflect.Value) ([]byte, error) {
			t := rv.Interface().(time.Time)

			if t.Before(minTime) || t.After(maxTime) {
				return nil, &EncodeError{Reason: "time outside the int64 UnixNano range"}
			}

			return putInt(make([]byte, 8), t.UnixNano()), nil
		},
		decode: func(data []byte, rv reflect.Value) error {
			if len(data) != 8 {
				return newDecodeError("", data, nil, "expected 8 bytes")
			}

			rv.Set(reflect.ValueOf(time.Unix(0, getInt(data)).UTC()))

			return nil
		},
	}
}

func binaryScheme(ordered bool) *scheme {
	return &scheme{
		ordered: ordered,
		encode: func(rv reflect.Value) ([]byte, error) {
			marshaler, err := encodeTarget(rv, binaryMarshalerType)

			if err != nil {
				return nil, err
			}

			data, err := marshaler.(encoding.BinaryMarshaler).MarshalBinary()

			if err != nil {
				return nil, &EncodeError{Reason: "MarshalBinary failed", Err: err}
			}

			return data, nil
		},
		decode: func(data []byte, rv reflect.Value) error {
			if err := decodeTarget(rv).(encoding.BinaryUnmarshaler).UnmarshalBinary(data); err != nil {
				return newDecodeError("", data, err, "UnmarshalBinary failed")
			}

			return nil
		},
	}
}

func boolScheme() *scheme {
	return &scheme{
		ordered: true,
		encode: func(rv reflect.Value) ([]byte, error) {
			if rv.Bool() {
				return []byte{1}, nil
			}

			return []byte{0}, nil
		},
		decode: func(data []byte, rv reflect.Value) error {
			if len(data) != 1 {
				return newDecodeError("", data, nil, "expected 1 byte")
			}

			switch data[0] {
			case 0:
				rv.SetBool(false)
			case 1:
				rv.SetBool(true)
			default:
				return newDecodeError("", data, nil, "invalid bool discriminant %#x", data[0])
			}

			return nil
		},
	}
}

func uintScheme(width int) *scheme {
	return &scheme{
		ordered: true,
		encode: func(rv reflect.Value) ([]byte, error) {
			return putUint(make([]byte, width), rv.Uint()), nil
		},
		decode: func(data []byte, rv reflect.Value) error {
			if len(data) != width {
				return newDecodeError("", data, nil, "expected %d bytes", width)
			}

			rv.SetUint(getUint(data))

			return nil
		},
	}
}

func intScheme(width int) *scheme {
	return &scheme{
		ordered: true,
		encode: func(rv reflect.Value) ([]byte, error) {
			return putInt(make([]byte, width), rv.Int()), nil
		},
		decode: func(data []byte, rv reflect.Value) error {
			if len(data) != width {
				return newDecodeError("", data, nil, "expected %d bytes", width)
			}

			rv.SetInt(getInt(data))

			return nil
		},
	}
}

func float32Scheme() *scheme {
	return &scheme{
		ordered: true,
		encode: func(rv reflect.Value) ([]byte, error) {
			bits := math.Float32bits(float32(rv.Float()))

			if bits&(1<<31) != 0 {
				bits = ^bits
			} else {
				bits |= 1 << 31
			}

			return binary.BigEndian.AppendUint32(nil, bits), nil
		},
		decode: func(data []byte, rv reflect.Value) error {
			if len(data) != 4 {
				return newDecodeError("", data, nil, "expected 4 bytes")
			}

			bits := binary.BigEndian.Uint32(data)

			if bits&(1<<31) != 0 {
				bits &^= 1 << 31
			} else {
				bits = ^bits
			}

			rv.SetFloat(float64(math.Float32frombits(bits)))

			return nil
		},
	}
}

func float64Scheme() *scheme {
	return &scheme{
		ordered: true,
		encode: func(rv reflect.Value) ([]byte, error) {
			bits := math.Float64bits(rv.Float())

			if bits&(1<<63) != 0 {
				bits = ^bits
			} else {
				bits |= 1 << 63
			}

			return binary.BigEndian.AppendUint64(nil, bits), nil
		},
		decode: func(data []byte, rv reflect.Value) error {
			if len(data) != 8 {
				return newDecodeError("", data, nil, "expected 8 bytes")
			}

			bits := binary.BigEndian.Uint64(data)

			if bits&(1<<63) != 0 {
				bits &^= 1 << 63
			} else {
				bits = ^bits
			}

			rv.SetFloat(math.Float64frombits(bits))

			return nil
		},
	}
}

func stringScheme() *scheme {
	return &scheme{
		ordered: true,
		encode: func(rv reflect.Value) ([]byte, error) {
			if !utf8.ValidString(rv.String()) {
				return nil, &EncodeError{Reason: "invalid UTF-8"}
			}

			return []byte(rv.String()), nil
		},
		decode: func(data []byte, rv reflect.Value) error {
			if !utf8.Valid(data) {
				return newDecodeError("", data, nil, "invalid UTF-8")
			}

			rv.SetString(string(data))

			return nil
		},
	}
}

func byteArrayScheme(length int) *scheme {
	return &scheme{
		ordered: true,
		encode: func(rv reflect.Value) ([]byte, error) {
			data := make([]byte, length)
			reflect.Copy(reflect.ValueOf(data), rv)

			return data, nil
		},
		decode: func(data []byte, rv reflect.Value) error {
			if len(data) != length {
				return newDecodeError("", data, nil, "expected %d bytes", length)
			}

			reflect.Copy(rv, reflect.ValueOf(data))

			return nil
		},
	}
}

func jsonScheme() *scheme {
	return &scheme{
		encode: func(rv reflect.Value) ([]byte, error) {
			data, err := JSON.Marshal(rv.Addr().Interface())

			if err != nil {
				return nil, &EncodeError{Reason: "JSON marshal failed", Err: err}
			}

			return data, nil
		},
		decode: func(data []byte, rv reflect.Value) error {
			if len(data) == 0 {
				return newDecodeError("", data, nil, "empty JSON document")
			}

			if err := JSON.Unmarshal(data, rv.Addr().Interface()); err != nil {
				return newDecodeError("", data, err, "invalid JSON")
			}

			return nil
		},
	}
}

// putUint writes v big-endian into all of b
func putUint(b []byte, v uint64) []byte {
	for i := len(b) - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}

	return b
}

func getUint(b []byte) uint64 {
	var v uint64

	for _, c := range b {
		v = v<<8 | uint64(c)
	}

	return v
}

// putInt writes v into all of b with the sign bit flipped
// so negative numbers sort before positive ones
func putInt(b []byte, v int64) []byte {
	bits := uint(len(b)) * 8

	return putUint(b, uint64(v)^(1<<(bits-1)))
}

func getInt(b []byte) int64 {
	bits := uint(len(b)) * 8
	v := getUint(b) ^ (1 << (bits - 1))

	// sign extend narrower widths
	return int64(v<<(64-bits)) >> (64 - bits)
}
