package codec

import (
	"fmt"
)

// MaxRawLen is the number of input bytes a
// DecodeError keeps for diagnostics
const MaxRawLen = 64

// EncodeError is returned when a value cannot be encoded
type EncodeError struct {
	// Type names the Go type that was being encoded
	Type string
	// Reason describes what went wrong
	Reason string
	// Err is the underlying error, if any
	Err error
}

func (err *EncodeError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("could not encode %s: %s: %s", err.Type, err.Reason, err.Err.Error())
	}

	return fmt.Sprintf("could not encode %s: %s", err.Type, err.Reason)
}

func (err *EncodeError) Unwrap() error {
	return err.Err
}

// DecodeError is returned when bytes cannot be
// decoded as the requested type
type DecodeError struct {
	// Type names the Go type that was being decoded
	Type string
	// Reason describes what went wrong
	Reason string
	// Len is the length of the input
	Len int
	// Raw holds up to MaxRawLen bytes of the input
	Raw []byte
	// Err is the underlying error, if any
	Err error
}

func newDecodeError(typ string, data []byte, err error, format string, args ...interface{}) *DecodeError {
	raw := data

	if len(raw) > MaxRawLen {
		raw = raw[:MaxRawLen]
	}

	return &DecodeError{
		Type:   typ,
		Reason: fmt.Sprintf(format, args...),
		Len:    len(data),
		Raw:    append([]byte{}, raw...),
		Err:    err,
	}
}

func (err *DecodeError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("could not decode %d bytes as %s: %s: %s", err.Len, err.Type, err.Reason, err.Err.Error())
	}

	return fmt.Sprintf("could not decode %d bytes as %s: %s", err.Len, err.Type, err.Reason)
}

func (err *DecodeError) Unwrap() error {
	return err.Err
}
