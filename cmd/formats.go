package cmd

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/jrife/sertree/storage/codec"
)

// format converts between command line text and
// the encoding of one type
type format struct {
	name    string
	ordered bool
	parse   func(text string) ([]byte, error)
	show    func(data []byte) (string, error)
}

func typed[T any](name string, parse func(string) (T, error), show func(T) string) format {
	c := codec.For[T]()

	return format{
		name:    name,
		ordered: c.Ordered(),
		parse: func(text string) ([]byte, error) {
			v, err := parse(text)

			if err != nil {
				return nil, fmt.Errorf("could not parse %q as %s: %w", text, name, err)
			}

			return c.Encode(v)
		},
		show: func(data []byte) (string, error) {
			v, err := c.Decode(data)

			if err != nil {
				return "", err
			}

			return show(v), nil
		},
	}
}

var formats = map[string]format{
	"string": typed("string",
		func(s string) (string, error) { return s, nil },
		func(s string) string { return s }),
	"bytes": typed("bytes", hex.DecodeString, hex.EncodeToString),
	"int64": typed("int64",
		func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) },
		func(v int64) string { return strconv.FormatInt(v, 10) }),
	"uint64": typed("uint64",
		func(s string) (uint64, error) { return strconv.ParseUint(s, 10, 64) },
		func(v uint64) string { return strconv.FormatUint(v, 10) }),
	"float64": typed("float64",
		func(s string) (float64, error) { return strconv.ParseFloat(s, 64) },
		func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }),
	"bool": typed("bool", strconv.ParseBool, strconv.FormatBool),
	"time": typed("time",
		func(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) },
		func(v time.Time) string { return v.Format(time.RFC3339Nano) }),
	"json": typed("json",
		func(s string) (interface{}, error) {
			var v interface{}

			err := codec.JSON.UnmarshalFromString(s, &v)

			return v, err
		},
		func(v interface{}) string {
			s, err := codec.JSON.MarshalToString(v)

			if err != nil {
				return fmt.Sprintf("%v", v)
			}

			return s
		}),
}

func typeNames() []string {
	names := make([]string, 0, len(formats))

	for name := range formats {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func lookupFormat(name string) (format, error) {
	f, ok := formats[name]

	if !ok {
		return format{}, fmt.Errorf("unknown type %q, valid types: %v", name, typeNames())
	}

	return f, nil
}
