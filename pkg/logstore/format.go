package logstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// FormatArgs serializes each argument and joins them with a single space.
// It never panics; arguments that cannot be rendered are replaced by a
// placeholder. The second result reports how many arguments failed.
func FormatArgs(args ...any) (string, int) {
	if len(args) == 1 {
		s, ok := formatArg(args[0])
		if !ok {
			return s, 1
		}
		return s, 0
	}

	failed := 0
	parts := make([]string, len(args))
	for i, arg := range args {
		s, ok := formatArg(arg)
		if !ok {
			failed++
		}
		parts[i] = s
	}
	return strings.Join(parts, " "), failed
}

func placeholder(arg any) string {
	return fmt.Sprintf("[unserializable %T]", arg)
}

func formatArg(arg any) (s string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s, ok = placeholder(arg), false
		}
	}()

	switch v := arg.(type) {
	case nil:
		return "<nil>", true
	case string:
		return v, true
	case []byte:
		return string(v), true
	case error:
		return v.Error(), true
	case fmt.Stringer:
		return v.String(), true
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, uintptr,
		float32, float64, complex64, complex128:
		return fmt.Sprint(v), true
	}

	switch reflect.TypeOf(arg).Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return fmt.Sprint(arg), true
	}

	data, err := json.Marshal(arg)
	if err != nil {
		return placeholder(arg), false
	}
	return string(data), true
}
