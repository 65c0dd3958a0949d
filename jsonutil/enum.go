package jsonutil

import (
	"fmt"
	"reflect"
	"strconv"
)

// Enum is implemented by integer-backed types whose members travel by name.
// EnumNames is indexed by ordinal.
type Enum interface {
	EnumNames() []string
	Ordinal() int
}

var enumType = reflect.TypeFor[Enum]()

// MarshalEnum returns the member name of e. It is meant to back MarshalText.
func MarshalEnum(e Enum) ([]byte, error) {
	names := e.EnumNames()
	ord := e.Ordinal()
	if ord < 0 || ord >= len(names) {
		return nil, fmt.Errorf("enum ordinal %d out of range [0,%d)", ord, len(names))
	}
	return []byte(names[ord]), nil
}

// UnmarshalEnum parses a member name into dst. It is meant to back
// UnmarshalText. Unknown names fail with a DeserializationError.
func UnmarshalEnum[E ~int](dst *E, names []string, text []byte) error {
	s := string(text)
	for i, name := range names {
		if name == s {
			*dst = E(i)
			return nil
		}
	}
	return &DeserializationError{
		Err: fmt.Errorf("unknown %T member %q", *dst, s),
	}
}

// EnumNamesOf returns the member names when t, or a pointer to t,
// implements Enum.
func EnumNamesOf(t reflect.Type) ([]string, bool) {
	if t == nil {
		return nil, false
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() == reflect.Interface || !t.Implements(enumType) {
		return nil, false
	}
	return reflect.Zero(t).Interface().(Enum).EnumNames(), true
}

func enumNameForOrdinal(t reflect.Type, ordinal string) (string, bool) {
	n, err := strconv.Atoi(ordinal)
	if err != nil {
		return "", false
	}
	names := reflect.Zero(t).Interface().(Enum).EnumNames()
	if n < 0 || n >= len(names) {
		return "", false
	}
	return names[n], true
}

func enumOrdinalForName(t reflect.Type, name string) (int, bool) {
	names := reflect.Zero(t).Interface().(Enum).EnumNames()
	for i, candidate := range names {
		if candidate == name {
			return i, true
		}
	}
	return 0, false
}

// DeserializationError reports a malformed body or one that does not fit the
// target shape. Callers surface it as a client error.
type DeserializationError struct {
	Err error
}

func (e *DeserializationError) Error() string {
	return "deserialization failed: " + e.Err.Error()
}

func (e *DeserializationError) Unwrap() error { return e.Err }
