// Package jsonutil wraps sonic for JSON encoding and carries the wire
// serialization policy shared by every handler: field naming and enum
// representation.
package jsonutil

import (
	"io"

	"github.com/bytedance/sonic"
)

var std = sonic.ConfigStd

// Marshal encodes v without applying a Policy.
func Marshal(v any) ([]byte, error) {
	return std.Marshal(v)
}

// Decode reads a single JSON value from r into v without applying a Policy.
// Payloads from other services, such as upstream readiness reports, go
// through here.
func Decode(r io.Reader, v any) error {
	return std.NewDecoder(r).Decode(v)
}
