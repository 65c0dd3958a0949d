package jsonutil

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
)

// treeAPI decodes into generic trees with json.Number so that integers
// survive the rewrite untouched.
var treeAPI = sonic.Config{
	EscapeHTML:       true,
	SortMapKeys:      true,
	CompactMarshaler: true,
	CopyString:       true,
	ValidateString:   true,
	UseNumber:        true,
}.Froze()

var (
	jsonMarshalerType   = reflect.TypeFor[json.Marshaler]()
	jsonUnmarshalerType = reflect.TypeFor[json.Unmarshaler]()
	textMarshalerType   = reflect.TypeFor[encoding.TextMarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// Codec encodes and decodes bodies according to a Policy. A Codec is safe for
// concurrent use.
type Codec struct {
	policy Policy
}

// NewCodec returns a Codec bound to p.
func NewCodec(p Policy) *Codec {
	return &Codec{policy: p}
}

// Policy returns the policy the codec applies.
func (c *Codec) Policy() Policy {
	return c.policy
}

// Marshal encodes v, rewriting field names and enum values per the policy.
// Object keys are emitted in sorted order.
func (c *Codec) Marshal(v any) ([]byte, error) {
	raw, err := treeAPI.Marshal(v)
	if err != nil {
		return nil, err
	}

	var tree any
	if err := treeAPI.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}

	return treeAPI.Marshal(c.encodeValue(tree, reflect.ValueOf(v)))
}

// Unmarshal decodes data into v. Keys are matched against v's fields
// independent of their spelling. Every failure is a *DeserializationError.
func (c *Codec) Unmarshal(data []byte, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return &DeserializationError{Err: fmt.Errorf("decode target must be a non-nil pointer, got %T", v)}
	}

	var tree any
	if err := treeAPI.Unmarshal(data, &tree); err != nil {
		return &DeserializationError{Err: err}
	}

	tree, err := c.decodeNode(tree, rv.Type().Elem())
	if err != nil {
		return asDeserializationError(err)
	}

	raw, err := treeAPI.Marshal(tree)
	if err != nil {
		return &DeserializationError{Err: err}
	}

	if err := treeAPI.Unmarshal(raw, v); err != nil {
		return asDeserializationError(err)
	}
	return nil
}

// Encode writes the encoding of v followed by a newline.
func (c *Codec) Encode(w io.Writer, v any) error {
	data, err := c.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// Decode reads all of r and decodes it into v.
func (c *Codec) Decode(r io.Reader, v any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return &DeserializationError{Err: err}
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return &DeserializationError{Err: io.ErrUnexpectedEOF}
	}
	return c.Unmarshal(data, v)
}

// FieldName exposes the policy's naming rule.
func (c *Codec) FieldName(name string) string {
	return c.policy.FieldName(name)
}

func asDeserializationError(err error) error {
	var de *DeserializationError
	if errors.As(err, &de) {
		return de
	}
	return &DeserializationError{Err: err}
}

func (c *Codec) encodeValue(node any, rv reflect.Value) any {
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return node
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() || node == nil {
		return node
	}

	t := rv.Type()
	if t.Implements(enumType) {
		return c.encodeEnum(node, t)
	}
	if marshalsItself(t) {
		return node
	}

	switch t.Kind() {
	case reflect.Struct:
		obj, ok := node.(map[string]any)
		if !ok {
			return node
		}
		fields := cachedFields(t)
		out := make(map[string]any, len(obj))
		for key, val := range obj {
			f, ok := fields.byKey[key]
			if !ok {
				out[key] = val
				continue
			}
			fv, err := rv.FieldByIndexErr(f.index)
			if err != nil {
				fv = reflect.Value{}
			}
			out[c.policy.FieldName(key)] = c.encodeValue(val, fv)
		}
		return out
	case reflect.Slice, reflect.Array:
		items, ok := node.([]any)
		if !ok {
			return node
		}
		for i := range items {
			if i < rv.Len() {
				items[i] = c.encodeValue(items[i], rv.Index(i))
			}
		}
		return items
	case reflect.Map:
		obj, ok := node.(map[string]any)
		if !ok || t.Key().Kind() != reflect.String {
			return node
		}
		for key, val := range obj {
			obj[key] = c.encodeValue(val, rv.MapIndex(reflect.ValueOf(key).Convert(t.Key())))
		}
		return obj
	}
	return node
}

func (c *Codec) decodeNode(node any, t reflect.Type) (any, error) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || node == nil || t.Kind() == reflect.Interface {
		return node, nil
	}

	if t.Implements(enumType) {
		return c.decodeEnum(node, t)
	}
	if unmarshalsItself(t) {
		return node, nil
	}

	switch t.Kind() {
	case reflect.Struct:
		obj, ok := node.(map[string]any)
		if !ok {
			return node, nil
		}
		fields := cachedFields(t)
		out := make(map[string]any, len(obj))
		spelled := make(map[string]string, len(obj))
		for key, val := range obj {
			f, ok := fields.byNorm[normalizeKey(key)]
			if !ok {
				continue
			}
			if other, dup := spelled[f.key]; dup {
				a, b := min(key, other), max(key, other)
				return nil, &DeserializationError{Err: fmt.Errorf("keys %q and %q both name field %s", a, b, f.key)}
			}
			spelled[f.key] = key
			decoded, err := c.decodeNode(val, f.typ)
			if err != nil {
				return nil, err
			}
			out[f.key] = decoded
		}
		return out, nil
	case reflect.Slice, reflect.Array:
		items, ok := node.([]any)
		if !ok {
			return node, nil
		}
		for i := range items {
			decoded, err := c.decodeNode(items[i], t.Elem())
			if err != nil {
				return nil, err
			}
			items[i] = decoded
		}
		return items, nil
	case reflect.Map:
		obj, ok := node.(map[string]any)
		if !ok {
			return node, nil
		}
		for key, val := range obj {
			decoded, err := c.decodeNode(val, t.Elem())
			if err != nil {
				return nil, err
			}
			obj[key] = decoded
		}
		return obj, nil
	}
	return node, nil
}

// encodeEnum rewrites an enum node to the policy's representation. Types
// with text methods arrive as names, the rest as ordinals.
func (c *Codec) encodeEnum(node any, t reflect.Type) any {
	if c.policy.Enums == IntegerValue {
		if name, ok := node.(string); ok {
			if ord, ok := enumOrdinalForName(t, name); ok {
				return json.Number(strconv.Itoa(ord))
			}
		}
		return node
	}
	if num, ok := node.(json.Number); ok {
		if name, ok := enumNameForOrdinal(t, num.String()); ok {
			return name
		}
	}
	return node
}

// decodeEnum accepts the policy's representation and hands sonic whatever
// the target type decodes natively: names for text unmarshalers, ordinals
// otherwise.
func (c *Codec) decodeEnum(node any, t reflect.Type) (any, error) {
	textual := unmarshalsItself(t)

	if c.policy.Enums == IntegerValue {
		num, ok := node.(json.Number)
		if !ok {
			return nil, &DeserializationError{Err: fmt.Errorf("expected integer for %s, got %v", t, node)}
		}
		name, ok := enumNameForOrdinal(t, num.String())
		if !ok {
			return nil, &DeserializationError{Err: fmt.Errorf("unknown %s ordinal %s", t, num)}
		}
		if textual {
			return name, nil
		}
		return num, nil
	}

	if textual {
		return node, nil
	}
	name, ok := node.(string)
	if !ok {
		return nil, &DeserializationError{Err: fmt.Errorf("expected member name for %s, got %v", t, node)}
	}
	ord, ok := enumOrdinalForName(t, name)
	if !ok {
		return nil, &DeserializationError{Err: fmt.Errorf("unknown %s member %q", t, name)}
	}
	return json.Number(strconv.Itoa(ord)), nil
}

func marshalsItself(t reflect.Type) bool {
	pt := reflect.PointerTo(t)
	return t.Implements(jsonMarshalerType) || pt.Implements(jsonMarshalerType) ||
		t.Implements(textMarshalerType) || pt.Implements(textMarshalerType)
}

func unmarshalsItself(t reflect.Type) bool {
	pt := reflect.PointerTo(t)
	return pt.Implements(jsonUnmarshalerType) || pt.Implements(textUnmarshalerType)
}

type fieldInfo struct {
	key   string
	index []int
	typ   reflect.Type
}

type structFields struct {
	byKey  map[string]fieldInfo
	byNorm map[string]fieldInfo
}

var fieldCache sync.Map // reflect.Type -> *structFields

func cachedFields(t reflect.Type) *structFields {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.(*structFields)
	}
	sf := &structFields{
		byKey:  make(map[string]fieldInfo),
		byNorm: make(map[string]fieldInfo),
	}
	collectFields(t, nil, sf)
	actual, _ := fieldCache.LoadOrStore(t, sf)
	return actual.(*structFields)
}

// collectFields mirrors encoding/json's visibility rules closely enough for
// renaming: direct fields shadow promoted ones, "-" is skipped.
func collectFields(t reflect.Type, index []int, sf *structFields) {
	var embedded []reflect.StructField

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")

		if f.Anonymous && name == "" {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				embedded = append(embedded, f)
				continue
			}
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		addField(sf, fieldInfo{key: name, index: appendIndex(index, i), typ: f.Type})
	}

	for _, f := range embedded {
		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		collectFields(ft, appendIndex(index, f.Index[0]), sf)
	}
}

func addField(sf *structFields, info fieldInfo) {
	if _, exists := sf.byKey[info.key]; exists {
		return
	}
	sf.byKey[info.key] = info
	norm := normalizeKey(info.key)
	if _, exists := sf.byNorm[norm]; !exists {
		sf.byNorm[norm] = info
	}
}

func appendIndex(index []int, i int) []int {
	out := make([]int, len(index)+1)
	copy(out, index)
	out[len(index)] = i
	return out
}
