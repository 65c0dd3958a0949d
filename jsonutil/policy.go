package jsonutil

import (
	"strings"
	"unicode"
)

// NamingRule selects how struct field names are spelled on the wire.
type NamingRule int

const (
	CamelCase NamingRule = iota
	PascalCase
	SnakeCase
)

var namingRuleNames = []string{"CamelCase", "PascalCase", "SnakeCase"}

func (n NamingRule) EnumNames() []string { return namingRuleNames }
func (n NamingRule) Ordinal() int        { return int(n) }

func (n NamingRule) String() string {
	name, err := MarshalEnum(n)
	if err != nil {
		return "NamingRule(?)"
	}
	return string(name)
}

func (n NamingRule) MarshalText() ([]byte, error) { return MarshalEnum(n) }
func (n *NamingRule) UnmarshalText(b []byte) error {
	return UnmarshalEnum(n, namingRuleNames, b)
}

// EnumRepresentation selects whether Enum values travel as names or ordinals.
type EnumRepresentation int

const (
	StringName EnumRepresentation = iota
	IntegerValue
)

var enumRepresentationNames = []string{"StringName", "IntegerValue"}

func (e EnumRepresentation) EnumNames() []string { return enumRepresentationNames }
func (e EnumRepresentation) Ordinal() int        { return int(e) }

func (e EnumRepresentation) String() string {
	name, err := MarshalEnum(e)
	if err != nil {
		return "EnumRepresentation(?)"
	}
	return string(name)
}

func (e EnumRepresentation) MarshalText() ([]byte, error) { return MarshalEnum(e) }
func (e *EnumRepresentation) UnmarshalText(b []byte) error {
	return UnmarshalEnum(e, enumRepresentationNames, b)
}

// Policy is the immutable serialization policy applied to every request and
// response body.
type Policy struct {
	FieldNaming NamingRule
	Enums       EnumRepresentation
}

// DefaultPolicy spells fields in camelCase and enums by member name.
var DefaultPolicy = Policy{FieldNaming: CamelCase, Enums: StringName}

// FieldName rewrites name according to the policy's naming rule.
func (p Policy) FieldName(name string) string {
	words := splitWords(name)
	if len(words) == 0 {
		return name
	}

	var b strings.Builder
	for i, w := range words {
		lower := strings.ToLower(w)
		switch p.FieldNaming {
		case SnakeCase:
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteString(lower)
		case PascalCase:
			b.WriteString(capitalize(lower))
		default:
			if i == 0 {
				b.WriteString(lower)
			} else {
				b.WriteString(capitalize(lower))
			}
		}
	}
	return b.String()
}

// normalizeKey folds a field name to a spelling-independent form so that
// userId, UserID and user_id all match the same field.
func normalizeKey(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if isSeparator(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func splitWords(name string) []string {
	runes := []rune(name)
	words := make([]string, 0, 4)
	start := -1

	flush := func(end int) {
		if start >= 0 && end > start {
			words = append(words, string(runes[start:end]))
		}
		start = -1
	}

	for i, r := range runes {
		if isSeparator(r) {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
			continue
		}
		prev := runes[i-1]
		switch {
		case unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
			flush(i)
			start = i
		case unicode.IsUpper(r) && unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
			// "URLValue" splits before the V
			flush(i)
			start = i
		}
	}
	flush(len(runes))
	return words
}

func isSeparator(r rune) bool {
	return r == '_' || r == '-' || r == ' ' || r == '.'
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
