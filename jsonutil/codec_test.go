package jsonutil

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

type accountState int

const (
	stateInactive accountState = iota
	stateActive
	stateSuspended
)

var accountStateNames = []string{"Inactive", "Active", "Suspended"}

func (s accountState) EnumNames() []string          { return accountStateNames }
func (s accountState) Ordinal() int                 { return int(s) }
func (s accountState) MarshalText() ([]byte, error) { return MarshalEnum(s) }
func (s *accountState) UnmarshalText(b []byte) error {
	return UnmarshalEnum(s, accountStateNames, b)
}

type account struct {
	UserID      string
	DisplayName string `json:"display_name"`
	State       accountState
	History     []accountState
	Labels      map[string]string
	Owner       *owner `json:",omitempty"`
}

type owner struct {
	TenantName string
}

func TestPolicyFieldName(t *testing.T) {
	tests := []struct {
		rule NamingRule
		in   string
		want string
	}{
		{CamelCase, "UserID", "userId"},
		{CamelCase, "display_name", "displayName"},
		{CamelCase, "URLValue", "urlValue"},
		{CamelCase, "name", "name"},
		{PascalCase, "user_id", "UserId"},
		{PascalCase, "displayName", "DisplayName"},
		{SnakeCase, "DisplayName", "display_name"},
		{SnakeCase, "HTTPStatus2", "http_status2"},
	}

	for _, tt := range tests {
		t.Run(tt.rule.String()+"/"+tt.in, func(t *testing.T) {
			got := Policy{FieldNaming: tt.rule}.FieldName(tt.in)
			if got != tt.want {
				t.Fatalf("FieldName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCodecMarshalRewritesFieldNames(t *testing.T) {
	codec := NewCodec(DefaultPolicy)

	data, err := codec.Marshal(account{
		UserID:      "u-1",
		DisplayName: "Ada",
		State:       stateActive,
		History:     []accountState{stateInactive, stateActive},
		Labels:      map[string]string{"Cost_Center": "42"},
		Owner:       &owner{TenantName: "kmd"},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want := `{"displayName":"Ada","history":["Inactive","Active"],"labels":{"Cost_Center":"42"},"owner":{"tenantName":"kmd"},"state":"Active","userId":"u-1"}`
	if string(data) != want {
		t.Fatalf("unexpected encoding:\n got %s\nwant %s", data, want)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	policies := []Policy{
		DefaultPolicy,
		{FieldNaming: PascalCase, Enums: StringName},
		{FieldNaming: SnakeCase, Enums: StringName},
		{FieldNaming: CamelCase, Enums: IntegerValue},
	}

	original := account{
		UserID:      "u-7",
		DisplayName: "Grace",
		State:       stateSuspended,
		History:     []accountState{stateActive, stateSuspended},
		Labels:      map[string]string{"region": "dk"},
		Owner:       &owner{TenantName: "logic"},
	}

	for _, policy := range policies {
		t.Run(policy.FieldNaming.String()+"/"+policy.Enums.String(), func(t *testing.T) {
			codec := NewCodec(policy)
			data, err := codec.Marshal(original)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}

			var decoded account
			if err := codec.Unmarshal(data, &decoded); err != nil {
				t.Fatalf("unmarshal %s: %v", data, err)
			}
			if !reflect.DeepEqual(decoded, original) {
				t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", decoded, original)
			}
		})
	}
}

func TestCodecEnumRepresentation(t *testing.T) {
	t.Run("string name", func(t *testing.T) {
		data, err := NewCodec(DefaultPolicy).Marshal(struct{ State accountState }{stateActive})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(data) != `{"state":"Active"}` {
			t.Fatalf("expected enum by name, got %s", data)
		}
	})

	t.Run("integer value", func(t *testing.T) {
		codec := NewCodec(Policy{FieldNaming: CamelCase, Enums: IntegerValue})
		data, err := codec.Marshal(struct{ State accountState }{stateActive})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(data) != `{"state":1}` {
			t.Fatalf("expected enum by ordinal, got %s", data)
		}
	})
}

// credentialKind implements Enum without text methods; the codec alone maps
// it to and from member names.
type credentialKind int

const (
	kindSecret credentialKind = iota
	kindCertificate
	kindAssertion
)

func (k credentialKind) EnumNames() []string { return []string{"Secret", "Certificate", "Assertion"} }
func (k credentialKind) Ordinal() int        { return int(k) }

type credential struct {
	Kind    credentialKind
	Allowed []credentialKind
}

func TestCodecEnumWithoutTextMethods(t *testing.T) {
	original := credential{Kind: kindCertificate, Allowed: []credentialKind{kindSecret, kindAssertion}}

	t.Run("string name", func(t *testing.T) {
		codec := NewCodec(DefaultPolicy)
		data, err := codec.Marshal(original)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if want := `{"allowed":["Secret","Assertion"],"kind":"Certificate"}`; string(data) != want {
			t.Fatalf("unexpected encoding:\n got %s\nwant %s", data, want)
		}

		var decoded credential
		if err := codec.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if !reflect.DeepEqual(decoded, original) {
			t.Fatalf("round trip mismatch: %+v", decoded)
		}
	})

	t.Run("integer value", func(t *testing.T) {
		codec := NewCodec(Policy{FieldNaming: CamelCase, Enums: IntegerValue})
		data, err := codec.Marshal(original)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if want := `{"allowed":[0,2],"kind":1}`; string(data) != want {
			t.Fatalf("unexpected encoding:\n got %s\nwant %s", data, want)
		}

		var decoded credential
		if err := codec.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if !reflect.DeepEqual(decoded, original) {
			t.Fatalf("round trip mismatch: %+v", decoded)
		}
	})

	t.Run("rejects ordinals and unknown names", func(t *testing.T) {
		codec := NewCodec(DefaultPolicy)
		for _, body := range []string{`{"kind":1}`, `{"kind":"Password"}`, `{"allowed":["Secret","Token"]}`} {
			var decoded credential
			var de *DeserializationError
			if err := codec.Unmarshal([]byte(body), &decoded); !errors.As(err, &de) {
				t.Fatalf("%s: expected DeserializationError, got %v", body, err)
			}
		}
	})
}

func TestCodecUnmarshalRejectsDuplicateSpellings(t *testing.T) {
	codec := NewCodec(DefaultPolicy)

	for range 20 {
		var decoded account
		err := codec.Unmarshal([]byte(`{"userId":"u-1","user_id":"u-2"}`), &decoded)
		var de *DeserializationError
		if !errors.As(err, &de) {
			t.Fatalf("expected DeserializationError, got %v (decoded %q)", err, decoded.UserID)
		}
		if !strings.Contains(err.Error(), `"userId" and "user_id"`) {
			t.Fatalf("unexpected message %v", err)
		}
	}
}

func TestCodecUnmarshalAcceptsAnySpelling(t *testing.T) {
	codec := NewCodec(DefaultPolicy)
	var decoded account
	body := `{"user_id":"u-2","DisplayName":"Linus","STATE":"Inactive"}`
	if err := codec.Unmarshal([]byte(body), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.UserID != "u-2" || decoded.DisplayName != "Linus" || decoded.State != stateInactive {
		t.Fatalf("unexpected decode result %+v", decoded)
	}
}

func TestCodecUnmarshalFailures(t *testing.T) {
	codec := NewCodec(DefaultPolicy)

	cases := map[string]string{
		"unknown enum name": `{"state":"Deleted"}`,
		"shape mismatch":    `{"userId":42}`,
		"malformed json":    `{"userId":`,
		"array for object":  `[1,2,3]`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			var decoded account
			err := codec.Unmarshal([]byte(body), &decoded)
			var de *DeserializationError
			if !errors.As(err, &de) {
				t.Fatalf("expected DeserializationError, got %v", err)
			}
		})
	}

	t.Run("unknown ordinal", func(t *testing.T) {
		intCodec := NewCodec(Policy{Enums: IntegerValue})
		var decoded account
		err := intCodec.Unmarshal([]byte(`{"state":9}`), &decoded)
		var de *DeserializationError
		if !errors.As(err, &de) {
			t.Fatalf("expected DeserializationError, got %v", err)
		}
	})

	t.Run("empty stream", func(t *testing.T) {
		var decoded account
		err := codec.Decode(strings.NewReader("  "), &decoded)
		var de *DeserializationError
		if !errors.As(err, &de) {
			t.Fatalf("expected DeserializationError, got %v", err)
		}
	})

	t.Run("non pointer target", func(t *testing.T) {
		err := codec.Unmarshal([]byte(`{}`), account{})
		var de *DeserializationError
		if !errors.As(err, &de) {
			t.Fatalf("expected DeserializationError, got %v", err)
		}
	})
}

func TestCodecEncodeAppendsNewline(t *testing.T) {
	var buf strings.Builder
	if err := NewCodec(DefaultPolicy).Encode(&buf, struct{ TraceID string }{"01J"}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if buf.String() != "{\"traceId\":\"01J\"}\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestEnumTextHelpers(t *testing.T) {
	if _, err := MarshalEnum(accountState(7)); err == nil {
		t.Fatal("expected out of range ordinal to fail")
	}

	var s accountState
	if err := UnmarshalEnum(&s, accountStateNames, []byte("Suspended")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != stateSuspended {
		t.Fatalf("expected Suspended, got %d", s)
	}
}
