package apidoc_test

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"slices"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/drblury/stsgateway/apidoc"
	"github.com/drblury/stsgateway/dispatch"
	"github.com/drblury/stsgateway/jsonutil"
	"github.com/drblury/stsgateway/security"
)

type grantType int

const (
	grantClientCredentials grantType = iota
	grantTokenExchange
)

var grantTypeNames = []string{"ClientCredentials", "TokenExchange"}

func (g grantType) EnumNames() []string          { return grantTypeNames }
func (g grantType) Ordinal() int                 { return int(g) }
func (g grantType) MarshalText() ([]byte, error) { return jsonutil.MarshalEnum(g) }
func (g *grantType) UnmarshalText(b []byte) error {
	return jsonutil.UnmarshalEnum(g, grantTypeNames, b)
}

type exchangeRequest struct {
	SubjectToken string    `json:"subject_token"`
	GrantType    grantType `json:"grant_type"`
	Audience     string    `json:"audience,omitempty"`
}

type exchangeResponse struct {
	AccessToken string
	ExpiresIn   int
}

type orgUnit struct {
	DisplayName string
	Children    []orgUnit
}

type delegation struct {
	Actor string
	Chain *delegation `json:"chain,omitempty"`
}

var noop = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

func operations() []dispatch.Operation {
	return []dispatch.Operation{
		{
			ID:       "exchangeToken",
			Method:   http.MethodPost,
			Path:     "/token",
			Summary:  "Exchange a subject token",
			Request:  exchangeRequest{},
			Response: exchangeResponse{},
			Handler:  noop,
		},
		{
			ID:      "getClient",
			Method:  http.MethodGet,
			Path:    "/clients/{clientID}",
			Scopes:  []string{"clients:read"},
			Handler: noop,
		},
		{
			ID:        "getVersion",
			Method:    http.MethodGet,
			Path:      "/version",
			Anonymous: true,
			Handler:   noop,
		},
	}
}

func generate(t *testing.T, ops []dispatch.Operation, policy jsonutil.Policy) *openapi3.T {
	t.Helper()
	doc, err := apidoc.Generate(context.Background(), apidoc.DefaultInfo, ops, security.BearerScheme(), policy)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return doc
}

func TestGenerateHeaderAndSecurity(t *testing.T) {
	doc := generate(t, operations(), jsonutil.DefaultPolicy)

	if doc.Info.Title != "KMD Logic STS Bridge" || doc.Info.Version != "v1" || doc.Info.TermsOfService != "https://example.com/terms" {
		t.Fatalf("unexpected info %+v", doc.Info)
	}

	ref, ok := doc.Components.SecuritySchemes["Bearer"]
	if !ok {
		t.Fatal("expected Bearer security scheme")
	}
	ss := ref.Value
	if ss.Type != "apiKey" || ss.In != "header" || ss.Name != "Authorization" {
		t.Fatalf("unexpected scheme %+v", ss)
	}
	if ss.Description != "Please enter 'Bearer' followed by space and a JWT from logic" {
		t.Fatalf("unexpected description %q", ss.Description)
	}

	if len(doc.Security) != 1 {
		t.Fatalf("expected one global requirement, got %d", len(doc.Security))
	}
	if _, ok := doc.Security[0]["Bearer"]; !ok {
		t.Fatalf("expected global requirement on Bearer, got %v", doc.Security)
	}
}

func TestGenerateOperations(t *testing.T) {
	doc := generate(t, operations(), jsonutil.DefaultPolicy)

	token := doc.Paths.Find("/token").Post
	if token == nil || token.OperationID != "exchangeToken" {
		t.Fatal("expected exchangeToken operation")
	}
	if token.Security != nil {
		t.Fatal("protected operation should inherit the global requirement")
	}
	if token.Responses.Value("401") == nil || token.Responses.Value("403") == nil {
		t.Fatal("protected operation should document 401 and 403")
	}

	body := token.RequestBody.Value.Content.Get("application/json").Schema.Value
	for _, prop := range []string{"subjectToken", "grantType", "audience"} {
		if _, ok := body.Properties[prop]; !ok {
			t.Fatalf("expected property %q in %v", prop, slices.Collect(maps.Keys(body.Properties)))
		}
	}
	grant := body.Properties["grantType"].Value
	if !grant.Type.Is(openapi3.TypeString) || !slices.Equal(grant.Enum, []any{"ClientCredentials", "TokenExchange"}) {
		t.Fatalf("expected string enum, got %v %v", grant.Type, grant.Enum)
	}

	resp := token.Responses.Value("200").Value.Content.Get("application/json").Schema.Value
	if _, ok := resp.Properties["accessToken"]; !ok {
		t.Fatal("expected camelCase response property accessToken")
	}

	client := doc.Paths.Find("/clients/{clientID}").Get
	if len(client.Parameters) != 1 || client.Parameters[0].Value.Name != "clientID" || client.Parameters[0].Value.In != "path" {
		t.Fatalf("expected clientID path parameter, got %+v", client.Parameters)
	}
	if scopes, _ := client.Extensions["x-required-scopes"].([]string); !slices.Equal(scopes, []string{"clients:read"}) {
		t.Fatalf("expected scopes extension, got %v", client.Extensions)
	}

	version := doc.Paths.Find("/version").Get
	if version.Security == nil || len(*version.Security) != 0 {
		t.Fatal("anonymous operation should opt out of security")
	}
}

func TestGenerateIntegerEnums(t *testing.T) {
	doc := generate(t, operations(), jsonutil.Policy{FieldNaming: jsonutil.SnakeCase, Enums: jsonutil.IntegerValue})

	body := doc.Paths.Find("/token").Post.RequestBody.Value.Content.Get("application/json").Schema.Value
	grant, ok := body.Properties["grant_type"]
	if !ok {
		t.Fatal("expected snake_case property grant_type")
	}
	if !grant.Value.Type.Is(openapi3.TypeInteger) || len(grant.Value.Enum) != 2 {
		t.Fatalf("expected integer enum, got %v %v", grant.Value.Type, grant.Value.Enum)
	}
}

func TestGenerateFailures(t *testing.T) {
	cases := map[string]func() ([]dispatch.Operation, apidoc.Info, security.Scheme){
		"missing operation id": func() ([]dispatch.Operation, apidoc.Info, security.Scheme) {
			return []dispatch.Operation{{Method: http.MethodGet, Path: "/x", Handler: noop}}, apidoc.DefaultInfo, security.BearerScheme()
		},
		"relative path": func() ([]dispatch.Operation, apidoc.Info, security.Scheme) {
			return []dispatch.Operation{{ID: "x", Method: http.MethodGet, Path: "x", Handler: noop}}, apidoc.DefaultInfo, security.BearerScheme()
		},
		"duplicate operation id": func() ([]dispatch.Operation, apidoc.Info, security.Scheme) {
			return []dispatch.Operation{
				{ID: "x", Method: http.MethodGet, Path: "/a", Handler: noop},
				{ID: "x", Method: http.MethodGet, Path: "/b", Handler: noop},
			}, apidoc.DefaultInfo, security.BearerScheme()
		},
		"duplicate route": func() ([]dispatch.Operation, apidoc.Info, security.Scheme) {
			return []dispatch.Operation{
				{ID: "a", Method: http.MethodGet, Path: "/a", Handler: noop},
				{ID: "b", Method: http.MethodGet, Path: "/a", Handler: noop},
			}, apidoc.DefaultInfo, security.BearerScheme()
		},
		"missing version": func() ([]dispatch.Operation, apidoc.Info, security.Scheme) {
			info := apidoc.DefaultInfo
			info.Version = ""
			return operations(), info, security.BearerScheme()
		},
		"invalid scheme": func() ([]dispatch.Operation, apidoc.Info, security.Scheme) {
			return operations(), apidoc.DefaultInfo, security.Scheme{}
		},
		"self-referencing response": func() ([]dispatch.Operation, apidoc.Info, security.Scheme) {
			return []dispatch.Operation{{ID: "listUnits", Method: http.MethodGet, Path: "/units", Response: orgUnit{}, Handler: noop}}, apidoc.DefaultInfo, security.BearerScheme()
		},
		"self-referencing request": func() ([]dispatch.Operation, apidoc.Info, security.Scheme) {
			return []dispatch.Operation{{ID: "delegate", Method: http.MethodPost, Path: "/delegate", Request: delegation{}, Handler: noop}}, apidoc.DefaultInfo, security.BearerScheme()
		},
	}

	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			ops, info, scheme := build()
			_, err := apidoc.Generate(context.Background(), info, ops, scheme, jsonutil.DefaultPolicy)
			var genErr *apidoc.GenerationError
			if !errors.As(err, &genErr) {
				t.Fatalf("expected GenerationError, got %v", err)
			}
		})
	}
}

func TestGenerateNamesTheSelfReferencingOperation(t *testing.T) {
	ops := []dispatch.Operation{{ID: "listUnits", Method: http.MethodGet, Path: "/units", Response: orgUnit{}, Handler: noop}}

	doc, err := apidoc.Generate(context.Background(), apidoc.DefaultInfo, ops, security.BearerScheme(), jsonutil.DefaultPolicy)
	if doc != nil {
		t.Fatal("expected no document")
	}
	var genErr *apidoc.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if genErr.Operation != "listUnits" {
		t.Fatalf("expected the failing operation to be named, got %q", genErr.Operation)
	}
	if !strings.Contains(err.Error(), "orgUnit refers to itself") {
		t.Fatalf("unexpected error %v", err)
	}
}
