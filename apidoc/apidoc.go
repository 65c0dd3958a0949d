// Package apidoc turns the dispatch table and the declared security scheme
// into an OpenAPI 3 document.
//
// Generation runs once at startup. Any problem with the operation metadata
// is returned as a *GenerationError and the gateway refuses to start; a
// broken document is never served.
package apidoc

import (
	"context"
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3gen"

	"github.com/drblury/stsgateway/dispatch"
	"github.com/drblury/stsgateway/jsonutil"
	"github.com/drblury/stsgateway/security"
)

const openAPIVersion = "3.0.3"

// Info is the document header.
type Info struct {
	Title          string
	Version        string
	Description    string
	TermsOfService string
}

// DefaultInfo is the header the gateway publishes unless configured otherwise.
var DefaultInfo = Info{
	Title:          "KMD Logic STS Bridge",
	Version:        "v1",
	Description:    "A simple example ASP.NET Core Web API",
	TermsOfService: "https://example.com/terms",
}

// GenerationError reports why a document could not be produced.
type GenerationError struct {
	Operation string
	Err       error
}

func (e *GenerationError) Error() string {
	if e.Operation == "" {
		return "openapi generation failed: " + e.Err.Error()
	}
	return "openapi generation failed for " + e.Operation + ": " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Generate builds and validates the document. Every operation requires
// scheme unless it is anonymous or outside scheme.RequiredFor.
func Generate(ctx context.Context, info Info, ops []dispatch.Operation, scheme security.Scheme, policy jsonutil.Policy) (*openapi3.T, error) {
	if err := scheme.Validate(); err != nil {
		return nil, &GenerationError{Err: err}
	}

	doc := &openapi3.T{
		OpenAPI: openAPIVersion,
		Info: &openapi3.Info{
			Title:          info.Title,
			Version:        info.Version,
			Description:    info.Description,
			TermsOfService: info.TermsOfService,
		},
		Paths: openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas: openapi3.Schemas{},
			SecuritySchemes: openapi3.SecuritySchemes{
				scheme.ID: &openapi3.SecuritySchemeRef{Value: securitySchemeFor(scheme)},
			},
		},
		Security: openapi3.SecurityRequirements{
			openapi3.NewSecurityRequirement().Authenticate(scheme.ID),
		},
	}

	g := &generator{policy: policy, schemas: doc.Components.Schemas}
	ids := make(map[string]struct{}, len(ops))
	for _, op := range ops {
		operation, err := g.operation(op, scheme)
		if err != nil {
			return nil, &GenerationError{Operation: op.ID, Err: err}
		}
		if _, dup := ids[op.ID]; dup {
			return nil, &GenerationError{Operation: op.ID, Err: errors.New("operation id declared twice")}
		}
		ids[op.ID] = struct{}{}
		if existing := doc.Paths.Find(op.OpenAPIPath()); existing != nil && existing.GetOperation(op.Method) != nil {
			return nil, &GenerationError{Operation: op.ID, Err: errors.Newf("%s %s declared twice", op.Method, op.OpenAPIPath())}
		}
		doc.AddOperation(op.OpenAPIPath(), op.Method, operation)
	}

	if err := doc.Validate(ctx); err != nil {
		return nil, &GenerationError{Err: errors.Wrap(err, "document is invalid")}
	}
	return doc, nil
}

func securitySchemeFor(s security.Scheme) *openapi3.SecurityScheme {
	return &openapi3.SecurityScheme{
		Type:        "apiKey",
		In:          s.Location.String(),
		Name:        s.ParameterName,
		Description: s.Description,
	}
}

type generator struct {
	policy  jsonutil.Policy
	schemas openapi3.Schemas
}

func (g *generator) operation(op dispatch.Operation, scheme security.Scheme) (*openapi3.Operation, error) {
	if op.ID == "" {
		return nil, errors.New("operation id is required")
	}
	if !strings.HasPrefix(op.Path, "/") {
		return nil, errors.Newf("path %q must start with /", op.Path)
	}
	if http.StatusText(op.SuccessStatus()) == "" {
		return nil, errors.Newf("unknown status %d", op.SuccessStatus())
	}

	operation := &openapi3.Operation{
		OperationID: op.ID,
		Summary:     op.Summary,
		Description: op.Description,
		Tags:        append([]string(nil), op.Tags...),
	}

	for _, name := range op.PathParams() {
		operation.Parameters = append(operation.Parameters, &openapi3.ParameterRef{
			Value: openapi3.NewPathParameter(name).WithSchema(openapi3.NewStringSchema()),
		})
	}

	if op.Request != nil {
		ref, err := g.schemaFor(op.Request)
		if err != nil {
			return nil, errors.Wrap(err, "request schema")
		}
		operation.RequestBody = &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(ref),
		}
	}

	success := openapi3.NewResponse().WithDescription(http.StatusText(op.SuccessStatus()))
	if op.Response != nil {
		ref, err := g.schemaFor(op.Response)
		if err != nil {
			return nil, errors.Wrap(err, "response schema")
		}
		success = success.WithJSONSchemaRef(ref)
	}
	responses := []openapi3.NewResponsesOption{
		openapi3.WithStatus(op.SuccessStatus(), &openapi3.ResponseRef{Value: success}),
	}

	secured := !op.Anonymous && scheme.Applies(op.ID)
	if secured {
		for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
			responses = append(responses, openapi3.WithStatus(status, &openapi3.ResponseRef{
				Value: openapi3.NewResponse().WithDescription(http.StatusText(status)),
			}))
		}
		if len(op.Scopes) > 0 {
			operation.Extensions = map[string]any{"x-required-scopes": append([]string(nil), op.Scopes...)}
		}
	} else {
		operation.Security = &openapi3.SecurityRequirements{}
	}
	operation.Responses = openapi3.NewResponses(responses...)

	return operation, nil
}

func (g *generator) schemaFor(value any) (*openapi3.SchemaRef, error) {
	// Without ThrowErrorOnCycle a self-referencing type comes back as an
	// empty schema that still validates.
	ref, err := openapi3gen.NewSchemaRefForValue(value, g.schemas,
		openapi3gen.SchemaCustomizer(g.customize),
		openapi3gen.ThrowErrorOnCycle(),
	)
	if err != nil {
		var cycle *openapi3gen.CycleError
		if errors.As(err, &cycle) {
			return nil, errors.Newf("%T refers to itself", value)
		}
		return nil, err
	}
	g.rename(ref, make(map[*openapi3.Schema]struct{}))
	return ref, nil
}

// customize renders Enum types the way the codec puts them on the wire.
func (g *generator) customize(_ string, t reflect.Type, _ reflect.StructTag, schema *openapi3.Schema) error {
	names, ok := jsonutil.EnumNamesOf(t)
	if !ok {
		return nil
	}

	schema.Format = ""
	schema.Min = nil
	schema.Max = nil
	schema.Enum = make([]any, len(names))
	if g.policy.Enums == jsonutil.IntegerValue {
		schema.Type = &openapi3.Types{openapi3.TypeInteger}
		for i := range names {
			schema.Enum[i] = float64(i)
		}
		schema.Description = enumDescription(names)
		return nil
	}

	schema.Type = &openapi3.Types{openapi3.TypeString}
	for i, name := range names {
		schema.Enum[i] = name
	}
	return nil
}

func enumDescription(names []string) string {
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = strconv.Itoa(i) + " = " + name
	}
	return strings.Join(parts, ", ")
}

// rename applies the naming rule to property names and required lists.
func (g *generator) rename(ref *openapi3.SchemaRef, seen map[*openapi3.Schema]struct{}) {
	if ref == nil || ref.Value == nil {
		return
	}
	s := ref.Value
	if _, done := seen[s]; done {
		return
	}
	seen[s] = struct{}{}

	if len(s.Properties) > 0 {
		keys := make([]string, 0, len(s.Properties))
		for k := range s.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		renamed := make(openapi3.Schemas, len(s.Properties))
		for _, k := range keys {
			child := s.Properties[k]
			g.rename(child, seen)
			renamed[g.policy.FieldName(k)] = child
		}
		s.Properties = renamed

		for i, name := range s.Required {
			s.Required[i] = g.policy.FieldName(name)
		}
	}

	g.rename(s.Items, seen)
	if s.AdditionalProperties.Schema != nil {
		g.rename(s.AdditionalProperties.Schema, seen)
	}
	for _, group := range []openapi3.SchemaRefs{s.AllOf, s.AnyOf, s.OneOf} {
		for _, child := range group {
			g.rename(child, seen)
		}
	}
}
