package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/validator"
)

// Request is a GraphQL-over-HTTP request body.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Response is a GraphQL-over-HTTP response body. Data is nil when the
// document could not be executed at all.
type Response struct {
	Data   map[string]any `json:"data,omitempty"`
	Errors gqlerror.List  `json:"errors,omitempty"`
}

// Execute validates the document against the schema, selects the operation
// and resolves its top-level fields. Each field's result is trimmed to the
// requested selection set. Only queries are supported.
func (r *Resolver) Execute(ctx context.Context, req Request) *Response {
	doc, errs := gqlparser.LoadQuery(schema, req.Query)
	if errs != nil {
		return &Response{Errors: errs}
	}

	if len(doc.Operations) == 0 {
		return &Response{Errors: gqlerror.List{gqlerror.Errorf("document contains no operations")}}
	}
	op := doc.Operations.ForName(req.OperationName)
	if op == nil {
		if req.OperationName == "" {
			return &Response{Errors: gqlerror.List{gqlerror.Errorf("operation name is required when the document has %d operations", len(doc.Operations))}}
		}
		return &Response{Errors: gqlerror.List{gqlerror.Errorf("unknown operation %q", req.OperationName)}}
	}
	if op.Operation != ast.Query {
		return &Response{Errors: gqlerror.List{gqlerror.Errorf("%s operations are not supported", op.Operation)}}
	}

	vars, err := validator.VariableValues(schema, op, req.Variables)
	if err != nil {
		return &Response{Errors: toErrorList(err)}
	}
	return r.executeOperation(ctx, doc, op, vars)
}

// executeOperation resolves a validated query operation.
func (r *Resolver) executeOperation(ctx context.Context, doc *ast.QueryDocument, op *ast.OperationDefinition, vars map[string]any) *Response {
	resp := &Response{Data: map[string]any{}}
	for _, field := range collectFields(doc, op.SelectionSet) {
		value, err := r.resolveField(ctx, field, vars)
		if err != nil {
			resp.Data[field.Alias] = nil
			resp.Errors = append(resp.Errors, fieldError(field, err))
			continue
		}
		projected, err := project(value, doc, field.SelectionSet)
		if err != nil {
			resp.Data[field.Alias] = nil
			resp.Errors = append(resp.Errors, fieldError(field, err))
			continue
		}
		resp.Data[field.Alias] = projected
	}
	return resp
}

func (r *Resolver) resolveField(ctx context.Context, field *ast.Field, vars map[string]any) (any, error) {
	q := r.Query()
	switch field.Name {
	case "__typename":
		return typeName(field), nil
	case "__schema", "__type":
		return nil, errors.New("introspection is not supported")
	case "health":
		return q.Health(ctx)
	case "carriers":
		return q.Carriers(ctx)
	case "rate":
		var input RateInput
		if err := decodeArgument(field, "input", vars, &input); err != nil {
			return nil, err
		}
		return q.Rate(ctx, input)
	default:
		return nil, fmt.Errorf("cannot query field %q on type Query", field.Name)
	}
}

func decodeArgument(field *ast.Field, name string, vars map[string]any, dst any) error {
	arg := field.Arguments.ForName(name)
	if arg == nil || arg.Value == nil {
		return fmt.Errorf("argument %q is required", name)
	}
	raw, err := arg.Value.Value(vars)
	if err != nil {
		return fmt.Errorf("argument %q: %w", name, err)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("argument %q: %w", name, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("argument %q: %w", name, err)
	}
	return nil
}

// collectFields flattens fragments into the list of fields to resolve.
func collectFields(doc *ast.QueryDocument, set ast.SelectionSet) []*ast.Field {
	var fields []*ast.Field
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			fields = append(fields, s)
		case *ast.InlineFragment:
			fields = append(fields, collectFields(doc, s.SelectionSet)...)
		case *ast.FragmentSpread:
			if def := doc.Fragments.ForName(s.Name); def != nil {
				fields = append(fields, collectFields(doc, def.SelectionSet)...)
			}
		}
	}
	return fields
}

// project converts v to plain JSON values and keeps only the selected keys.
func project(v any, doc *ast.QueryDocument, set ast.SelectionSet) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var plain any
	if err := dec.Decode(&plain); err != nil {
		return nil, err
	}
	return selectFields(plain, doc, set), nil
}

func selectFields(v any, doc *ast.QueryDocument, set ast.SelectionSet) any {
	if len(set) == 0 {
		return v
	}
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = selectFields(item, doc, set)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(set))
		for _, f := range collectFields(doc, set) {
			if f.Name == "__typename" {
				out[f.Alias] = typeName(f)
				continue
			}
			out[f.Alias] = selectFields(val[f.Name], doc, f.SelectionSet)
		}
		return out
	default:
		return v
	}
}

// typeName reports the object type a validated __typename field belongs to.
func typeName(field *ast.Field) string {
	if field.ObjectDefinition == nil {
		return ""
	}
	return field.ObjectDefinition.Name
}

func fieldError(field *ast.Field, err error) *gqlerror.Error {
	gqlErr := gqlerror.Errorf("%s", err.Error())
	gqlErr.Path = ast.Path{ast.PathName(field.Alias)}
	if field.Position != nil {
		gqlErr.Locations = []gqlerror.Location{{Line: field.Position.Line, Column: field.Position.Column}}
	}

	ext := ErrorToGraphQL(err)
	if ext.Code == "INTERNAL_ERROR" {
		return gqlErr
	}
	gqlErr.Message = ext.Message
	gqlErr.Extensions = map[string]any{
		"code":      ext.Code,
		"kind":      ext.Kind,
		"carrier":   ext.Carrier,
		"retryable": ext.Retryable,
	}
	if ext.RetryAfterSeconds != nil {
		gqlErr.Extensions["retryAfterSeconds"] = *ext.RetryAfterSeconds
	}
	if len(ext.FieldErrors) > 0 {
		gqlErr.Extensions["fieldErrors"] = ext.FieldErrors
	}
	return gqlErr
}

func toErrorList(err error) gqlerror.List {
	var list gqlerror.List
	if errors.As(err, &list) {
		return list
	}
	var gqlErr *gqlerror.Error
	if errors.As(err, &gqlErr) {
		return gqlerror.List{gqlErr}
	}
	return gqlerror.List{gqlerror.Errorf("%s", err.Error())}
}
