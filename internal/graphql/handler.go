package graphql

import (
	"context"
	_ "embed"
	"encoding/json"
	"net/http"

	gqlgen "github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/lru"
	"github.com/99designs/gqlgen/graphql/handler/transport"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

//go:embed schema.graphqls
var schemaSource string

var schema = gqlparser.MustLoadSchema(&ast.Source{Name: "schema.graphqls", Input: schemaSource})

// queryCacheSize bounds the parsed documents kept by the HTTP handler.
const queryCacheSize = 1000

// NewHandler serves the schema over GraphQL-over-HTTP POST. Documents are
// parsed and validated by gqlgen and executed by the resolver.
func (r *Resolver) NewHandler() http.Handler {
	srv := handler.New(NewExecutableSchema(r))
	srv.AddTransport(transport.POST{})
	srv.SetQueryCache(lru.New[*ast.QueryDocument](queryCacheSize))
	return srv
}

// NewExecutableSchema adapts the resolver to gqlgen's executor.
func NewExecutableSchema(r *Resolver) gqlgen.ExecutableSchema {
	return &executableSchema{resolver: r}
}

// executableSchema implements Schema and Exec. Complexity falls through to
// the embedded interface, which is nil; no complexity limit is installed.
type executableSchema struct {
	gqlgen.ExecutableSchema
	resolver *Resolver
}

func (e *executableSchema) Schema() *ast.Schema {
	return schema
}

func (e *executableSchema) Exec(ctx context.Context) gqlgen.ResponseHandler {
	oc := gqlgen.GetOperationContext(ctx)
	first := true

	return func(ctx context.Context) *gqlgen.Response {
		if !first {
			return nil
		}
		first = false

		if oc.Operation.Operation != ast.Query {
			return gqlgen.ErrorResponse(ctx, "%s operations are not supported", oc.Operation.Operation)
		}
		resp := e.resolver.executeOperation(ctx, oc.Doc, oc.Operation, oc.Variables)
		data, err := json.Marshal(resp.Data)
		if err != nil {
			return gqlgen.ErrorResponse(ctx, "encode response: %v", err)
		}
		return &gqlgen.Response{Data: data, Errors: resp.Errors}
	}
}
