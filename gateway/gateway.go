package gateway

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"

	json "github.com/goccy/go-json"

	"github.com/n9te9/federation-gateway/federation/executor"
	"github.com/n9te9/federation-gateway/federation/gqlerror"
	"github.com/n9te9/federation-gateway/federation/lifecycle"
	"github.com/n9te9/federation-gateway/federation/pipeline"
	"github.com/n9te9/federation-gateway/federation/reqcontext"
	"github.com/n9te9/graphql-parser/ast"
	"github.com/n9te9/graphql-parser/lexer"
	"github.com/n9te9/graphql-parser/parser"
)

type GatewayService struct {
	Name        string   `yaml:"name"`
	Host        string   `yaml:"host"`
	SchemaFiles []string `yaml:"schema_files"`
	// Timeout bounds one request to this subgraph; falls back to 5s if
	// empty or unparsable. MaxConcurrency bounds in-flight requests to
	// this subgraph; zero means unbounded.
	Timeout        string `yaml:"timeout" default:"5s"`
	MaxConcurrency int64  `yaml:"max_concurrency"`
}

type PluginSetting struct {
	Name   string                 `yaml:"name"`
	Config map[string]interface{} `yaml:"config"`
}

type GatewayOption struct {
	Endpoint                    string               `yaml:"endpoint"`
	ServiceName                 string               `yaml:"service_name"`
	Port                        int                  `yaml:"port"`
	TimeoutDuration             string               `yaml:"timeout_duration" default:"5s"`
	EnableHangOverRequestHeader bool                 `yaml:"enable_hang_over_request_header" default:"true"`
	Services                    []GatewayService     `yaml:"services"`
	Plugins                     []PluginSetting      `yaml:"plugins"`
	Opentelemetry               OpentelemetrySetting `yaml:"opentelemetry"`
}

type OpentelemetrySetting struct {
	TracingSetting OpentelemetryTracingSetting `yaml:"tracing"`
}

type OpentelemetryTracingSetting struct {
	Enable bool `yaml:"enable" default:"false"`
}

// gateway is the HTTP handler fronting the lifecycle-driven request
// pipeline: every request reads the current engine off sm rather than
// building or holding one itself, so a schema or config reload never
// requires the handler to change.
type gateway struct {
	sm                          *lifecycle.StateMachine
	serviceName                 string
	enableHangOverRequestHeader bool
}

var _ http.Handler = (*gateway)(nil)

// New builds the HTTP handler. sm must already be constructed (its build
// func is typically BuildEngine); New does not start sm.Run — the caller
// drives that from the merged lifecycle event stream.
func New(sm *lifecycle.StateMachine, serviceName string, enableHangOverRequestHeader bool) *gateway {
	return &gateway{
		sm:                          sm,
		serviceName:                 serviceName,
		enableHangOverRequestHeader: enableHangOverRequestHeader,
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func (g *gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if g.sm.State() != lifecycle.Running {
		http.Error(w, "gateway is not ready", http.StatusServiceUnavailable)
		return
	}
	e, ok := g.sm.Current().(*engine)
	if !ok || e == nil {
		http.Error(w, "gateway is not ready", http.StatusServiceUnavailable)
		return
	}

	var req graphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if g.enableHangOverRequestHeader {
		ctx = executor.SetRequestHeaderToContext(ctx, r.Header)
	}

	l := lexer.New(req.Query)
	p := parser.New(l)
	doc := p.ParseDocument()
	if len(p.Errors()) > 0 {
		writeJSON(w, map[string]any{"errors": p.Errors()})
		return
	}

	if err := e.validateAccessibility(doc); err != nil {
		writeJSON(w, map[string]any{
			"errors": []map[string]any{
				{
					"message":    err.Error(),
					"extensions": map[string]string{"code": "INACCESSIBLE_FIELD"},
				},
			},
		})
		return
	}

	resp, err := e.handle(ctx, doc, req.Variables, reqcontext.New())
	if err != nil {
		writeJSON(w, map[string]any{"errors": []string{err.Error()}})
		return
	}

	if resp.Deferred == nil {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp.Primary.ToWire())
		return
	}

	writeIncremental(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeIncremental streams a primary chunk followed by every deferred
// chunk as a multipart/mixed response, the wire format spec.md §6 asks for
// @defer-bearing queries. mime/multipart already implements exactly this
// framing, so there is no reason to hand-roll it.
func writeIncremental(w http.ResponseWriter, resp pipeline.Response) {
	mw := multipart.NewWriter(w)
	_ = mw.SetBoundary("graphql")
	w.Header().Set("Content-Type", fmt.Sprintf(`multipart/mixed; boundary=%s; deferSpec=20220824`, mw.Boundary()))
	flusher, _ := w.(http.Flusher)

	send := func(part gqlerror.Response) bool {
		pw, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=utf-8"}})
		if err != nil {
			return false
		}
		if err := json.NewEncoder(pw).Encode(part.ToWire()); err != nil {
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	if !send(resp.Primary) {
		return
	}
	for part := range resp.Deferred {
		if !send(part) {
			return
		}
	}
	mw.Close()
	if flusher != nil {
		flusher.Flush()
	}
}

// validateAccessibility validates that no @inaccessible fields are queried.
func (e *engine) validateAccessibility(doc *ast.Document) error {
	for _, def := range doc.Definitions {
		if opDef, ok := def.(*ast.OperationDefinition); ok {
			rootTypeName := "Query"
			switch opDef.Operation {
			case ast.Query:
				rootTypeName = "Query"
			case ast.Mutation:
				rootTypeName = "Mutation"
			case ast.Subscription:
				rootTypeName = "Subscription"
			}

			if err := e.validateSelectionSet(opDef.SelectionSet, rootTypeName); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateSelectionSet recursively validates selections.
func (e *engine) validateSelectionSet(selSet []ast.Selection, parentTypeName string) error {
	if selSet == nil {
		return nil
	}

	for _, sel := range selSet {
		switch s := sel.(type) {
		case *ast.Field:
			fieldName := s.Name.String()

			if fieldName == "__typename" || fieldName == "__schema" || fieldName == "__type" {
				continue
			}

			if err := e.checkFieldAccessibility(parentTypeName, fieldName); err != nil {
				return err
			}

			nextTypeName := e.getFieldTypeName(parentTypeName, fieldName)
			if nextTypeName != "" {
				if err := e.validateSelectionSet(s.SelectionSet, nextTypeName); err != nil {
					return err
				}
			}

		case *ast.FragmentSpread:
			// TODO: validate @inaccessible fields reached through named fragments.

		case *ast.InlineFragment:
			typeCondition := ""
			if s.TypeCondition != nil {
				typeCondition = s.TypeCondition.String()
			}
			if typeCondition == "" {
				typeCondition = parentTypeName
			}
			if err := e.validateSelectionSet(s.SelectionSet, typeCondition); err != nil {
				return err
			}
		}
	}

	return nil
}

// checkFieldAccessibility checks if a field is inaccessible.
func (e *engine) checkFieldAccessibility(typeName, fieldName string) error {
	for _, subGraph := range e.superGraph.SubGraphs {
		for _, def := range subGraph.Schema.Definitions {
			if objDef, ok := def.(*ast.ObjectTypeDefinition); ok {
				if objDef.Name.String() == typeName {
					for _, f := range objDef.Fields {
						if f.Name.String() == fieldName {
							for _, d := range f.Directives {
								if d.Name == "inaccessible" {
									return fmt.Errorf("Cannot query field \"%s\" on type \"%s\"", fieldName, typeName)
								}
							}
						}
					}
				}
			}
		}
	}

	return nil
}

// getFieldTypeName returns the type name of a field.
func (e *engine) getFieldTypeName(typeName, fieldName string) string {
	for _, def := range e.superGraph.Schema.Definitions {
		if objDef, ok := def.(*ast.ObjectTypeDefinition); ok {
			if objDef.Name.String() == typeName {
				for _, field := range objDef.Fields {
					if field.Name.String() == fieldName {
						return unwrapTypeName(field.Type)
					}
				}
			}
		}
	}
	return ""
}

// unwrapTypeName extracts the base type name from a type.
func unwrapTypeName(t ast.Type) string {
	switch typ := t.(type) {
	case *ast.NamedType:
		return typ.Name.String()
	case *ast.ListType:
		return unwrapTypeName(typ.Type)
	case *ast.NonNullType:
		return unwrapTypeName(typ.Type)
	}
	return ""
}
