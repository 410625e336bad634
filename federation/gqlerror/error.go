// Package gqlerror defines the GraphQL error and response shapes shared by
// every stage of the pipeline (spec.md §3 Response/Error).
package gqlerror

import "github.com/n9te9/federation-gateway/federation/jsonvalue"

// Location is a (line, column) pair into the original query document.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Error is a GraphQL error with an optional path and free-form extensions.
type Error struct {
	Message    string                 `json:"message"`
	Path       []interface{}          `json:"path,omitempty"`
	Locations  []Location             `json:"locations,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// WithPath returns a copy of e with Path set from p.
func (e Error) WithPath(p jsonvalue.Path) Error {
	e.Path = p.GraphQLPath()
	return e
}

// Response is one chunk of a (possibly incremental) GraphQL response.
// The primary chunk has Path/Label/HasNext=false unset; deferred chunks
// carry the declaring DeferredNode's path/label/subselection and
// HasNext=true except for the final chunk of the stream.
type Response struct {
	Data          interface{}            `json:"data"`
	Errors        []Error                `json:"errors,omitempty"`
	Path          *jsonvalue.Path        `json:"-"`
	Label         string                 `json:"label,omitempty"`
	Subselection  string                 `json:"subselection,omitempty"`
	HasNext       *bool                  `json:"hasNext,omitempty"`
	Extensions    map[string]interface{} `json:"extensions,omitempty"`
}

// GraphQLPath renders Path for JSON encoding (nil when Path is unset, i.e.
// this is the primary chunk).
func (r Response) GraphQLPath() []interface{} {
	if r.Path == nil {
		return nil
	}
	return r.Path.GraphQLPath()
}

// MarshalResponse is the wire shape of Response, matching §6's multipart
// part fields: { data, errors, path, label, has_next }.
type MarshalResponse struct {
	Data         interface{}            `json:"data"`
	Errors       []Error                `json:"errors,omitempty"`
	Path         []interface{}          `json:"path,omitempty"`
	Label        string                 `json:"label,omitempty"`
	Subselection string                 `json:"subselection,omitempty"`
	HasNext      *bool                  `json:"hasNext,omitempty"`
	Extensions   map[string]interface{} `json:"extensions,omitempty"`
}

// ToWire converts a Response into its wire representation.
func (r Response) ToWire() MarshalResponse {
	return MarshalResponse{
		Data:         r.Data,
		Errors:       r.Errors,
		Path:         r.GraphQLPath(),
		Label:        r.Label,
		Subselection: r.Subselection,
		HasNext:      r.HasNext,
		Extensions:   r.Extensions,
	}
}

// BoolPtr is a small helper for constructing Response.HasNext literals.
func BoolPtr(b bool) *bool { return &b }
