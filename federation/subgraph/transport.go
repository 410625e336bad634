// Package subgraph implements the transport contract for executing one
// fetch against a named remote GraphQL service (spec.md §4.2).
package subgraph

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/n9te9/federation-gateway/federation/gqlerror"
	"github.com/n9te9/federation-gateway/federation/jsonvalue"
	"github.com/n9te9/federation-gateway/federation/reqcontext"
	"golang.org/x/sync/semaphore"
)

// Request carries one operation to send to a subgraph.
type Request struct {
	SubgraphName string
	Operation    string
	Variables    map[string]interface{}
	Headers      http.Header
	Context      *reqcontext.Context
}

// Response carries a subgraph's reply: partial data, GraphQL errors with
// their original (un-rebased) paths, and any response headers.
type Response struct {
	Data    interface{}
	Errors  []gqlerror.Error
	Headers http.Header
	Context *reqcontext.Context
}

// FetchError is the transport-layer failure taxonomy of §4.2 and §7:
// connection failure, HTTP non-2xx, or body decode failure. GraphQL errors
// returned inside a well-formed 2xx body are not FetchErrors — they are
// carried through as Response.Errors.
type FetchError struct {
	SubgraphName string
	Op           string // "connect", "encode", "status", "decode"
	Err          error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("subgraph %q: %s: %v", e.SubgraphName, e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ToGraphQLError converts a FetchError into a GraphQL error at path, per
// §4.3's error policy: "A Fetch transport-layer failure is converted to a
// single GraphQL error with path = current_dir".
func (e *FetchError) ToGraphQLError(path jsonvalue.Path) gqlerror.Error {
	return gqlerror.Error{
		Message: e.Error(),
		Path:    path.GraphQLPath(),
		Extensions: map[string]interface{}{
			"code":    "SUBGRAPH_FETCH_ERROR",
			"service": e.SubgraphName,
		},
	}
}

// Service executes one Request against a remote GraphQL endpoint.
type Service interface {
	Call(ctx context.Context, req Request) (Response, error)
}

// Endpoint describes one subgraph's location and per-request policy.
type Endpoint struct {
	Name    string
	URL     string
	Timeout time.Duration // per-subgraph request timeout (spec.md §5)
	// MaxConcurrency bounds in-flight requests to this subgraph; zero means
	// unbounded. Backs the service pipeline's poll_ready-style backpressure
	// (spec.md §4.4) that the teacher's single shared *http.Client left
	// unbounded.
	MaxConcurrency int64
}

// HTTPService is the default Service implementation: one POST per call,
// the GraphQL-over-HTTP convention the teacher's sendRequest already uses
// (federation/executor/executor_v2.go), generalized with a timeout and a
// concurrency-limiting semaphore per endpoint.
type HTTPService struct {
	endpoint Endpoint
	client   *http.Client
	sem      *semaphore.Weighted
}

// NewHTTPService builds an HTTPService for endpoint using client for
// outbound calls. client is expected to already carry any shared transport
// (e.g. otelhttp.NewTransport) the caller wants applied to every subgraph.
func NewHTTPService(endpoint Endpoint, client *http.Client) *HTTPService {
	svc := &HTTPService{endpoint: endpoint, client: client}
	if endpoint.MaxConcurrency > 0 {
		svc.sem = semaphore.NewWeighted(endpoint.MaxConcurrency)
	}
	return svc
}

type graphQLRequestBody struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLResponseBody struct {
	Data   interface{}      `json:"data"`
	Errors []gqlerror.Error `json:"errors,omitempty"`
}

// Call implements Service.
func (s *HTTPService) Call(ctx context.Context, req Request) (Response, error) {
	if s.sem != nil {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return Response{}, &FetchError{SubgraphName: s.endpoint.Name, Op: "connect", Err: err}
		}
		defer s.sem.Release(1)
	}

	if s.endpoint.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.endpoint.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(graphQLRequestBody{Query: req.Operation, Variables: req.Variables})
	if err != nil {
		return Response{}, &FetchError{SubgraphName: s.endpoint.Name, Op: "encode", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return Response{}, &FetchError{SubgraphName: s.endpoint.Name, Op: "connect", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return Response{}, &FetchError{SubgraphName: s.endpoint.Name, Op: "connect", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return Response{}, &FetchError{
			SubgraphName: s.endpoint.Name,
			Op:           "status",
			Err:          fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var parsed graphQLResponseBody
	raw, err := jsonvalue.Decode(resp.Body)
	if err != nil {
		return Response{}, &FetchError{SubgraphName: s.endpoint.Name, Op: "decode", Err: err}
	}
	if obj, ok := raw.(*jsonvalue.Object); ok {
		if d, ok := obj.Get("data"); ok {
			parsed.Data = d
		}
		if e, ok := obj.Get("errors"); ok {
			parsed.Errors = decodeErrors(e)
		}
	}

	return Response{
		Data:    parsed.Data,
		Errors:  parsed.Errors,
		Headers: resp.Header,
		Context: req.Context,
	}, nil
}

func decodeErrors(raw interface{}) []gqlerror.Error {
	arr, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]gqlerror.Error, 0, len(arr))
	for _, item := range arr {
		obj, ok := item.(*jsonvalue.Object)
		if !ok {
			continue
		}
		var e gqlerror.Error
		if m, ok := obj.Get("message"); ok {
			if s, ok := m.(string); ok {
				e.Message = s
			}
		}
		if p, ok := obj.Get("path"); ok {
			if arr, ok := p.([]interface{}); ok {
				e.Path = arr
			}
		}
		if ext, ok := obj.Get("extensions"); ok {
			if eo, ok := ext.(*jsonvalue.Object); ok {
				e.Extensions = eo.ToMap()
			}
		}
		out = append(out, e)
	}
	return out
}
