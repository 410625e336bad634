package executor

import (
	"context"
	"net/http"
)

type requestHeaderContextKey struct{}

// SetRequestHeaderToContext stashes the inbound gateway request's header on
// ctx so downstream fetch code can forward it to subgraphs without
// threading http.Header through every call signature.
func SetRequestHeaderToContext(ctx context.Context, header http.Header) context.Context {
	return context.WithValue(ctx, requestHeaderContextKey{}, header)
}

// GetRequestHeaderFromContext returns the header stored by
// SetRequestHeaderToContext, or nil if none was stored.
func GetRequestHeaderFromContext(ctx context.Context) http.Header {
	h, ok := ctx.Value(requestHeaderContextKey{}).(http.Header)
	if !ok {
		return nil
	}

	return h
}
