package gateway

import (
	"context"
	"net/http"
	"os"

	json "github.com/goccy/go-json"

	"github.com/n9te9/federation-gateway/federation/lifecycle"
	"github.com/n9te9/federation-gateway/registry"
)

// schemaBundleSource resolves the JSON-encoded map[string]string of
// subgraph name to SDL text that BuildEngine expects as its schema
// argument. It resolves each configured service's SDL once at startup —
// from SchemaFiles if given, otherwise by introspecting {_service{sdl}} at
// Host via fetchSDL/RetryOption, the teacher's existing schema-fetch
// pattern — then keeps the bundle live by merging in registry.Update
// events as subgraphs register or re-register, republishing the whole
// bundle on every change.
type schemaBundleSource struct {
	services   []GatewayService
	retry      RetryOption
	httpClient *http.Client
	updates    <-chan registry.Update
}

// NewSchemaSource builds the Source that feeds a StateMachine's
// UpdateSchema events. updates may be nil if no registry is running.
func NewSchemaSource(services []GatewayService, retry RetryOption, httpClient *http.Client, updates <-chan registry.Update) lifecycle.Source {
	return &schemaBundleSource{services: services, retry: retry, httpClient: httpClient, updates: updates}
}

func (s *schemaBundleSource) Run(ctx context.Context, ch chan<- lifecycle.Event) {
	bundle := map[string]string{}
	for _, svc := range s.services {
		sdl, err := s.resolve(svc)
		if err != nil {
			// Degrade: a subgraph that can't be resolved at startup simply
			// stays out of the bundle until it registers itself or a later
			// reload succeeds.
			continue
		}
		bundle[svc.Name] = sdl
	}

	if !s.publish(ctx, ch, bundle) {
		return
	}

	if s.updates == nil {
		<-ctx.Done()
		return
	}

	for {
		select {
		case u, ok := <-s.updates:
			if !ok {
				return
			}
			bundle[u.Name] = u.SDL
			if !s.publish(ctx, ch, bundle) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *schemaBundleSource) resolve(svc GatewayService) (string, error) {
	if len(svc.SchemaFiles) > 0 {
		var sdl []byte
		for _, f := range svc.SchemaFiles {
			b, err := os.ReadFile(f)
			if err != nil {
				return "", err
			}
			sdl = append(sdl, b...)
		}
		return string(sdl), nil
	}
	return fetchSDL(svc.Host, s.httpClient, s.retry)
}

func (s *schemaBundleSource) publish(ctx context.Context, ch chan<- lifecycle.Event, bundle map[string]string) bool {
	cp := make(map[string]string, len(bundle))
	for k, v := range bundle {
		cp[k] = v
	}
	raw, err := json.Marshal(cp)
	if err != nil {
		return true
	}
	select {
	case ch <- lifecycle.Event{Kind: lifecycle.UpdateSchema, Schema: string(raw)}:
		return true
	case <-ctx.Done():
		return false
	}
}
