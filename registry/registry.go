package registry

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/n9te9/federation-gateway/federation/graph"
)

// Update is one subgraph's registration, pushed onto a Registry's Updates
// channel so a gateway.schemaBundleSource can fold it into the live schema
// bundle without the registry needing to know anything about lifecycle
// events itself.
type Update struct {
	Name string
	Host string
	SDL  string
}

// Registry accepts subgraph registrations pushed by subgraphs at startup
// (the teacher's registration-over-HTTP convention) and forwards each
// registration request to /schema/registration on every host recorded so
// far; the recorded hosts are the Host values of received registrations.
type Registry struct {
	gatewayHosts     atomic.Value
	addHostChan      chan string
	registratedGraph atomic.Value
	client           *http.Client
	updates          chan Update
}

func NewRegistry() *Registry {
	gatewayHosts := atomic.Value{}
	gatewayHosts.Store(make(map[string]struct{}))

	registratedGraph := atomic.Value{}
	registratedGraph.Store(make([]*graph.SubGraphV2, 0))

	return &Registry{
		gatewayHosts:     gatewayHosts,
		addHostChan:      make(chan string),
		registratedGraph: registratedGraph,
		client:           &http.Client{},
		updates:          make(chan Update, 32),
	}
}

// Updates returns the channel of registration events for a
// gateway.schemaBundleSource to consume. Never closed during normal
// operation.
func (r *Registry) Updates() <-chan Update {
	return r.updates
}

func (r *Registry) Start() {
	go func() {
		for host := range r.addHostChan {
			r.addGatewayHost(host)
		}
	}()
}

func (r *Registry) addGatewayHost(host string) {
	gatewayHosts := r.gatewayHosts.Load().(map[string]struct{})
	gatewayHosts[host] = struct{}{}
	r.gatewayHosts.Store(gatewayHosts)
}

type RegistrationGraph struct {
	Name string `json:"name"`
	Host string `json:"host"`
	SDL  string `json:"sdl"`
}

type RegistrationRequest struct {
	RegistrationGraphs []RegistrationGraph `json:"registration_graphs"`
}

func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	switch req.URL.Path {
	case "/schema/registration":
		r.RegisterGateway(w, req)
	}
}

func (r *Registry) RegisterGateway(w http.ResponseWriter, req *http.Request) {
	var body RegistrationRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "Failed to decode request body", http.StatusBadRequest)
		return
	}

	registratedGraphs := r.registratedGraph.Load().([]*graph.SubGraphV2)
	for _, rg := range body.RegistrationGraphs {
		subGraph, err := graph.NewSubGraphV2(rg.Name, []byte(rg.SDL), rg.Host)
		if err != nil {
			http.Error(w, "Failed to create subgraph", http.StatusBadRequest)
			return
		}

		r.addHostChan <- rg.Host
		registratedGraphs = append(registratedGraphs, subGraph)

		select {
		case r.updates <- Update{Name: rg.Name, Host: rg.Host, SDL: rg.SDL}:
		default:
			slog.Warn("registry: updates channel full, dropping registration", "subgraph", rg.Name)
		}
	}

	gatewayHosts := r.gatewayHosts.Load().(map[string]struct{})
	for sgHost := range gatewayHosts {
		reqBody, err := json.Marshal(body)
		if err != nil {
			http.Error(w, "Failed to marshal request body", http.StatusInternalServerError)
			return
		}

		registerGatewayRequest, err := http.NewRequestWithContext(req.Context(), http.MethodPost, sgHost+"/schema/registration", bytes.NewBuffer(reqBody))
		if err != nil {
			http.Error(w, "Failed to create gateway request", http.StatusInternalServerError)
			return
		}

		go func() {
			if _, err := r.client.Do(registerGatewayRequest); err != nil {
				slog.Warn("registry: failed to propagate registration", "host", sgHost, "error", err)
				return
			}
		}()
	}

	r.registratedGraph.Store(registratedGraphs)
}
