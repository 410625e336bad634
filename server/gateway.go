package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-yaml"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/n9te9/federation-gateway/federation/lifecycle"
	"github.com/n9te9/federation-gateway/gateway"
	"github.com/n9te9/federation-gateway/registry"
)

const gatewayVersion = "v0.1.0"

// Run loads gateway.yaml, starts the registry and the lifecycle state
// machine that builds (and rebuilds, on every config or schema change) the
// request-serving engine, and serves GraphQL over HTTP until an interrupt
// or a fatal lifecycle error.
func Run() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	const configPath = "gateway.yaml"
	settings, err := loadGatewaySetting(configPath)
	if err != nil {
		log.Fatalf("failed to load gateway settings: %v", err)
	}

	httpClient := &http.Client{Timeout: 3 * time.Second}
	if settings.Opentelemetry.TracingSetting.Enable {
		httpClient.Transport = otelhttp.NewTransport(http.DefaultTransport)
	}

	reg := registry.NewRegistry()
	reg.Start()

	retry := gateway.RetryOption{Attempts: 3, Timeout: "5s"}
	sources := []lifecycle.Source{
		lifecycle.FileSource{Path: configPath, Interval: 5 * time.Second, Kind: lifecycle.UpdateConfiguration},
		gateway.NewSchemaSource(settings.Services, retry, httpClient, reg.Updates()),
	}

	sm := lifecycle.New(
		func(ctx context.Context, config []byte, schema string) (lifecycle.Factory, error) {
			return gateway.BuildEngine(ctx, config, schema, httpClient)
		},
		func(s lifecycle.State) { slog.Info("gateway lifecycle state changed", "state", s.String()) },
	)

	lifecycleCtx, cancelLifecycle := context.WithCancel(context.Background())
	defer cancelLifecycle()
	events := lifecycle.Merge(lifecycleCtx, sources...)

	lifecycleErrCh := make(chan error, 1)
	go func() { lifecycleErrCh <- sm.Run(lifecycleCtx, events) }()

	gw := gateway.New(sm, settings.ServiceName, settings.EnableHangOverRequestHeader)

	mux := http.NewServeMux()
	endpoint := settings.Endpoint
	if endpoint == "" {
		endpoint = "/"
	}
	var gwHandler http.Handler = gw
	if settings.Opentelemetry.TracingSetting.Enable {
		gwHandler = otelhttp.NewHandler(gw, settings.ServiceName)
	}
	mux.Handle(endpoint, gwHandler)
	mux.Handle("/schema/registration", reg)

	timeoutDuration, err := time.ParseDuration(settings.TimeoutDuration)
	if err != nil {
		timeoutDuration = 5 * time.Second
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", settings.Port),
		Handler: mux,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill, syscall.SIGTERM)
	defer cancel()

	shutdownTracer, err := gateway.InitTracer(ctx, settings.ServiceName, gatewayVersion)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}

	go func() {
		log.Printf("starting gateway server on port %d", settings.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("gateway server failed: %v", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-lifecycleErrCh:
		if err != nil {
			log.Printf("lifecycle stopped with error: %v", err)
		}
	}

	timeoutCtx, cancel2 := context.WithTimeout(context.Background(), timeoutDuration)
	defer cancel2()

	log.Println("shutting down gateway server...")
	if err := srv.Shutdown(timeoutCtx); err != nil {
		log.Fatalf("failed to shutdown gateway server: %v", err)
	}

	if err := shutdownTracer(timeoutCtx); err != nil {
		log.Fatalf("failed to shutdown tracer: %v", err)
	}

	log.Println("gateway server stopped")
}

// ValidateConfig loads and decodes path without starting any server,
// reporting the first error encountered — used by the CLI's
// validate-config subcommand.
func ValidateConfig(path string) error {
	_, err := loadGatewaySetting(path)
	return err
}

func loadGatewaySetting(path string) (*gateway.GatewayOption, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open gateway settings file: %w", err)
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway settings file: %w", err)
	}

	var settings gateway.GatewayOption
	if err := yaml.Unmarshal(b, &settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gateway settings: %w", err)
	}

	return &settings, nil
}
