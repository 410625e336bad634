package server

import (
	"fmt"
	"os"
)

const defaultGatewayConfig = `service_name: federation-gateway
endpoint: /graphql
port: 4000
timeout_duration: 5s
enable_hang_over_request_header: true
services: []
plugins: []
opentelemetry:
  tracing:
    enable: false
`

// Init scaffolds a starter gateway.yaml in the current directory, the way
// the CLI's "init" subcommand is documented to behave. It refuses to
// overwrite an existing file.
func Init() {
	const path = "gateway.yaml"
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("%s already exists, leaving it untouched\n", path)
		return
	}

	if err := os.WriteFile(path, []byte(defaultGatewayConfig), 0o644); err != nil {
		fmt.Printf("failed to write %s: %v\n", path, err)
		return
	}

	fmt.Printf("wrote %s\n", path)
}
