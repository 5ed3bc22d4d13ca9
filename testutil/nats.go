package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	gonats "github.com/nats-io/nats.go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// IntegrationEnv gates container-backed tests.
const IntegrationEnv = "INTEGRATION_TESTS"

// NATSContainer is a JetStream-enabled NATS server in a container.
type NATSContainer struct {
	container testcontainers.Container
	Conn      *gonats.Conn
	URL       string
}

type natsConfig struct {
	version      string
	timeout      time.Duration
	startTimeout time.Duration
}

// NATSOption configures StartNATS.
type NATSOption func(*natsConfig)

// WithNATSVersion specifies a specific NATS server image tag
func WithNATSVersion(version string) NATSOption {
	return func(cfg *natsConfig) {
		cfg.version = version
	}
}

// WithStartTimeout sets the container startup timeout
func WithStartTimeout(timeout time.Duration) NATSOption {
	return func(cfg *natsConfig) {
		cfg.startTimeout = timeout
	}
}

// StartNATS starts a container and connects to it. Use it from TestMain;
// tests with a *testing.T should prefer NewNATS.
func StartNATS(ctx context.Context, opts ...NATSOption) (*NATSContainer, error) {
	cfg := &natsConfig{
		version:      "2.11.7-alpine",
		timeout:      5 * time.Second,
		startTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        "nats:" + cfg.version,
		ExposedPorts: []string{"4222/tcp", "8222/tcp"},
		Cmd:          []string{"--port", "4222", "--http_port", "8222", "--js"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("4222/tcp"),
			wait.ForHTTP("/").WithPort("8222/tcp").WithStartupTimeout(cfg.startTimeout),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start NATS container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "4222")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}

	url := fmt.Sprintf("nats://%s:%s", host, port.Port())

	conn, err := gonats.Connect(url, gonats.Timeout(cfg.timeout), gonats.MaxReconnects(0))
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSContainer{container: container, Conn: conn, URL: url}, nil
}

// NewNATS starts a container for one test, skipping unless IntegrationEnv is set.
func NewNATS(t testing.TB, opts ...NATSOption) *NATSContainer {
	t.Helper()

	if os.Getenv(IntegrationEnv) == "" {
		t.Skip("Skipping integration test. Set INTEGRATION_TESTS=1 to run.")
	}

	nc, err := StartNATS(context.Background(), opts...)
	if err != nil {
		t.Fatalf("start NATS: %v", err)
	}
	t.Cleanup(func() { _ = nc.Terminate() })
	return nc
}

// Terminate closes the connection and removes the container.
func (n *NATSContainer) Terminate() error {
	if n.Conn != nil {
		n.Conn.Close()
	}
	return n.container.Terminate(context.Background())
}
