// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"time"

	"notice-push/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/codeGROOVE-dev/retry"
)

// Client wraps the Zeebe gRPC client.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

// ClientConfig holds configuration for the Camunda/Zeebe client.
type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	Attempts               uint
	BaseDelay              time.Duration
}

// NewClient connects to the gateway with plaintext transport and the default
// startup retry budget.
func NewClient(ctx context.Context, address string, log logger.Logger) (*Client, error) {
	return NewClientWithConfig(ctx, &ClientConfig{
		GatewayAddress:         address,
		UsePlaintextConnection: true,
		ConnectionTimeout:      10 * time.Second,
		Attempts:               10,
		BaseDelay:              2 * time.Second,
	}, log)
}

// NewClientWithConfig creates the client and retries the topology probe until
// the broker answers or the attempts run out.
func NewClientWithConfig(ctx context.Context, config *ClientConfig, log logger.Logger) (*Client, error) {
	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         config.GatewayAddress,
		UsePlaintextConnection: config.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	c := &Client{client: zeebeClient, config: config}

	err = retry.Do(
		func() error { return c.HealthCheck(ctx) },
		retry.Attempts(config.Attempts),
		retry.Delay(config.BaseDelay),
		retry.MaxDelay(30*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("zeebe broker not reachable, retrying", map[string]interface{}{
				"attempt": n + 1,
				"gateway": config.GatewayAddress,
				"error":   err,
			})
		}),
	)
	if err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", config.GatewayAddress, err)
	}

	return c, nil
}

// GetClient returns the raw Zeebe client for job worker registration.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// HealthCheck performs a topology request against the broker.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	_, err := c.client.NewTopologyCommand().Send(ctx)
	if err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}
