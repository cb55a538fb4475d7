// internal/common/camunda/client.go
package camunda

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client owns the gateway connection every assistant worker polls through.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

type ClientConfig struct {
	GatewayAddress    string
	ConnectionTimeout time.Duration
	RetryConfig       *RetryConfig

	// OAuth is used for hosted clusters. Without a ClientID the connection is plaintext.
	ClientID               string
	ClientSecret           string
	AuthorizationServerURL string
	Audience               string
}

type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 10,
	BaseDelay:  time.Second,
	MaxDelay:   10 * time.Second,
}

// Connect creates the Zeebe client and waits for the broker topology, backing off on transient errors.
func Connect(ctx context.Context, config *ClientConfig) (*Client, error) {
	if config.RetryConfig == nil {
		config.RetryConfig = DefaultRetryConfig
	}
	if config.ConnectionTimeout == 0 {
		config.ConnectionTimeout = 10 * time.Second
	}

	zbcConfig, err := config.zbcConfig()
	if err != nil {
		return nil, err
	}
	zeebeClient, err := zbc.NewClient(zbcConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	c := &Client{client: zeebeClient, config: config}

	var lastErr error
	for attempt := 0; attempt <= config.RetryConfig.MaxRetries; attempt++ {
		if lastErr = c.Ping(ctx); lastErr == nil {
			return c, nil
		}
		if !isRetryableZeebeError(lastErr) {
			break
		}

		select {
		case <-time.After(config.RetryConfig.delay(attempt)):
		case <-ctx.Done():
			zeebeClient.Close()
			return nil, fmt.Errorf("connect to zeebe cancelled: %w", ctx.Err())
		}
	}

	zeebeClient.Close()
	return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", config.GatewayAddress, lastErr)
}

func (config *ClientConfig) zbcConfig() (*zbc.ClientConfig, error) {
	if config.ClientID == "" {
		return &zbc.ClientConfig{
			GatewayAddress:         config.GatewayAddress,
			UsePlaintextConnection: true,
		}, nil
	}

	provider, err := zbc.NewOAuthCredentialsProvider(&zbc.OAuthProviderConfig{
		ClientID:               config.ClientID,
		ClientSecret:           config.ClientSecret,
		AuthorizationServerURL: config.AuthorizationServerURL,
		Audience:               config.Audience,
	})
	if err != nil {
		return nil, fmt.Errorf("zeebe oauth setup failed: %w", err)
	}
	return &zbc.ClientConfig{
		GatewayAddress:      config.GatewayAddress,
		CredentialsProvider: provider,
	}, nil
}

func (r *RetryConfig) delay(attempt int) time.Duration {
	d := r.BaseDelay * time.Duration(1<<attempt)
	if d > r.MaxDelay || d <= 0 {
		return r.MaxDelay
	}
	return d
}

func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Ping requests the broker topology.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe topology failed: %w", err)
	}
	return nil
}

func isRetryableZeebeError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var grpcErr interface{ GRPCStatus() *status.Status }
	if errors.As(err, &grpcErr) {
		switch grpcErr.GRPCStatus().Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
			return true
		}
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, phrase := range []string{"connection refused", "connection reset", "broken pipe", "timeout"} {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
