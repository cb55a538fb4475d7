package camunda

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestIsRetryableZeebeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unavailable", status.Error(codes.Unavailable, "no gateway"), true},
		{"wrapped resource exhausted", fmt.Errorf("zeebe topology failed: %w", status.Error(codes.ResourceExhausted, "busy")), true},
		{"unauthenticated", status.Error(codes.Unauthenticated, "bad token"), false},
		{"deadline", fmt.Errorf("ping: %w", context.DeadlineExceeded), true},
		{"dial refused", errors.New("dial tcp 127.0.0.1:26500: connect: connection refused"), true},
		{"config error", errors.New("invalid gateway address"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableZeebeError(tt.err))
		})
	}
}

func TestRetryConfig_Delay(t *testing.T) {
	r := &RetryConfig{BaseDelay: time.Second, MaxDelay: 10 * time.Second}
	assert.Equal(t, time.Second, r.delay(0))
	assert.Equal(t, 4*time.Second, r.delay(2))
	assert.Equal(t, 10*time.Second, r.delay(4))
	assert.Equal(t, 10*time.Second, r.delay(70))
}

func TestClientConfig_PlaintextWithoutCredentials(t *testing.T) {
	cfg, err := (&ClientConfig{GatewayAddress: "localhost:26500"}).zbcConfig()
	require.NoError(t, err)
	assert.True(t, cfg.UsePlaintextConnection)
	assert.Nil(t, cfg.CredentialsProvider)
}
