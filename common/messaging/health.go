package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// HealthStatus is the health of a messaging connection.
type HealthStatus struct {
	Connected bool          `json:"connected"`
	Latency   time.Duration `json:"latency_ms"`
	Error     string        `json:"error,omitempty"`
}

// ErrNoResponders is what a health ping returns when nobody answers, which still
// proves the round trip to the broker worked.
var ErrNoResponders = errors.New("no responders")

// CheckClientHealth verifies the client is connected and can reach the broker.
func CheckClientHealth(ctx context.Context, client Client) HealthStatus {
	status := HealthStatus{}

	if client == nil {
		status.Error = "client is nil"
		return status
	}

	status.Connected = client.IsConnected()
	if !status.Connected {
		status.Error = "not connected to message broker"
		return status
	}

	start := time.Now()
	_, err := client.Request(ctx, "_HEALTH.ping", []byte("ping"), 2*time.Second)
	status.Latency = time.Since(start)

	if err != nil && !errors.Is(err, ErrNoResponders) && !client.IsConnected() {
		status.Connected = false
		status.Error = fmt.Sprintf("health check failed: %v", err)
	}

	return status
}
