package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClient struct {
	connected  bool
	requestErr error
	dropOnReq  bool
}

func (f *fakeClient) Publish(context.Context, string, []byte) error { return nil }
func (f *fakeClient) PublishMsg(context.Context, *Message) error     { return nil }
func (f *fakeClient) Request(context.Context, string, []byte, time.Duration) (*Message, error) {
	if f.dropOnReq {
		f.connected = false
	}
	return nil, f.requestErr
}
func (f *fakeClient) Subscribe(string, MessageHandler) (Subscription, error) { return nil, nil }
func (f *fakeClient) QueueSubscribe(string, string, MessageHandler) (Subscription, error) {
	return nil, nil
}
func (f *fakeClient) Close() error      { return nil }
func (f *fakeClient) Drain() error      { return nil }
func (f *fakeClient) IsConnected() bool { return f.connected }

func TestCheckClientHealth(t *testing.T) {
	tests := []struct {
		name          string
		client        Client
		wantConnected bool
		wantError     bool
	}{
		{name: "nil client", client: nil, wantError: true},
		{name: "disconnected", client: &fakeClient{}, wantError: true},
		{name: "no responders", client: &fakeClient{connected: true, requestErr: ErrNoResponders}, wantConnected: true},
		{name: "timeout while connected", client: &fakeClient{connected: true, requestErr: errors.New("timeout")}, wantConnected: true},
		{name: "dropped during ping", client: &fakeClient{connected: true, requestErr: errors.New("closed"), dropOnReq: true}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var status HealthStatus
			if tt.client == nil {
				status = CheckClientHealth(context.Background(), nil)
			} else {
				status = CheckClientHealth(context.Background(), tt.client)
			}
			assert.Equal(t, tt.wantConnected, status.Connected)
			assert.Equal(t, tt.wantError, status.Error != "")
		})
	}
}
