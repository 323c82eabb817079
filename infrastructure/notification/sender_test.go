package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/felixgeelhaar/dynamic-mcp/domain/notification"
)

func TestSender_Send(t *testing.T) {
	var receivedBody []byte
	var receivedHeaders http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedHeaders = r.Header
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewSender(SenderConfig{Timeout: 5 * time.Second, UserAgent: "test-agent/1.0"})
	endpoint := &notification.Endpoint{
		URL:     server.URL,
		Enabled: true,
		Headers: map[string]string{"X-Custom": "custom"},
	}

	if err := sender.Send(context.Background(), endpoint, newTestEvent(7, "echo")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if got := receivedHeaders.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %s", got)
	}
	if got := receivedHeaders.Get("User-Agent"); got != "test-agent/1.0" {
		t.Errorf("User-Agent = %s", got)
	}
	if got := receivedHeaders.Get("X-Custom"); got != "custom" {
		t.Errorf("X-Custom = %s", got)
	}
	if receivedHeaders.Get(HeaderSignature) != "" {
		t.Error("unsigned endpoint should not carry a signature")
	}

	var events []*notification.Event
	if err := json.Unmarshal(receivedBody, &events); err != nil {
		t.Fatalf("failed to unmarshal body: %v", err)
	}
	if len(events) != 1 || events[0].Revision != 7 {
		t.Errorf("body = %s", receivedBody)
	}
}

func TestSender_SignedRequestVerifies(t *testing.T) {
	const secret = "test-secret"
	signer := NewSigner()
	verified := make(chan bool, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ts, _ := strconv.ParseInt(r.Header.Get(HeaderTimestamp), 10, 64)
		verified <- signer.VerifySignature(body, secret, r.Header.Get(HeaderSignature)) &&
			signer.VerifyTimestampedSignature(body, secret, r.Header.Get(HeaderSignatureV2), ts, time.Minute)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sender := NewSender(DefaultSenderConfig())
	endpoint := &notification.Endpoint{URL: server.URL, Enabled: true, Secret: secret}
	if err := sender.Send(context.Background(), endpoint, newTestEvent(1, "echo")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !<-verified {
		t.Error("receiver could not verify signature headers")
	}
}

func TestSender_StatusClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"ok", http.StatusOK, nil},
		{"accepted", http.StatusAccepted, nil},
		{"bad request", http.StatusBadRequest, notification.ErrEndpointRejected},
		{"unauthorized", http.StatusUnauthorized, notification.ErrEndpointRejected},
		{"server error", http.StatusInternalServerError, notification.ErrEndpointUnavailable},
		{"unavailable", http.StatusServiceUnavailable, notification.ErrEndpointUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			sender := NewSender(DefaultSenderConfig())
			err := sender.Send(context.Background(), &notification.Endpoint{URL: server.URL, Enabled: true}, newTestEvent(1))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Send() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSender_NoRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sender := NewSender(DefaultSenderConfig())
	_ = sender.Send(context.Background(), &notification.Endpoint{URL: server.URL, Enabled: true}, newTestEvent(1))

	if calls.Load() != 1 {
		t.Errorf("requests = %d, a failed delivery must not be retried", calls.Load())
	}
}

func TestSender_CircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sender := NewSender(SenderConfig{
		CircuitBreakerThreshold: 2,
		CircuitBreakerTimeout:   time.Minute,
	})
	endpoint := &notification.Endpoint{URL: server.URL, Enabled: true}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = sender.Send(ctx, endpoint, newTestEvent(uint64(i)))
	}

	if calls.Load() != 2 {
		t.Errorf("requests = %d, want 2 before the breaker opened", calls.Load())
	}
	if state := sender.BreakerState(server.URL); state == "closed" || state == "unknown" {
		t.Errorf("BreakerState() = %s, want open", state)
	}
	if sender.BreakerState("http://never.used") != "unknown" {
		t.Error("unused endpoint should report unknown")
	}
}

func TestSender_InvalidEndpoint(t *testing.T) {
	sender := NewSender(DefaultSenderConfig())

	if err := sender.Send(context.Background(), nil, newTestEvent(1)); !errors.Is(err, notification.ErrInvalidEndpoint) {
		t.Errorf("nil endpoint error = %v", err)
	}
	if err := sender.Send(context.Background(), &notification.Endpoint{}, newTestEvent(1)); !errors.Is(err, notification.ErrInvalidEndpoint) {
		t.Errorf("empty URL error = %v", err)
	}
}
