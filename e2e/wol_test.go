//go:build e2e

package e2e

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fgeck/snapcron/internal/models"
	"github.com/fgeck/snapcron/internal/services/wol"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type mockWOLClient struct {
	addr string
	mac  net.HardwareAddr
}

func (m *mockWOLClient) Wake(addr string, mac net.HardwareAddr) error {
	m.addr = addr
	m.mac = mac
	return nil
}

func TestWOL_WithHTTPTarget_E2E(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := &mockWOLClient{}
	svc := wol.NewWithClients(testLogger(), client, server.Client())

	cfg := models.WOLConfig{
		MACAddress:    "AA:BB:CC:DD:EE:FF",
		BroadcastIP:   "255.255.255.255",
		PollURL:       server.URL,
		Timeout:       5 * time.Second,
		PollInterval:  100 * time.Millisecond,
		StabilizeWait: 100 * time.Millisecond,
	}

	result, err := svc.Wake(context.Background(), cfg)

	require.NoError(t, err)
	assert.True(t, result.PacketSent)
	assert.True(t, result.TargetReady)
	assert.GreaterOrEqual(t, result.WaitDuration, 100*time.Millisecond)
	assert.Equal(t, "255.255.255.255:9", client.addr)
}

func TestWOL_DelayedTarget_E2E(t *testing.T) {
	// Refuse the first requests by hijacking and closing the connection.
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			_ = conn.Close()
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := wol.NewWithClients(testLogger(), &mockWOLClient{}, server.Client())

	cfg := models.WOLConfig{
		MACAddress:   "AA:BB:CC:DD:EE:FF",
		BroadcastIP:  "255.255.255.255",
		PollURL:      server.URL,
		Timeout:      5 * time.Second,
		PollInterval: 50 * time.Millisecond,
	}

	result, err := svc.Wake(context.Background(), cfg)

	require.NoError(t, err)
	assert.True(t, result.TargetReady)
	assert.GreaterOrEqual(t, requests.Load(), int32(3))
}

func TestWOL_TargetNeverReady_E2E(t *testing.T) {
	// Grab a free port and close it so every poll is refused.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	url := "http://" + listener.Addr().String()
	require.NoError(t, listener.Close())

	svc := wol.NewWithClients(testLogger(), &mockWOLClient{}, &http.Client{Timeout: 100 * time.Millisecond})

	cfg := models.WOLConfig{
		MACAddress:   "AA:BB:CC:DD:EE:FF",
		BroadcastIP:  "255.255.255.255",
		PollURL:      url,
		Timeout:      500 * time.Millisecond,
		PollInterval: 100 * time.Millisecond,
	}

	result, err := svc.Wake(context.Background(), cfg)

	require.Error(t, err)
	assert.True(t, result.PacketSent)
	assert.False(t, result.TargetReady)
	assert.Contains(t, err.Error(), "did not answer")
}

func TestRealWOL_E2E(t *testing.T) {
	mac := os.Getenv("TEST_WOL_MAC")
	if mac == "" {
		t.Skip("TEST_WOL_MAC not set")
	}

	broadcast := os.Getenv("TEST_WOL_BROADCAST_IP")
	if broadcast == "" {
		broadcast = "255.255.255.255"
	}

	svc := wol.New(testLogger())

	cfg := models.WOLConfig{
		MACAddress:    mac,
		BroadcastIP:   broadcast,
		PollURL:       os.Getenv("TEST_WOL_POLL_URL"),
		Timeout:       5 * time.Minute,
		PollInterval:  10 * time.Second,
		StabilizeWait: 10 * time.Second,
	}

	result, err := svc.Wake(context.Background(), cfg)

	require.NoError(t, err)
	assert.True(t, result.PacketSent)
	assert.True(t, result.TargetReady)
}
